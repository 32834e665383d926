package plugin

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/peripheral"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// matchModel recognizes peripherals by the model number read from Device
// Information.
func matchModel(model string) ClassifierFunc {
	return func(_ *peripheral.Record, info *peripheral.BasicInfo) bool {
		return info.Model == model
	}
}

// stubReader serves canned characteristic values keyed by "svc/chr".
type stubReader struct {
	values map[string]string
}

func (s *stubReader) ReadString(_ *peripheral.Record, svcUUID, chrUUID string) (string, error) {
	v, ok := s.values[svcUUID+"/"+chrUUID]
	if !ok {
		return "", errors.New("characteristic not present")
	}
	return v, nil
}

func TestSupportValidation(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	_, err := r.Support("", &Descriptor{Classifier: matchModel("x")})
	assert.ErrorIs(t, err, ErrNoClassifier)

	_, err = r.Support("sensor", nil)
	assert.ErrorIs(t, err, ErrNoClassifier)

	_, err = r.Support("sensor", &Descriptor{})
	assert.ErrorIs(t, err, ErrNoClassifier)
}

func TestSupportDuplicateIsNoop(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	desc := &Descriptor{Classifier: matchModel("TH-01")}
	added, err := r.Support("tempSensor", desc)
	require.NoError(t, err)
	assert.True(t, added)

	// The identical descriptor again: no-op, reported as not added.
	added, err = r.Support("tempSensor", desc)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestSupportReplacesDifferentDescriptor(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	_, err := r.Support("tempSensor", &Descriptor{Classifier: matchModel("TH-01")})
	require.NoError(t, err)

	replacement := &Descriptor{
		Classifier: matchModel("TH-01"),
		Methods: map[string]Method{
			"readTemp": func(*peripheral.Record, ...any) (any, error) { return 21.5, nil },
		},
	}
	added, err := r.Support("tempSensor", replacement)
	require.NoError(t, err)
	assert.True(t, added)

	rec := &peripheral.Record{Address: "AA:00:00:00:00:01", Class: "tempSensor"}
	v, err := r.Invoke(rec, "readTemp")
	require.NoError(t, err)
	assert.Equal(t, 21.5, v)
}

func TestSupportBootstrapsGattDefs(t *testing.T) {
	db := gattdb.New()
	r := NewRegistry(db, quietLogger())

	desc := &Descriptor{
		Classifier: matchModel("TH-01"),
		GattDefs: map[gattdb.Kind][]gattdb.Definition{
			gattdb.KindService:        {{UUID: "0xfff0", Name: "VendorControl"}},
			gattdb.KindCharacteristic: {{UUID: "0xfff1", Name: "VendorStatus"}},
		},
	}
	_, err := r.Support("tempSensor", desc)
	require.NoError(t, err)
	assert.Equal(t, "VendorControl", db.ServiceName("fff0"))
	assert.Equal(t, "VendorStatus", db.CharacteristicName("fff1"))

	// Conflicting definitions poison the whole registration.
	bad := &Descriptor{
		Classifier: matchModel("TH-02"),
		GattDefs: map[gattdb.Kind][]gattdb.Definition{
			gattdb.KindService: {{UUID: "0xfff0", Name: "SomethingElse"}},
		},
	}
	_, err = r.Support("otherSensor", bad)
	assert.ErrorIs(t, err, gattdb.ErrConflict)
}

func TestExamineFirstMatchWins(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	_, err := r.Support("tempSensor", &Descriptor{Classifier: matchModel("TH-01")})
	require.NoError(t, err)
	_, err = r.Support("anySensor", &Descriptor{
		Classifier: ClassifierFunc(func(*peripheral.Record, *peripheral.BasicInfo) bool { return true }),
	})
	require.NoError(t, err)

	reader := &stubReader{values: map[string]string{
		gattdb.SvcDeviceInformation + "/" + gattdb.ChrModelNumber: "TH-01",
	}}

	rec := &peripheral.Record{Address: "AA:00:00:00:00:01"}
	class, ok := r.Examine(rec, reader)
	assert.True(t, ok)
	assert.Equal(t, "tempSensor", class, "earlier registration wins over the catch-all")
	assert.Equal(t, "tempSensor", rec.Class)
}

func TestExamineNoMatchLeavesUnclassified(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	_, err := r.Support("tempSensor", &Descriptor{Classifier: matchModel("TH-01")})
	require.NoError(t, err)

	rec := &peripheral.Record{Address: "AA:00:00:00:00:01"}
	class, ok := r.Examine(rec, nil)
	assert.False(t, ok)
	assert.Empty(t, class)
	assert.Empty(t, rec.Class)
}

func TestUnsupportRemovesEqualDescriptors(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	desc := &Descriptor{Classifier: matchModel("TH-01")}
	_, err := r.Support("tempSensor", desc)
	require.NoError(t, err)

	assert.False(t, r.Unsupport(&Descriptor{Classifier: matchModel("HH-99")}))
	assert.True(t, r.Unsupport(desc))
	assert.False(t, r.Unsupport(desc), "already removed")

	rec := &peripheral.Record{Address: "AA:00:00:00:00:01"}
	_, ok := r.Examine(rec, nil)
	assert.False(t, ok)
}

func TestInvokeErrors(t *testing.T) {
	r := NewRegistry(gattdb.New(), quietLogger())

	_, err := r.Support("tempSensor", &Descriptor{
		Classifier: matchModel("TH-01"),
		Methods: map[string]Method{
			"readTemp": func(*peripheral.Record, ...any) (any, error) { return 20.0, nil },
		},
	})
	require.NoError(t, err)

	unclassified := &peripheral.Record{Address: "AA:00:00:00:00:01"}
	_, err = r.Invoke(unclassified, "readTemp")
	assert.ErrorIs(t, err, ErrNoMethod)

	classified := &peripheral.Record{Address: "AA:00:00:00:00:02", Class: "tempSensor"}
	_, err = r.Invoke(classified, "selfDestruct")
	assert.ErrorIs(t, err, ErrNoMethod)

	v, err := r.Invoke(classified, "readTemp")
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestReadBasicInfo(t *testing.T) {
	reader := &stubReader{values: map[string]string{
		gattdb.SvcGenericAccess + "/" + gattdb.ChrDeviceName:           "thermo",
		gattdb.SvcDeviceInformation + "/" + gattdb.ChrManufacturerName: "Acme",
		gattdb.SvcDeviceInformation + "/" + gattdb.ChrModelNumber:      "TH-01",
	}}

	rec := &peripheral.Record{Address: "AA:00:00:00:00:01"}
	info := ReadBasicInfo(rec, reader)
	assert.Equal(t, "thermo", info.DevName)
	assert.Equal(t, "Acme", info.Manufacturer)
	assert.Equal(t, "TH-01", info.Model)
	assert.Empty(t, info.Serial, "unreadable fields stay empty")

	info = ReadBasicInfo(rec, nil)
	assert.NotNil(t, info)
	assert.Empty(t, info.DevName)
}
