package gattdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeUUID verifies that NormalizeUUID correctly handles various UUID formats
func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "180d",
			expected: "180d",
		},
		{
			name:     "16-bit with 0x prefix",
			input:    "0x180d",
			expected: "180d",
		},
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "0000180d-0000-1000-8000-00805f9b34fb",
			expected: "180d",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "0000180d00001000800000805f9b34fb",
			expected: "180d",
		},
		{
			name:     "Custom 128-bit UUID (not SIG base)",
			input:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{0000180d-0000-1000-8000-00805f9b34fb}",
			expected: "180d",
		},
		{
			name:     "Uppercase input",
			input:    "0X180D",
			expected: "180d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestSeededLookups(t *testing.T) {
	db := New()

	assert.Equal(t, "HeartRate", db.ServiceName("0x180d"))
	assert.Equal(t, "HeartRate", db.ServiceName("0000180d-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "Battery", db.ServiceName("180f"))
	assert.Equal(t, "", db.ServiceName("ffff"))

	assert.Equal(t, "DeviceName", db.CharacteristicName("2a00"))
	assert.Equal(t, "2a00", db.CharacteristicCode("DeviceName"))
	assert.Equal(t, "180d", db.ServiceCode("HeartRate"))
}

func TestDeclareService(t *testing.T) {
	db := New()

	err := db.Declare(KindService, []Definition{{UUID: "0x1800", Name: "GenericAccess"}})
	require.NoError(t, err, "re-declaring an identical pair must be a no-op")

	err = db.Declare(KindService, []Definition{{UUID: "0xfff0", Name: "VendorControl"}})
	require.NoError(t, err)
	assert.Equal(t, "VendorControl", db.ServiceName("fff0"))
	assert.Equal(t, "fff0", db.ServiceCode("VendorControl"))
}

func TestDeclareConflicts(t *testing.T) {
	db := New()

	tests := []struct {
		name string
		defs []Definition
	}{
		{
			name: "same uuid different name",
			defs: []Definition{{UUID: "0x1800", Name: "NotGenericAccess"}},
		},
		{
			name: "same name different uuid",
			defs: []Definition{{UUID: "0xfff1", Name: "GenericAccess"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Declare(KindService, tt.defs)
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
}

func TestDeclareInvalidKind(t *testing.T) {
	db := New()

	err := db.Declare(Kind("descriptor"), []Definition{{UUID: "0x2902", Name: "CCCD"}})
	assert.ErrorIs(t, err, ErrInvalidKind)

	err = db.Declare(KindService, []Definition{{UUID: "", Name: "NoUUID"}})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestDeclareForwardsCharacteristicTypes(t *testing.T) {
	db := New()

	var forwarded []string
	db.SetRegChar(func(def Definition, code string) error {
		forwarded = append(forwarded, code)
		return nil
	})

	// No decode info: nothing forwarded.
	err := db.Declare(KindCharacteristic, []Definition{{UUID: "0xfff1", Name: "VendorStatus"}})
	require.NoError(t, err)
	assert.Empty(t, forwarded)

	// Decode params and types present: forwarded under the canonical code.
	err = db.Declare(KindCharacteristic, []Definition{{
		UUID:   "0xfff2",
		Name:   "VendorMeasurement",
		Params: []string{"flags", "value"},
		Types:  []string{"uint8", "uint16"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fff2"}, forwarded)
}
