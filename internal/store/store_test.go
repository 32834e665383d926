package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/bleherd/internal/peripheral"
)

func sampleRecord(addr string) *peripheral.Record {
	return &peripheral.Record{
		Address:     addr,
		AddressType: peripheral.AddrPublic,
		ConnHandle:  peripheral.NoHandle,
		Status:      peripheral.StatusOffline,
		Services: []peripheral.Service{
			{UUID: "1800", Handle: 1, Characteristics: []peripheral.Characteristic{{UUID: "2a00", Handle: 3}}},
		},
	}
}

// storeContract exercises the behavior every Store implementation shares.
func storeContract(t *testing.T, st Store) {
	t.Helper()

	id1, err := st.Add(sampleRecord("AA:BB:CC:DD:EE:01"))
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := st.Add(sampleRecord("AA:BB:CC:DD:EE:02"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "ids must be unique")

	rec, err := st.Get(id1)
	require.NoError(t, err)
	assert.Equal(t, id1, rec.ID)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", rec.Address)
	require.Len(t, rec.Services, 1)
	assert.Equal(t, "2a00", rec.Services[0].Characteristics[0].UUID)

	// Upsert under an existing id.
	rec.Status = peripheral.StatusOnline
	rec.Class = "tempSensor"
	require.NoError(t, st.Set(id1, rec))
	rec, err = st.Get(id1)
	require.NoError(t, err)
	assert.Equal(t, peripheral.StatusOnline, rec.Status)
	assert.Equal(t, "tempSensor", rec.Class)

	all, err := st.ExportAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, st.Remove(id1))
	_, err = st.Get(id1)
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing an unknown id is not an error.
	assert.NoError(t, st.Remove(id1))

	all, err = st.ExportAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id2, all[0].ID)
}

func TestMemoryStore(t *testing.T) {
	st := NewMemory()
	defer st.Close()
	storeContract(t, st)
}

func TestSQLiteStore(t *testing.T) {
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "bleherd.db"))
	require.NoError(t, err)
	defer st.Close()
	storeContract(t, st)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleherd.db")

	st, err := OpenSQLite(path)
	require.NoError(t, err)
	id, err := st.Add(sampleRecord("11:22:33:44:55:66"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()

	rec, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "11:22:33:44:55:66", rec.Address)

	// The transient recovered marker never round-trips.
	assert.False(t, rec.Recovered)
}
