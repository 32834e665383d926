package peripheral

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddr(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AA:BB:CC:DD:EE:FF", "aabbccddeeff"},
		{"aa:bb:cc:dd:ee:ff", "aabbccddeeff"},
		{"AA-BB-CC-DD-EE-FF", "aabbccddeeff"},
		{"aa-bb-cc-dd-ee-ff", "aabbccddeeff"},
		{"aabbccddeeff", "aabbccddeeff"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeAddr(tt.input), "input %q", tt.input)
	}
}

func TestConnected(t *testing.T) {
	r := &Record{ConnHandle: NoHandle}
	assert.False(t, r.Connected())

	r.ConnHandle = 0
	assert.True(t, r.Connected(), "handle zero is a valid live handle")
}

func TestSummarize(t *testing.T) {
	r := &Record{
		ID:          "id-1",
		Address:     "AA:BB:CC:DD:EE:FF",
		AddressType: AddrPublic,
		ConnHandle:  3,
		Status:      StatusOnline,
		Class:       "tempSensor",
		Services: []Service{
			{UUID: "1800", Handle: 1},
			{UUID: "180a", Handle: 5},
		},
	}

	s := r.Summarize()
	assert.Equal(t, "id-1", s.ID)
	assert.Equal(t, StatusOnline, s.Status)
	assert.Equal(t, "tempSensor", s.Class)
	assert.Equal(t, []string{"1800", "180a"}, s.ServiceList)
}
