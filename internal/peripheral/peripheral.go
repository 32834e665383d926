// Package peripheral defines the record model for managed BLE peripherals:
// identity, connection state and the discovered GATT topology.
package peripheral

import "strings"

// Status represents the connection status of a managed peripheral.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusIdle    Status = "idle"
)

// AddrType distinguishes public from random BLE addresses.
type AddrType string

const (
	AddrPublic AddrType = "public"
	AddrRandom AddrType = "random"
)

// NoHandle marks a record without a live connection handle.
const NoHandle = -1

// Characteristic is one discovered characteristic within a service.
type Characteristic struct {
	UUID   string `json:"uuid"`
	Handle uint16 `json:"handle"`
}

// Service is one discovered GATT service with its characteristics in
// discovery order.
type Service struct {
	UUID            string           `json:"uuid"`
	Handle          uint16           `json:"handle"`
	Characteristics []Characteristic `json:"characteristics,omitempty"`
}

// Record is the persisted representation of a known peripheral.
//
// ID is assigned by the store on first registration and never changes
// afterwards. Recovered is a transient marker set while a record is being
// restored from persistence; it is never persisted itself.
type Record struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	AddressType AddrType  `json:"address_type"`
	ConnHandle  int       `json:"conn_handle"`
	Status      Status    `json:"status"`
	Services    []Service `json:"services,omitempty"`
	Class       string    `json:"class,omitempty"`

	Recovered bool `json:"-"`
}

// BasicInfo is the fixed snapshot of standard Device Information
// characteristics offered to device-class classifiers.
type BasicInfo struct {
	DevName      string
	Manufacturer string
	Model        string
	Serial       string
	FirmwareRev  string
	HardwareRev  string
	SoftwareRev  string
}

// NormalizeAddr canonicalizes a hardware address for lookups: lowercase,
// colon- and dash-separated forms collapse to bare hex.
func NormalizeAddr(addr string) string {
	a := strings.ToLower(addr)
	a = strings.ReplaceAll(a, ":", "")
	return strings.ReplaceAll(a, "-", "")
}

// Connected reports whether the record holds a live connection handle.
func (r *Record) Connected() bool {
	return r.ConnHandle != NoHandle
}

// Summary is the condensed per-device view returned by list operations.
type Summary struct {
	ID          string   `json:"id"`
	Address     string   `json:"address"`
	AddressType AddrType `json:"address_type"`
	Status      Status   `json:"status"`
	Class       string   `json:"class,omitempty"`
	ServiceList []string `json:"services,omitempty"`
}

// Summarize builds the condensed view of a record.
func (r *Record) Summarize() Summary {
	s := Summary{
		ID:          r.ID,
		Address:     r.Address,
		AddressType: r.AddressType,
		Status:      r.Status,
		Class:       r.Class,
	}
	for _, svc := range r.Services {
		s.ServiceList = append(s.ServiceList, svc.UUID)
	}
	return s
}
