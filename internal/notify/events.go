package notify

import "github.com/srg/bleherd/internal/peripheral"

// DevStatus is the payload on TopicDevStatus.
type DevStatus struct {
	Address string
	Status  peripheral.Status
	Record  *peripheral.Record // may be nil for a bare status indication
}

// DevSettled is the payload on TopicDevSettled.
type DevSettled struct {
	Record *peripheral.Record
}

// ConnectErr is the payload on TopicConnectErr.
type ConnectErr struct {
	Address string
	Err     error
}

// Discovered is the payload on TopicDiscovered.
type Discovered struct {
	Address     string
	AddressType peripheral.AddrType
	Name        string
	RSSI        int
	Connectable bool
}

// PermitJoin is the payload on TopicPermitJoin.
type PermitJoin struct {
	Remaining int
}
