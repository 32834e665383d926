// Package controller defines the narrow surface of the radio controller the
// orchestrator drives. The controller owns connection establishment, GATT
// discovery and the scan loop; it reports back through the notification hub.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/peripheral"
)

// ErrClosed is returned for operations against a closed controller.
var ErrClosed = errors.New("controller closed")

// Role describes what the local radio can do.
type Role string

const (
	// RoleCentral scans and connects but cannot host local services.
	RoleCentral Role = "central"
	// RoleDual additionally hosts local GATT services.
	RoleDual Role = "dual"
)

// ScanSettings tunes the scan procedure.
type ScanSettings struct {
	Interval   time.Duration `yaml:"interval" default:"40ms"`
	Window     time.Duration `yaml:"window" default:"30ms"`
	Duplicates bool          `yaml:"duplicates"`
}

// LinkSettings tunes established connections.
type LinkSettings struct {
	Interval time.Duration `yaml:"interval" default:"30ms"`
	Latency  int           `yaml:"latency"`
	Timeout  time.Duration `yaml:"timeout" default:"4s"`
}

// SubConfig is the sub-module-specific configuration passed to Init.
type SubConfig struct {
	DeviceID int          `yaml:"device_id"`
	Role     Role         `yaml:"role" default:"central"`
	Scan     ScanSettings `yaml:"scan"`
	Link     LinkSettings `yaml:"link"`
}

// Controller abstracts the radio hardware/firmware command protocol.
// Implementations emit notifications (ready, discovered, device status,
// connect errors) through the hub they were constructed with.
type Controller interface {
	// Init brings the radio up and returns the local identity.
	Init(ctx context.Context, cfg SubConfig) (*Identity, error)
	// SetScanParams applies scan settings for subsequent scans.
	SetScanParams(s ScanSettings) error
	// SetLinkParams applies link settings for subsequent connections.
	SetLinkParams(s LinkSettings) error
	// Scan starts the discovery loop. It returns once the loop is running.
	Scan(ctx context.Context) error
	// CancelScan stops an in-flight discovery loop.
	CancelScan() error
	// Connect establishes a connection and discovers the GATT topology,
	// returning a populated record without an id.
	Connect(ctx context.Context, addr string) (*peripheral.Record, error)
	// Disconnect tears down the connection held by rec.
	Disconnect(ctx context.Context, rec *peripheral.Record) error
	// ReadString reads a string characteristic from a connected peripheral.
	ReadString(rec *peripheral.Record, svcUUID, chrUUID string) (string, error)
	// RegChar registers a vendor characteristic type for decode.
	RegChar(def gattdb.Definition, code string) error
	// Close shuts the radio down.
	Close() error
	// ForceClose tears the radio down unconditionally, best effort.
	ForceClose() error
}
