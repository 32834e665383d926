//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
// The deviceID argument is currently ignored on linux; the default HCI
// device is used.
var DeviceFactory = func(deviceID int) (ble.Device, error) {
	return linux.NewDevice()
}
