//go:build linux

package transport

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// newBLEDevice creates the platform HCI device (can be overridden in tests).
var newBLEDevice = func() (ble.Device, error) {
	return linux.NewDevice()
}
