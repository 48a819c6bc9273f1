//go:build darwin

package transport

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// newBLEDevice creates the platform HCI device (can be overridden in tests).
var newBLEDevice = func() (ble.Device, error) {
	return darwin.NewDevice()
}
