// Package transport provides the BLE frame channel to a sensor device: a
// Nordic UART Service (NUS) GATT link where the TX characteristic streams
// device frames through notifications and the RX characteristic accepts
// chunked writes. It also discovers candidate devices advertising the NUS
// service.
package transport

import (
	"errors"
	"time"

	"github.com/go-ble/ble"
)

// Nordic UART Service UUIDs.
var (
	// ServiceUUID identifies the NUS serial service.
	ServiceUUID = ble.MustParse("6E400001-B5A3-F393-E0A9-E50E24DCCA9E")

	// TxCharUUID is the device-to-client characteristic (notify).
	TxCharUUID = ble.MustParse("6E400003-B5A3-F393-E0A9-E50E24DCCA9E")

	// RxCharUUID is the client-to-device characteristic (write).
	RxCharUUID = ble.MustParse("6E400002-B5A3-F393-E0A9-E50E24DCCA9E")
)

var (
	// ErrDeviceNotFound indicates no advertising device matched the target
	// within the scan window.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrChannelClosed indicates a Read or Write on a closed channel.
	ErrChannelClosed = errors.New("frame channel closed")
)

// Options configures dialing and the open channel.
type Options struct {
	// ConnectTimeout bounds target resolution plus connection setup.
	ConnectTimeout time.Duration

	// MaxChunkSize splits writes into GATT-sized chunks.
	MaxChunkSize int

	// ChunkDelay paces consecutive chunks of one frame so a slow device
	// is not overwhelmed.
	ChunkDelay time.Duration

	// ReadQueueSize bounds the notification buffer feeding Read. When the
	// reader falls behind, the oldest frame is evicted.
	ReadQueueSize int
}

// DefaultOptions returns sensible defaults for a NUS link.
func DefaultOptions() *Options {
	return &Options{
		ConnectTimeout: 30 * time.Second,
		MaxChunkSize:   20, // classic BLE ATT payload
		ChunkDelay:     10 * time.Millisecond,
		ReadQueueSize:  128,
	}
}
