package main

import (
	"errors"

	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/transport"
)

// FormatUserError maps internal errors to actionable messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, transport.ErrDeviceNotFound):
		return "device not found: check that it is powered on, in range and advertising, or run 'senslink scan'"
	case errors.Is(err, client.ErrTimeout):
		return "the device did not answer in time: it may be busy or out of range"
	case errors.Is(err, client.ErrConnectionClosed):
		return "the connection to the device was lost"
	case errors.Is(err, client.ErrNotConnected):
		return "not connected to a device"
	default:
		return err.Error()
	}
}
