package client

import (
	"fmt"
	"time"

	"github.com/srg/senslink/pkg/codec"
)

// SendHelper wraps a Client with typed convenience calls for the common
// device operations the CLI exposes.
type SendHelper struct {
	client  *Client
	timeout time.Duration
}

// NewSendHelper creates a helper; timeout 0 falls back to the client's
// default request timeout.
func NewSendHelper(client *Client, timeout time.Duration) *SendHelper {
	return &SendHelper{client: client, timeout: timeout}
}

// GetAttributeValue fetches the raw value of one attribute.
func (h *SendHelper) GetAttributeValue(id codec.AttributeID) ([]byte, error) {
	resp, err := h.client.SendAndWait(&codec.GetAttribute{AttributeID: id}, h.timeout)
	if err != nil {
		return nil, err
	}
	attr, ok := resp.(*codec.GetAttributeResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type 0x%02x", resp.MsgType())
	}
	if attr.AttributeID != id {
		return nil, fmt.Errorf("response for attribute %s, requested %s", attr.AttributeID, id)
	}
	return attr.Value, nil
}

// GetAttributeFormatted fetches one attribute rendered human-readable.
func (h *SendHelper) GetAttributeFormatted(id codec.AttributeID) (string, error) {
	value, err := h.GetAttributeValue(id)
	if err != nil {
		return "", err
	}
	return codec.FormatAttributeValue(id, value), nil
}

// SetCurrentTime sets the device clock.
func (h *SendHelper) SetCurrentTime(t time.Time) error {
	req := &codec.SetAttribute{
		AttributeID: codec.AttrCurrentTime,
		Value:       codec.EncodeTime(t),
	}
	_, err := h.client.SendAndWait(req, h.timeout)
	return err
}

// SetTraceLevel sets the firmware trace verbosity.
func (h *SendHelper) SetTraceLevel(level byte) error {
	req := &codec.SetAttribute{
		AttributeID: codec.AttrTraceLevel,
		Value:       []byte{level},
	}
	_, err := h.client.SendAndWait(req, h.timeout)
	return err
}

// ResetDevice performs a factory reset.
func (h *SendHelper) ResetDevice() error {
	_, err := h.client.SendAndWait(&codec.ResetDevice{}, h.timeout)
	return err
}

// RebootDevice restarts the device firmware.
func (h *SendHelper) RebootDevice() error {
	_, err := h.client.SendAndWait(&codec.RebootDevice{}, h.timeout)
	return err
}
