// Package codec implements the sensor wire protocol used on the BLE serial
// link. Every frame has the layout
//
//	type(1) | length(2, big endian) | payload | crc16(2)
//
// where length covers the whole frame including header and CRC. A set
// response bit (0x80) in the type marks a message that answers the request
// whose type is type &^ 0x80; inbound messages without the response bit are
// unsolicited, device-initiated events.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ResponseFlag marks a message type as a response to the request type
// obtained by clearing the flag.
const ResponseFlag byte = 0x80

// headerLen is type + length, crcLen the trailing CRC-16.
const (
	headerLen = 3
	crcLen    = 2
)

// MaxFrameLen bounds the declared length of a frame. A length beyond it
// is corrupt data, not a large frame still in flight, which lets stream
// readers resynchronize instead of waiting for bytes that never come.
const MaxFrameLen = 1024

// Message type identifiers.
const (
	TypeHeartbeat          byte = 0x01
	TypeSetAttribute       byte = 0x11
	TypeGetAttribute       byte = 0x12
	TypeConfigureReporting byte = 0x13
	TypeResetReporting     byte = 0x14
	TypeResetDevice        byte = 0x1A
	TypeRebootDevice       byte = 0x1B
	TypeAttributeChanged   byte = 0x31
)

// Decode errors. All of them are recoverable: a reader that hits one should
// log and move on, never tear down the link.
var (
	ErrTruncatedFrame = errors.New("truncated frame")
	ErrInvalidLength  = errors.New("invalid frame length")
	ErrCRCMismatch    = errors.New("crc mismatch")
)

// Message is a single decoded or encodable protocol message.
type Message interface {
	// MsgType returns the wire type identifier, including the response
	// flag for response messages.
	MsgType() byte

	// Marshal encodes the full frame: header, payload and CRC.
	Marshal() ([]byte, error)
}

// Request is an outbound message that expects a correlated response.
type Request interface {
	Message

	// ResponseType returns the wire type of the response that answers
	// this request.
	ResponseType() byte
}

// IsResponse reports whether m answers a request, as opposed to being an
// unsolicited device-initiated message.
func IsResponse(m Message) bool {
	return m.MsgType()&ResponseFlag != 0
}

// Decode decodes the first message in buf and returns it together with the
// number of bytes consumed. Unknown message types are returned as
// *RawMessage so that a newer device firmware never breaks the reader.
func Decode(buf []byte) (Message, int, error) {
	if len(buf) < headerLen+crcLen {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrTruncatedFrame, len(buf))
	}

	msgType := buf[0]
	length := int(binary.BigEndian.Uint16(buf[1:3]))
	if length < headerLen+crcLen || length > MaxFrameLen {
		return nil, 0, fmt.Errorf("%w: declared %d", ErrInvalidLength, length)
	}
	if length > len(buf) {
		return nil, 0, fmt.Errorf("%w: declared %d, have %d", ErrTruncatedFrame, length, len(buf))
	}

	want := binary.BigEndian.Uint16(buf[length-crcLen : length])
	if got := crc16(buf[:length-crcLen]); got != want {
		return nil, 0, fmt.Errorf("%w: calculated 0x%04x, frame has 0x%04x", ErrCRCMismatch, got, want)
	}

	payload := buf[headerLen : length-crcLen]
	msg, err := newMessage(msgType)
	if err != nil {
		// Length field still lets us skip past the unknown message.
		raw := &RawMessage{Type: msgType, Payload: append([]byte(nil), payload...)}
		return raw, length, nil
	}
	if err := msg.unmarshalPayload(payload); err != nil {
		return nil, 0, err
	}
	return msg, length, nil
}

// DecodeAll decodes every message in buf. A single BLE notification may
// carry several back-to-back frames. Messages decoded before the first
// error are returned alongside it.
func DecodeAll(buf []byte) ([]Message, error) {
	var msgs []Message
	for pos := 0; pos < len(buf); {
		msg, n, err := Decode(buf[pos:])
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
		pos += n
	}
	return msgs, nil
}

// decodable is implemented by every known concrete message.
type decodable interface {
	Message
	unmarshalPayload(payload []byte) error
}

func newMessage(msgType byte) (decodable, error) {
	switch msgType {
	case TypeHeartbeat:
		return &Heartbeat{}, nil
	case TypeHeartbeat | ResponseFlag:
		return &HeartbeatResponse{}, nil
	case TypeSetAttribute:
		return &SetAttribute{}, nil
	case TypeSetAttribute | ResponseFlag:
		return &SetAttributeResponse{}, nil
	case TypeGetAttribute:
		return &GetAttribute{}, nil
	case TypeGetAttribute | ResponseFlag:
		return &GetAttributeResponse{}, nil
	case TypeConfigureReporting:
		return &ConfigureReporting{}, nil
	case TypeConfigureReporting | ResponseFlag:
		return &ConfigureReportingResponse{}, nil
	case TypeResetReporting:
		return &ResetReporting{}, nil
	case TypeResetReporting | ResponseFlag:
		return &ResetReportingResponse{}, nil
	case TypeResetDevice:
		return &ResetDevice{}, nil
	case TypeResetDevice | ResponseFlag:
		return &ResetDeviceResponse{}, nil
	case TypeRebootDevice:
		return &RebootDevice{}, nil
	case TypeRebootDevice | ResponseFlag:
		return &RebootDeviceResponse{}, nil
	case TypeAttributeChanged:
		return &AttributeChanged{}, nil
	default:
		return nil, fmt.Errorf("unknown message type 0x%02x", msgType)
	}
}

// encodeFrame assembles header, payload and CRC into a complete frame.
func encodeFrame(msgType byte, payload []byte) ([]byte, error) {
	length := headerLen + len(payload) + crcLen
	if length > 0xFFFF {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrInvalidLength, len(payload))
	}

	frame := make([]byte, length)
	frame[0] = msgType
	binary.BigEndian.PutUint16(frame[1:3], uint16(length))
	copy(frame[headerLen:], payload)
	binary.BigEndian.PutUint16(frame[length-crcLen:], crc16(frame[:length-crcLen]))
	return frame, nil
}

// Heartbeat is a no-payload liveness probe.
type Heartbeat struct{}

func (m *Heartbeat) MsgType() byte                 { return TypeHeartbeat }
func (m *Heartbeat) ResponseType() byte            { return TypeHeartbeat | ResponseFlag }
func (m *Heartbeat) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *Heartbeat) unmarshalPayload([]byte) error { return nil }

// HeartbeatResponse acknowledges a Heartbeat.
type HeartbeatResponse struct{}

func (m *HeartbeatResponse) MsgType() byte                 { return TypeHeartbeat | ResponseFlag }
func (m *HeartbeatResponse) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *HeartbeatResponse) unmarshalPayload([]byte) error { return nil }

// GetAttribute requests the current value of a single attribute.
type GetAttribute struct {
	AttributeID AttributeID
}

func (m *GetAttribute) MsgType() byte      { return TypeGetAttribute }
func (m *GetAttribute) ResponseType() byte { return TypeGetAttribute | ResponseFlag }

func (m *GetAttribute) Marshal() ([]byte, error) {
	return encodeFrame(m.MsgType(), []byte{byte(m.AttributeID)})
}

func (m *GetAttribute) unmarshalPayload(payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("%w: get attribute payload of %d bytes", ErrInvalidLength, len(payload))
	}
	m.AttributeID = AttributeID(payload[0])
	return nil
}

// GetAttributeResponse carries the raw value of the requested attribute.
type GetAttributeResponse struct {
	AttributeID AttributeID
	Value       []byte
}

func (m *GetAttributeResponse) MsgType() byte { return TypeGetAttribute | ResponseFlag }

func (m *GetAttributeResponse) Marshal() ([]byte, error) {
	payload := append([]byte{byte(m.AttributeID)}, m.Value...)
	return encodeFrame(m.MsgType(), payload)
}

func (m *GetAttributeResponse) unmarshalPayload(payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: empty get attribute response", ErrInvalidLength)
	}
	m.AttributeID = AttributeID(payload[0])
	m.Value = append([]byte(nil), payload[1:]...)
	return nil
}

// SetAttribute writes a raw attribute value to the device.
type SetAttribute struct {
	AttributeID AttributeID
	Value       []byte
}

func (m *SetAttribute) MsgType() byte      { return TypeSetAttribute }
func (m *SetAttribute) ResponseType() byte { return TypeSetAttribute | ResponseFlag }

func (m *SetAttribute) Marshal() ([]byte, error) {
	payload := append([]byte{byte(m.AttributeID)}, m.Value...)
	return encodeFrame(m.MsgType(), payload)
}

func (m *SetAttribute) unmarshalPayload(payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: empty set attribute", ErrInvalidLength)
	}
	m.AttributeID = AttributeID(payload[0])
	m.Value = append([]byte(nil), payload[1:]...)
	return nil
}

// SetAttributeResponse acknowledges a SetAttribute.
type SetAttributeResponse struct{}

func (m *SetAttributeResponse) MsgType() byte                 { return TypeSetAttribute | ResponseFlag }
func (m *SetAttributeResponse) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *SetAttributeResponse) unmarshalPayload([]byte) error { return nil }

// Reporting modes for ConfigureReporting.
const (
	ReportOnChange   byte = 0x01
	ReportHighPrio   byte = 0x02
	ReportPeriodical byte = 0x04
)

// ConfigureReporting asks the device to start pushing AttributeChanged
// messages for an attribute. Interval 0 means report on every change.
type ConfigureReporting struct {
	AttributeID AttributeID
	Interval    uint16
	Mode        byte
}

func (m *ConfigureReporting) MsgType() byte      { return TypeConfigureReporting }
func (m *ConfigureReporting) ResponseType() byte { return TypeConfigureReporting | ResponseFlag }

func (m *ConfigureReporting) Marshal() ([]byte, error) {
	payload := make([]byte, 4)
	payload[0] = byte(m.AttributeID)
	binary.BigEndian.PutUint16(payload[1:3], m.Interval)
	payload[3] = m.Mode
	return encodeFrame(m.MsgType(), payload)
}

func (m *ConfigureReporting) unmarshalPayload(payload []byte) error {
	if len(payload) != 4 {
		return fmt.Errorf("%w: configure reporting payload of %d bytes", ErrInvalidLength, len(payload))
	}
	m.AttributeID = AttributeID(payload[0])
	m.Interval = binary.BigEndian.Uint16(payload[1:3])
	m.Mode = payload[3]
	return nil
}

// ConfigureReportingResponse acknowledges a ConfigureReporting.
type ConfigureReportingResponse struct{}

func (m *ConfigureReportingResponse) MsgType() byte                 { return TypeConfigureReporting | ResponseFlag }
func (m *ConfigureReportingResponse) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *ConfigureReportingResponse) unmarshalPayload([]byte) error { return nil }

// ResetReporting stops reporting for an attribute.
type ResetReporting struct {
	AttributeID AttributeID
}

func (m *ResetReporting) MsgType() byte      { return TypeResetReporting }
func (m *ResetReporting) ResponseType() byte { return TypeResetReporting | ResponseFlag }

func (m *ResetReporting) Marshal() ([]byte, error) {
	return encodeFrame(m.MsgType(), []byte{byte(m.AttributeID)})
}

func (m *ResetReporting) unmarshalPayload(payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("%w: reset reporting payload of %d bytes", ErrInvalidLength, len(payload))
	}
	m.AttributeID = AttributeID(payload[0])
	return nil
}

// ResetReportingResponse acknowledges a ResetReporting.
type ResetReportingResponse struct{}

func (m *ResetReportingResponse) MsgType() byte                 { return TypeResetReporting | ResponseFlag }
func (m *ResetReportingResponse) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *ResetReportingResponse) unmarshalPayload([]byte) error { return nil }

// ResetDevice performs a factory reset.
type ResetDevice struct{}

func (m *ResetDevice) MsgType() byte                 { return TypeResetDevice }
func (m *ResetDevice) ResponseType() byte            { return TypeResetDevice | ResponseFlag }
func (m *ResetDevice) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *ResetDevice) unmarshalPayload([]byte) error { return nil }

// ResetDeviceResponse acknowledges a ResetDevice.
type ResetDeviceResponse struct{}

func (m *ResetDeviceResponse) MsgType() byte                 { return TypeResetDevice | ResponseFlag }
func (m *ResetDeviceResponse) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *ResetDeviceResponse) unmarshalPayload([]byte) error { return nil }

// RebootDevice restarts the device firmware.
type RebootDevice struct{}

func (m *RebootDevice) MsgType() byte                 { return TypeRebootDevice }
func (m *RebootDevice) ResponseType() byte            { return TypeRebootDevice | ResponseFlag }
func (m *RebootDevice) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *RebootDevice) unmarshalPayload([]byte) error { return nil }

// RebootDeviceResponse acknowledges a RebootDevice.
type RebootDeviceResponse struct{}

func (m *RebootDeviceResponse) MsgType() byte                 { return TypeRebootDevice | ResponseFlag }
func (m *RebootDeviceResponse) Marshal() ([]byte, error)      { return encodeFrame(m.MsgType(), nil) }
func (m *RebootDeviceResponse) unmarshalPayload([]byte) error { return nil }

// AttributeChanged is the unsolicited report the device pushes for
// attributes with configured reporting.
type AttributeChanged struct {
	AttributeID AttributeID
	Value       []byte
}

func (m *AttributeChanged) MsgType() byte { return TypeAttributeChanged }

func (m *AttributeChanged) Marshal() ([]byte, error) {
	payload := append([]byte{byte(m.AttributeID)}, m.Value...)
	return encodeFrame(m.MsgType(), payload)
}

func (m *AttributeChanged) unmarshalPayload(payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("%w: empty attribute changed", ErrInvalidLength)
	}
	m.AttributeID = AttributeID(payload[0])
	m.Value = append([]byte(nil), payload[1:]...)
	return nil
}

// RawMessage preserves a frame with an unknown type. It decodes cleanly so
// firmware additions never stall the reader.
type RawMessage struct {
	Type    byte
	Payload []byte
}

func (m *RawMessage) MsgType() byte { return m.Type }

func (m *RawMessage) Marshal() ([]byte, error) {
	return encodeFrame(m.Type, m.Payload)
}
