package codec

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// AttributeID identifies a device attribute.
type AttributeID byte

// Known device attributes.
const (
	AttrSerialNo        AttributeID = 0x01
	AttrFirmwareVersion AttributeID = 0x02
	AttrCurrentTime     AttributeID = 0x71
	AttrTraceLevel      AttributeID = 0x72
	AttrBatteryLevel    AttributeID = 0xA1
	AttrHeartRate       AttributeID = 0xA2
	AttrTemperature     AttributeID = 0xB1
)

var attributeNames = map[AttributeID]string{
	AttrSerialNo:        "serialno",
	AttrFirmwareVersion: "firmware",
	AttrCurrentTime:     "time",
	AttrTraceLevel:      "tracelevel",
	AttrBatteryLevel:    "battery",
	AttrHeartRate:       "hr",
	AttrTemperature:     "temperature",
}

// String returns the CLI-facing attribute name, or a hex fallback for
// attributes this build does not know about.
func (a AttributeID) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("attr-0x%02x", byte(a))
}

// AttributeByName resolves a CLI-facing name back to its identifier.
func AttributeByName(name string) (AttributeID, bool) {
	for id, n := range attributeNames {
		if n == strings.ToLower(name) {
			return id, true
		}
	}
	return 0, false
}

// AttributeNames returns all known attribute names, for CLI help text.
func AttributeNames() []string {
	names := make([]string, 0, len(attributeNames))
	for _, n := range attributeNames {
		names = append(names, n)
	}
	return names
}

// FormatAttributeValue renders a raw attribute value in human-readable form.
// Values with unexpected sizes fall back to hex so nothing is swallowed.
func FormatAttributeValue(id AttributeID, value []byte) string {
	switch id {
	case AttrSerialNo:
		if len(value) == 8 {
			return fmt.Sprintf("%016X", binary.BigEndian.Uint64(value))
		}
	case AttrFirmwareVersion:
		if len(value) == 3 {
			return fmt.Sprintf("%d.%d.%d", value[0], value[1], value[2])
		}
	case AttrCurrentTime:
		if len(value) == 8 {
			ms := binary.BigEndian.Uint64(value)
			return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
		}
	case AttrTraceLevel:
		if len(value) == 1 {
			return fmt.Sprintf("%d", value[0])
		}
	case AttrBatteryLevel:
		if len(value) == 1 {
			return fmt.Sprintf("%d%%", value[0])
		}
	case AttrHeartRate:
		if len(value) == 2 {
			return fmt.Sprintf("%d bpm", binary.BigEndian.Uint16(value))
		}
	case AttrTemperature:
		if len(value) == 2 {
			centi := int16(binary.BigEndian.Uint16(value))
			return fmt.Sprintf("%.2f°C", float64(centi)/100)
		}
	}
	return fmt.Sprintf("0x%x", value)
}

// EncodeTime encodes a timestamp as the CurrentTime attribute value
// (milliseconds since the Unix epoch, big endian).
func EncodeTime(t time.Time) []byte {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(t.UnixMilli()))
	return value
}
