package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/senslink/internal/ringchan"
)

// DeviceInfo describes one discovered sensor device.
type DeviceInfo struct {
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	RSSI        int       `json:"rssi"`
	Connectable bool      `json:"connectable"`
	LastSeen    time.Time `json:"lastSeen"`
}

// DeviceEventType marks if the device was newly discovered or updated.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// DeviceEvent is emitted on the scanner's event channel for every
// advertisement that passes the filters.
type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo DeviceInfo
}

// ScanOptions configures discovery behavior.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool

	// ServiceUUIDs keeps only devices advertising at least one of these
	// services. Empty means any device.
	ServiceUUIDs []ble.UUID

	// NamePrefix keeps only devices whose advertised name starts with the
	// prefix. Empty means any name.
	NamePrefix string
}

// DefaultScanOptions scans for ten seconds and keeps only devices
// advertising the NUS serial service.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		ServiceUUIDs:    []ble.UUID{ServiceUUID},
	}
}

// Scanner discovers sensor devices over BLE.
type Scanner struct {
	devices *hashmap.Map[string, DeviceInfo]
	events  *ringchan.RingChannel[DeviceEvent]
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// NewScanner creates a Scanner.
func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		events: ringchan.New[DeviceEvent](100),
		logger: logger,
	}
}

// Scan performs BLE discovery with the provided options and returns the
// discovered devices ordered by descending signal strength.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) ([]DeviceInfo, error) {
	s.devices = hashmap.New[string, DeviceInfo]()

	if opts == nil {
		opts = DefaultScanOptions()
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")

	dev, err := newBLEDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	err = dev.Scan(ctx, opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")

	devices := make([]DeviceInfo, 0, s.devices.Len())
	s.devices.Range(func(_ string, info DeviceInfo) bool {
		devices = append(devices, info)
		return true
	})
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].RSSI > devices[j].RSSI
	})
	return devices, nil
}

// handleAdvertisement updates an existing entry or adds a new device.
func (s *Scanner) handleAdvertisement(adv ble.Advertisement) {
	if !MatchesFilter(adv, s.scanOptions) {
		return
	}

	address := adv.Addr().String()
	info := DeviceInfo{
		Name:        adv.LocalName(),
		Address:     address,
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
		LastSeen:    time.Now(),
	}

	prev, existing := s.devices.Get(address)
	if existing && info.Name == "" {
		// Scan responses may omit the name the first advertisement carried.
		info.Name = prev.Name
	}
	s.devices.Set(address, info)

	event := DeviceEvent{Type: EventNew, DeviceInfo: info}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  info.Name,
			"address": info.Address,
			"rssi":    info.RSSI,
		}).Info("Discovered new device")
	}

	s.events.ForceSend(event)
}

// MatchesFilter reports whether an advertisement passes the scan filters.
func MatchesFilter(adv ble.Advertisement, opts *ScanOptions) bool {
	if opts == nil {
		return true
	}

	if opts.NamePrefix != "" {
		name := adv.LocalName()
		if len(name) < len(opts.NamePrefix) || name[:len(opts.NamePrefix)] != opts.NamePrefix {
			return false
		}
	}

	if len(opts.ServiceUUIDs) > 0 {
		found := false
		for _, required := range opts.ServiceUUIDs {
			for _, advertised := range adv.Services() {
				if required.Equal(advertised) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Events returns a read-only channel of device events. Events are emitted
// best-effort; slow consumers lose the oldest ones.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}
