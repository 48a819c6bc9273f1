// Package reporting drives periodic attribute reporting on a sensor
// device: it configures which attributes the device pushes, tracks the
// latest pushed value per attribute and fans values out to observers.
package reporting

import (
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/senslink/pkg/codec"
)

// commandSender is the slice of the device client the reporter needs.
type commandSender interface {
	SendAndWait(req codec.Request, timeout time.Duration) (codec.Message, error)
}

// Reporter configures attribute reporting on the device and remembers
// which attributes it started, so StopAll can undo exactly those.
type Reporter struct {
	sender  commandSender
	timeout time.Duration
	logger  *logrus.Logger

	active *hashmap.Map[byte, uint16]
}

// NewReporter creates a Reporter sending commands through the given client.
func NewReporter(sender commandSender, timeout time.Duration, logger *logrus.Logger) *Reporter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reporter{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
		active:  hashmap.New[byte, uint16](),
	}
}

// Start asks the device to push AttributeChanged messages for the
// attribute. Interval is in device ticks; zero reports on every change.
func (r *Reporter) Start(id codec.AttributeID, interval uint16, mode byte) error {
	req := &codec.ConfigureReporting{AttributeID: id, Interval: interval, Mode: mode}
	resp, err := r.sender.SendAndWait(req, r.timeout)
	if err != nil {
		return fmt.Errorf("failed to configure reporting for %s: %w", id, err)
	}
	if _, ok := resp.(*codec.ConfigureReportingResponse); !ok {
		return fmt.Errorf("unexpected response type 0x%02X for configure reporting", resp.MsgType())
	}

	r.active.Set(byte(id), interval)
	r.logger.WithFields(logrus.Fields{
		"attribute": id.String(),
		"interval":  interval,
	}).Info("Attribute reporting started")
	return nil
}

// Stop turns off reporting for the attribute.
func (r *Reporter) Stop(id codec.AttributeID) error {
	resp, err := r.sender.SendAndWait(&codec.ResetReporting{AttributeID: id}, r.timeout)
	if err != nil {
		return fmt.Errorf("failed to reset reporting for %s: %w", id, err)
	}
	if _, ok := resp.(*codec.ResetReportingResponse); !ok {
		return fmt.Errorf("unexpected response type 0x%02X for reset reporting", resp.MsgType())
	}

	r.active.Del(byte(id))
	r.logger.WithField("attribute", id.String()).Info("Attribute reporting stopped")
	return nil
}

// StopAll turns off reporting for every attribute this reporter started.
// It keeps going after individual failures and returns the first error.
func (r *Reporter) StopAll() error {
	var firstErr error
	r.active.Range(func(id byte, _ uint16) bool {
		if err := r.Stop(codec.AttributeID(id)); err != nil {
			r.logger.WithError(err).Warn("Failed to stop attribute reporting")
			if firstErr == nil {
				firstErr = err
			}
		}
		return true
	})
	return firstErr
}

// Active returns the attributes this reporter currently has reporting
// enabled for, with the configured interval.
func (r *Reporter) Active() map[codec.AttributeID]uint16 {
	out := make(map[codec.AttributeID]uint16, r.active.Len())
	r.active.Range(func(id byte, interval uint16) bool {
		out[codec.AttributeID(id)] = interval
		return true
	})
	return out
}

// StartBatteryLevelReporting reports battery level on change.
func (r *Reporter) StartBatteryLevelReporting(interval uint16) error {
	return r.Start(codec.AttrBatteryLevel, interval, codec.ReportOnChange)
}

// StartHeartRateReporting reports heart rate periodically.
func (r *Reporter) StartHeartRateReporting(interval uint16) error {
	return r.Start(codec.AttrHeartRate, interval, codec.ReportPeriodical)
}

// StartTemperatureReporting reports temperature periodically.
func (r *Reporter) StartTemperatureReporting(interval uint16) error {
	return r.Start(codec.AttrTemperature, interval, codec.ReportPeriodical)
}

// StopBatteryLevelReporting stops battery level reporting.
func (r *Reporter) StopBatteryLevelReporting() error {
	return r.Stop(codec.AttrBatteryLevel)
}

// StopHeartRateReporting stops heart rate reporting.
func (r *Reporter) StopHeartRateReporting() error {
	return r.Stop(codec.AttrHeartRate)
}

// StopTemperatureReporting stops temperature reporting.
func (r *Reporter) StopTemperatureReporting() error {
	return r.Stop(codec.AttrTemperature)
}
