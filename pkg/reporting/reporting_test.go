package reporting

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/senslink/pkg/codec"
)

type fakeSender struct {
	requests  []codec.Request
	responses map[byte]codec.Message
	err       error
}

func (f *fakeSender) SendAndWait(req codec.Request, _ time.Duration) (codec.Message, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[req.ResponseType()]
	if !ok {
		return &codec.RawMessage{Type: req.ResponseType()}, nil
	}
	return resp, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func ackSender() *fakeSender {
	return &fakeSender{
		responses: map[byte]codec.Message{
			codec.TypeConfigureReporting | codec.ResponseFlag: &codec.ConfigureReportingResponse{},
			codec.TypeResetReporting | codec.ResponseFlag:     &codec.ResetReportingResponse{},
		},
	}
}

func TestReporterStartStop(t *testing.T) {
	sender := ackSender()
	reporter := NewReporter(sender, time.Second, testLogger())

	require.NoError(t, reporter.StartHeartRateReporting(1000))
	require.Len(t, sender.requests, 1)

	cfg, ok := sender.requests[0].(*codec.ConfigureReporting)
	require.True(t, ok)
	assert.Equal(t, codec.AttrHeartRate, cfg.AttributeID)
	assert.Equal(t, uint16(1000), cfg.Interval)
	assert.Equal(t, codec.ReportPeriodical, cfg.Mode)
	assert.Equal(t, map[codec.AttributeID]uint16{codec.AttrHeartRate: 1000}, reporter.Active())

	require.NoError(t, reporter.StopHeartRateReporting())
	require.Len(t, sender.requests, 2)

	reset, ok := sender.requests[1].(*codec.ResetReporting)
	require.True(t, ok)
	assert.Equal(t, codec.AttrHeartRate, reset.AttributeID)
	assert.Empty(t, reporter.Active())
}

func TestReporterStartFailure(t *testing.T) {
	sendErr := errors.New("device gone")
	reporter := NewReporter(&fakeSender{err: sendErr}, time.Second, testLogger())

	err := reporter.StartBatteryLevelReporting(0)
	require.ErrorIs(t, err, sendErr)
	assert.Empty(t, reporter.Active())
}

func TestReporterRejectsWrongResponseType(t *testing.T) {
	sender := &fakeSender{responses: map[byte]codec.Message{}}
	reporter := NewReporter(sender, time.Second, testLogger())

	err := reporter.StartTemperatureReporting(500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response type")
	assert.Empty(t, reporter.Active())
}

func TestReporterStopAll(t *testing.T) {
	sender := ackSender()
	reporter := NewReporter(sender, time.Second, testLogger())

	require.NoError(t, reporter.StartBatteryLevelReporting(0))
	require.NoError(t, reporter.StartTemperatureReporting(2000))
	require.NoError(t, reporter.StopAll())

	assert.Empty(t, reporter.Active())

	stopped := make(map[codec.AttributeID]bool)
	for _, req := range sender.requests {
		if reset, ok := req.(*codec.ResetReporting); ok {
			stopped[reset.AttributeID] = true
		}
	}
	assert.True(t, stopped[codec.AttrBatteryLevel])
	assert.True(t, stopped[codec.AttrTemperature])
}

func TestCacheTracksLatestValue(t *testing.T) {
	cache := NewCache(testLogger())

	cache.OnMessage(&codec.AttributeChanged{AttributeID: codec.AttrBatteryLevel, Value: []byte{95}})
	cache.OnMessage(&codec.AttributeChanged{AttributeID: codec.AttrBatteryLevel, Value: []byte{94}})
	cache.OnMessage(&codec.AttributeChanged{AttributeID: codec.AttrHeartRate, Value: []byte{0x00, 0x48}})

	obs, ok := cache.Latest(codec.AttrBatteryLevel)
	require.True(t, ok)
	assert.Equal(t, []byte{94}, obs.Value)

	snapshot := cache.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, []byte{0x00, 0x48}, snapshot[codec.AttrHeartRate].Value)

	_, ok = cache.Latest(codec.AttrTemperature)
	assert.False(t, ok)
}

func TestCacheIgnoresOtherMessages(t *testing.T) {
	cache := NewCache(testLogger())

	cache.OnMessage(&codec.Heartbeat{})
	cache.OnMessage(&codec.GetAttributeResponse{AttributeID: codec.AttrBatteryLevel, Value: []byte{50}})

	assert.Empty(t, cache.Snapshot())
}

func TestCacheNotifiesObservers(t *testing.T) {
	cache := NewCache(testLogger())

	var seen []Observation
	cache.Observe(func(obs Observation) {
		seen = append(seen, obs)
	})

	cache.OnMessage(&codec.AttributeChanged{AttributeID: codec.AttrTemperature, Value: []byte{0x0E, 0x74}})

	require.Len(t, seen, 1)
	assert.Equal(t, codec.AttrTemperature, seen[0].AttributeID)
	assert.Equal(t, []byte{0x0E, 0x74}, seen[0].Value)
	assert.False(t, seen[0].ReceivedAt.IsZero())
}
