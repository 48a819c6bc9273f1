package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/senslink/internal/ringchan"
	"github.com/srg/senslink/pkg/client"
)

// Dialer resolves a device by advertised name or address and opens a NUS
// frame channel to it. It implements client.Dialer.
type Dialer struct {
	opts   *Options
	logger *logrus.Logger
}

// NewDialer creates a Dialer.
func NewDialer(opts *Options, logger *logrus.Logger) *Dialer {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dialer{opts: opts, logger: logger}
}

// Dial scans for the target, connects, discovers the NUS service and
// subscribes to the TX characteristic. The returned channel is exclusively
// owned by the caller.
func (d *Dialer) Dial(ctx context.Context, target string) (client.FrameChannel, error) {
	dev, err := newBLEDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	d.logger.WithField("target", target).Info("Connecting to device...")

	connectCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()

	cl, err := ble.Connect(connectCtx, matchTarget(target))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, target)
		}
		return nil, fmt.Errorf("failed to connect to %q: %w", target, err)
	}

	profile, err := cl.DiscoverProfile(true)
	if err != nil {
		_ = cl.CancelConnection()
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	var serial *ble.Service
	for _, service := range profile.Services {
		if service.UUID.Equal(ServiceUUID) {
			serial = service
			break
		}
	}
	if serial == nil {
		_ = cl.CancelConnection()
		return nil, fmt.Errorf("serial service %s not found on %q", ServiceUUID, target)
	}

	var txChar, rxChar *ble.Characteristic
	for _, char := range serial.Characteristics {
		switch {
		case char.UUID.Equal(TxCharUUID):
			txChar = char
		case char.UUID.Equal(RxCharUUID):
			rxChar = char
		}
	}
	if txChar == nil || rxChar == nil {
		_ = cl.CancelConnection()
		return nil, fmt.Errorf("serial characteristics not found on %q", target)
	}

	ch := &Channel{
		client:     cl,
		txChar:     txChar,
		rxChar:     rxChar,
		frames:     ringchan.New[[]byte](d.opts.ReadQueueSize),
		closed:     make(chan struct{}),
		logger:     d.logger,
		maxChunk:   d.opts.MaxChunkSize,
		chunkDelay: d.opts.ChunkDelay,
	}

	if err := cl.Subscribe(txChar, false, ch.handleNotification); err != nil {
		_ = cl.CancelConnection()
		return nil, fmt.Errorf("failed to subscribe to TX characteristic: %w", err)
	}

	d.logger.WithField("address", cl.Addr().String()).Info("Serial connection established")
	return ch, nil
}

// matchTarget matches an advertisement against a device name or address.
func matchTarget(target string) ble.AdvFilter {
	return func(adv ble.Advertisement) bool {
		if strings.EqualFold(adv.LocalName(), target) {
			return true
		}
		return strings.EqualFold(adv.Addr().String(), target)
	}
}

// Channel is an open NUS frame channel. The device's TX notifications feed
// Read; Write chunks frames onto the RX characteristic. One goroutine
// reads, one writes; Close may be called from anywhere, once or more.
type Channel struct {
	client ble.Client
	txChar *ble.Characteristic
	rxChar *ble.Characteristic

	frames     *ringchan.RingChannel[[]byte]
	closed     chan struct{}
	once       sync.Once
	writeMutex sync.Mutex

	logger     *logrus.Logger
	maxChunk   int
	chunkDelay time.Duration
}

// handleNotification runs on the BLE stack's callback; it must never
// block, so a reader that falls behind loses the oldest frame.
func (c *Channel) handleNotification(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)
	if c.frames.ForceSend(frame) {
		c.logger.WithField("dropped", c.frames.Dropped()).Warn("Read queue full, evicted oldest frame")
	}
}

// Read blocks until the next frame, channel closure or link loss.
func (c *Channel) Read() ([]byte, error) {
	select {
	case frame := <-c.frames.C():
		return frame, nil
	case <-c.closed:
		return nil, ErrChannelClosed
	case <-c.client.Disconnected():
		return nil, fmt.Errorf("%w: link lost", ErrChannelClosed)
	}
}

// Write sends one frame, split into GATT-sized chunks. The write mutex
// keeps concurrent callers from interleaving chunks of different frames;
// the client's sender loop is normally the only caller.
func (c *Channel) Write(frame []byte) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	for len(frame) > 0 {
		chunk := frame
		if len(chunk) > c.maxChunk {
			chunk = frame[:c.maxChunk]
		}
		frame = frame[len(chunk):]

		if err := c.client.WriteCharacteristic(c.rxChar, chunk, false); err != nil {
			return fmt.Errorf("failed to write to RX characteristic: %w", err)
		}
		if len(frame) > 0 && c.chunkDelay > 0 {
			time.Sleep(c.chunkDelay)
		}
	}
	return nil
}

// Close unsubscribes and drops the BLE connection. Idempotent.
func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		if subErr := c.client.Unsubscribe(c.txChar, false); subErr != nil {
			c.logger.WithError(subErr).Debug("Unsubscribe failed during close")
		}
		err = c.client.CancelConnection()
	})
	return err
}
