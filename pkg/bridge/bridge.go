// Package bridge exposes a sensor device's frame link as a pseudo
// terminal, so external tools can speak the device protocol over a
// plain tty. Bytes written to the tty are reassembled into frames and
// forwarded to the device; device frames are written back to the tty.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/term"

	"github.com/srg/senslink/internal/groutine"
	"github.com/srg/senslink/pkg/client"
	"github.com/srg/senslink/pkg/codec"
)

// DefaultStreamBufferSize is the ring buffer capacity, in bytes, for
// data arriving from the tty before it is reassembled into frames.
const DefaultStreamBufferSize = 4096

// Options configures a Bridge.
type Options struct {
	// SymlinkPath, when set, creates a stable symlink to the PTY slave
	// (e.g. /tmp/sensor-tty). Removed on Stop.
	SymlinkPath string

	// StreamBufferSize bounds unparsed bytes buffered from the tty.
	// A writer that outpaces the BLE link loses the excess.
	StreamBufferSize int

	// Logger defaults to a fresh logrus logger.
	Logger *logrus.Logger
}

// Bridge tunnels frames between a FrameChannel and a PTY pair. It takes
// ownership of the channel: Stop closes it.
type Bridge struct {
	ch     client.FrameChannel
	logger *logrus.Logger

	master  *os.File
	slave   *os.File
	ttyName string
	symlink string

	stream   *ringbuffer.RingBuffer
	streamed chan struct{}

	stopChan    chan struct{}
	stoppedChan chan struct{}
	started     atomic.Bool
	closing     atomic.Bool
}

// New creates a Bridge over an already-open frame channel.
func New(ch client.FrameChannel, opts *Options) *Bridge {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	size := opts.StreamBufferSize
	if size <= 0 {
		size = DefaultStreamBufferSize
	}

	return &Bridge{
		ch:          ch,
		logger:      logger,
		symlink:     opts.SymlinkPath,
		stream:      ringbuffer.New(size),
		streamed:    make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}, 3),
	}
}

// Start opens the PTY pair and begins tunneling in background goroutines.
func (b *Bridge) Start() error {
	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("failed to open pty: %w", err)
	}
	b.master = master
	b.slave = slave
	b.ttyName = slave.Name()

	// Raw mode, or the line discipline rewrites frame bytes (ONLCR, echo).
	if _, err := term.MakeRaw(int(master.Fd())); err != nil {
		b.logger.WithError(err).Warn("Failed to set pty raw mode")
	}

	if b.symlink != "" {
		if err := os.Symlink(b.ttyName, b.symlink); err != nil {
			_ = master.Close()
			_ = slave.Close()
			return fmt.Errorf("failed to create tty symlink %s -> %s: %w", b.symlink, b.ttyName, err)
		}
	}

	b.logger.WithField("tty", b.ttyName).Info("PTY bridge started")
	b.started.Store(true)

	groutine.Go(nil, "bridge-pty-reader", func(context.Context) {
		defer func() { b.stoppedChan <- struct{}{} }()
		b.ptyReadLoop()
	})
	groutine.Go(nil, "bridge-uplink", func(context.Context) {
		defer func() { b.stoppedChan <- struct{}{} }()
		b.uplinkLoop()
	})
	groutine.Go(nil, "bridge-downlink", func(context.Context) {
		defer func() { b.stoppedChan <- struct{}{} }()
		b.downlinkLoop()
	})
	return nil
}

// TTYName returns the slave device path, e.g. /dev/pts/3.
func (b *Bridge) TTYName() string {
	return b.ttyName
}

// Stop tears the bridge down: the PTY pair and the frame channel are
// closed first so all three loops unblock, then Stop waits for them.
func (b *Bridge) Stop() error {
	if !b.closing.CompareAndSwap(false, true) {
		return nil
	}
	close(b.stopChan)

	// Without started loops there is nothing to unlink or join; the
	// channel is still owned here and must be released.
	if !b.started.Load() {
		return b.ch.Close()
	}

	if b.symlink != "" {
		if err := os.Remove(b.symlink); err != nil {
			b.logger.WithError(err).Warn("Failed to remove tty symlink")
		}
	}
	_ = b.master.Close()
	_ = b.slave.Close()
	err := b.ch.Close()

	for i := 0; i < 3; i++ {
		<-b.stoppedChan
	}

	b.logger.Info("PTY bridge stopped")
	return err
}

// ptyReadLoop moves raw bytes from the tty into the stream buffer. The
// ring decouples tty writers from the slower BLE link.
func (b *Bridge) ptyReadLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := b.master.Read(buf)
		if err != nil {
			if !b.closing.Load() {
				b.logger.WithError(err).Warn("PTY read failed")
			}
			// Wake the uplink loop so it can observe shutdown.
			select {
			case b.streamed <- struct{}{}:
			default:
			}
			return
		}
		if n == 0 {
			continue
		}

		written, werr := b.stream.Write(buf[:n])
		if werr != nil && !errors.Is(werr, ringbuffer.ErrIsFull) {
			b.logger.WithError(werr).Warn("Stream buffer write failed")
			continue
		}
		if written < n {
			b.logger.WithField("dropped", n-written).Warn("Stream buffer overflow, dropping tty bytes")
		}

		select {
		case b.streamed <- struct{}{}:
		default:
		}
	}
}

// uplinkLoop reassembles frames from the stream buffer and forwards
// them to the device.
func (b *Bridge) uplinkLoop() {
	var pending []byte
	scratch := make([]byte, 1024)

	for {
		select {
		case <-b.stopChan:
			return
		case <-b.streamed:
		}

		for {
			n, err := b.stream.TryRead(scratch)
			if n > 0 {
				pending = append(pending, scratch[:n]...)
			}
			if n == 0 || (err != nil && errors.Is(err, ringbuffer.ErrIsEmpty)) {
				break
			}
		}

		pending = b.forwardFrames(pending)
	}
}

// forwardFrames sends every complete frame at the head of pending and
// returns the unconsumed tail. Corrupt data is skipped one byte at a
// time until a valid frame boundary is found.
func (b *Bridge) forwardFrames(pending []byte) []byte {
	for len(pending) > 0 {
		msg, consumed, err := codec.Decode(pending)
		if errors.Is(err, codec.ErrTruncatedFrame) {
			if len(pending) < codec.MaxFrameLen {
				break
			}
			// A full MaxFrameLen of data that still decodes as truncated
			// means the length field itself is corrupt.
			pending = pending[1:]
			continue
		}
		if err != nil {
			b.logger.WithError(err).Debug("Skipping byte while resyncing tty stream")
			pending = pending[1:]
			continue
		}

		frame := bytes.Clone(pending[:consumed])
		pending = pending[consumed:]

		if werr := b.ch.Write(frame); werr != nil {
			if !b.closing.Load() {
				b.logger.WithError(werr).Warn("Failed to forward frame to device")
			}
			continue
		}
		b.logger.WithField("type", fmt.Sprintf("0x%02X", msg.MsgType())).Trace("Forwarded frame to device")
	}
	return pending
}

// downlinkLoop copies device frames to the tty.
func (b *Bridge) downlinkLoop() {
	for {
		frame, err := b.ch.Read()
		if err != nil {
			if !b.closing.Load() {
				b.logger.WithError(err).Warn("Device link lost, bridge downlink stopped")
			}
			return
		}

		if _, err := b.master.Write(frame); err != nil {
			if !b.closing.Load() {
				b.logger.WithError(err).Warn("PTY write failed")
			}
			return
		}
	}
}
