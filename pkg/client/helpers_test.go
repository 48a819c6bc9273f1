package client

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/srg/senslink/pkg/codec"
)

// fakeChannel is an in-memory FrameChannel. Tests push device-originated
// frames into inbound and inspect the frames the sender loop wrote.
type fakeChannel struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu         sync.Mutex
	writes     [][]byte
	writeErr   error
	writeGate  chan struct{} // when set, Write blocks until the gate closes
	failReason error         // Read error after closed; defaults to io.ErrClosedPipe
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeChannel) Read() ([]byte, error) {
	select {
	case frame := <-f.inbound:
		return frame, nil
	case <-f.closed:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failReason != nil {
			return nil, f.failReason
		}
		return nil, io.ErrClosedPipe
	}
}

func (f *fakeChannel) Write(frame []byte) error {
	f.mu.Lock()
	gate := f.writeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), frame...))
	return nil
}

func (f *fakeChannel) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// fail simulates an unexpected transport loss.
func (f *fakeChannel) fail(err error) {
	f.mu.Lock()
	f.failReason = err
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
}

func (f *fakeChannel) push(t *testing.T, msg codec.Message) {
	t.Helper()
	frame, err := msg.Marshal()
	require.NoError(t, err)
	f.inbound <- frame
}

func (f *fakeChannel) pushRaw(frame []byte) {
	f.inbound <- frame
}

func (f *fakeChannel) writtenFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// fakeDialer hands out a prepared channel, or fails.
type fakeDialer struct {
	ch  FrameChannel
	err error
}

func (d *fakeDialer) Dial(ctx context.Context, target string) (FrameChannel, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.ch, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newConnectedClient wires a client to a fresh fake channel and connects.
func newConnectedClient(t *testing.T, opts *Options) (*Client, *fakeChannel) {
	t.Helper()

	ch := newFakeChannel()
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	c := New(&fakeDialer{ch: ch}, opts)
	require.NoError(t, c.Connect(context.Background(), "SENS-0001"))
	t.Cleanup(func() { _ = c.Shutdown() })
	return c, ch
}
