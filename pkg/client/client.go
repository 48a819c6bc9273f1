// Package client implements the concurrent message facade for one sensor
// device connection: fire-and-forget sends, synchronous send-and-wait with
// response correlation, and asynchronous listener delivery of unsolicited
// messages, responses and connection lifecycle events.
//
// Four goroutine roles cooperate per connection: the caller's goroutines,
// a receiver loop reading frames from the transport, a sender loop
// serializing outbound writes, and a dispatcher delivering listener
// callbacks. The transport and codec stay external: any Dialer/FrameChannel
// pair works, the wire format lives in pkg/codec.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/senslink/internal/groutine"
	"github.com/srg/senslink/pkg/codec"
)

// FrameChannel is the duplex byte-frame channel to the device. Read blocks
// until the next frame arrives or the channel fails/closes. The client is
// the only writer and the only reader of a channel it owns.
type FrameChannel interface {
	Read() ([]byte, error)
	Write(frame []byte) error
	Close() error
}

// Dialer resolves a target (device name or address) and opens a frame
// channel to it.
type Dialer interface {
	Dial(ctx context.Context, target string) (FrameChannel, error)
}

// Options configures a Client.
type Options struct {
	// SendQueueSize bounds the outbound frame queue. Enqueueing onto a
	// full queue fails with ErrQueueFull instead of blocking or dropping.
	SendQueueSize int

	// EventQueueSize bounds the dispatcher queue feeding listeners.
	EventQueueSize int

	// RequestTimeout is the default SendAndWait deadline when the caller
	// passes 0.
	RequestTimeout time.Duration

	// OnSendError, when set, receives write failures of fire-and-forget
	// sends. When nil such failures are logged.
	OnSendError func(err error)

	Logger *logrus.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		SendQueueSize:  64,
		EventQueueSize: 256,
		RequestTimeout: 5 * time.Second,
	}
}

// outbound is one queued frame, with the pending call to fail if the write
// fails (nil for fire-and-forget sends).
type outbound struct {
	frame   []byte
	pending *pendingCall
}

// link bundles the per-connection moving parts so a reconnect never races
// a previous connection's loops.
type link struct {
	ch          FrameChannel
	corr        *correlator
	disp        *dispatcher
	sendq       chan outbound
	stopChan    chan struct{}
	stoppedChan chan struct{} // one token per loop (receiver, sender)
	closing     atomic.Bool   // caller-initiated shutdown in progress
}

// Client is the facade for one logical device connection.
type Client struct {
	dialer Dialer
	opts   *Options
	logger *logrus.Logger

	mu   sync.RWMutex // guards link and state transitions
	st   atomic.Int32
	link *link

	lmu       sync.RWMutex // guards the listener registry
	nextLID   ListenerID
	listeners []registration
}

// New creates a Client using dialer for target resolution and channel
// setup. Listeners may be registered before Connect.
func New(dialer Dialer, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		dialer: dialer,
		opts:   opts,
		logger: logger,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.st.Load())
}

// Connect resolves target, opens the frame channel and starts the
// receiver, sender and dispatcher loops. It fails with ErrAlreadyConnected
// when a connection is established or in progress; transport resolution
// and open failures are wrapped and returned as-is for errors.Is checks.
func (c *Client) Connect(ctx context.Context, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != Disconnected {
		return ErrAlreadyConnected
	}

	l := &link{
		corr:        newCorrelator(),
		sendq:       make(chan outbound, c.opts.SendQueueSize),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}, 2),
	}
	l.disp = newDispatcher(c.opts.EventQueueSize, c.snapshotListeners, c.logger)
	l.disp.start()
	c.link = l
	c.transition(l, Connecting)

	ch, err := c.dialer.Dial(ctx, target)
	if err != nil {
		c.transition(l, Disconnected)
		c.link = nil
		l.disp.stop()
		return fmt.Errorf("connect %q: %w", target, err)
	}
	l.ch = ch

	groutine.Go(nil, "senslink-receiver", func(context.Context) { c.receiveLoop(l) })
	groutine.Go(nil, "senslink-sender", func(context.Context) { c.sendLoop(l) })
	c.transition(l, Connected)

	c.logger.WithField("target", target).Info("Connected to device")
	return nil
}

// Send enqueues a fire-and-forget request. The frame is written by the
// sender loop in enqueue order; a write failure is reported through
// Options.OnSendError or the log, never to unrelated callers.
func (c *Client) Send(req codec.Request) error {
	c.mu.RLock()
	l := c.link
	connected := c.State() == Connected
	c.mu.RUnlock()

	if !connected || l == nil {
		return ErrNotConnected
	}

	frame, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	select {
	case l.sendq <- outbound{frame: frame}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SendAndWait enqueues req and blocks the calling goroutine until the
// correlated response arrives, the timeout elapses, or the connection goes
// away. A timeout of 0 uses Options.RequestTimeout. Only the caller
// blocks; the receiver, sender and dispatcher loops never do.
func (c *Client) SendAndWait(req codec.Request, timeout time.Duration) (codec.Message, error) {
	c.mu.RLock()
	l := c.link
	connected := c.State() == Connected
	c.mu.RUnlock()

	if !connected || l == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}

	// Register before enqueueing so even a response that beats the write
	// completion finds its pending call.
	p := l.corr.register(req.ResponseType())

	// Shutdown sets closing before it fails outstanding calls; a pending
	// registered after that pass would only ever run into its timeout.
	if l.closing.Load() {
		l.corr.fail(p, ErrConnectionClosed)
		return nil, ErrConnectionClosed
	}

	frame, err := req.Marshal()
	if err != nil {
		l.corr.fail(p, err)
		return nil, fmt.Errorf("encode request: %w", err)
	}

	select {
	case l.sendq <- outbound{frame: frame, pending: p}:
	default:
		l.corr.fail(p, ErrQueueFull)
		return nil, ErrQueueFull
	}

	return l.corr.await(p, timeout)
}

// AddListener registers l for every capability it implements and returns
// its id. Registration is safe concurrently with event delivery.
func (c *Client) AddListener(l Listener) (ListenerID, error) {
	switch l.(type) {
	case MessageListener, ResponseListener, ConnectionListener:
	default:
		return 0, errors.New("listener implements no listener interface")
	}

	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextLID++
	c.listeners = append(c.listeners, registration{id: c.nextLID, listener: l})
	return c.nextLID, nil
}

// RemoveListener removes a registration. Removing an unknown id is a no-op.
func (c *Client) RemoveListener(id ListenerID) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	for i, reg := range c.listeners {
		if reg.id == id {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// snapshotListeners returns the registry in registration order; the
// dispatcher takes one snapshot per delivered event.
func (c *Client) snapshotListeners() []registration {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	snapshot := make([]registration, len(c.listeners))
	copy(snapshot, c.listeners)
	return snapshot
}

// Shutdown stops all three loops, discards unsent frames, fails any
// outstanding synchronous calls with ErrConnectionClosed and releases the
// frame channel. It is idempotent and safe to call from any goroutine,
// including from within a listener callback.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	if st := c.State(); st == Disconnected || st == Disconnecting {
		c.mu.Unlock()
		return nil
	}
	l := c.link
	c.transition(l, Disconnecting)
	l.closing.Store(true)
	close(l.stopChan)
	closeErr := l.ch.Close() // unblocks the receiver's Read
	c.mu.Unlock()

	// Join receiver and sender before failing pendings so no new result
	// races the failure.
	<-l.stoppedChan
	<-l.stoppedChan
	l.corr.failAll(ErrConnectionClosed)

	c.mu.Lock()
	c.transition(l, Disconnected)
	c.link = nil
	c.mu.Unlock()

	// Last: the dispatcher, so the Disconnecting/Disconnected events above
	// still reach connection listeners.
	l.disp.stop()

	if closeErr != nil {
		c.logger.WithError(closeErr).Warn("Error closing frame channel")
	}
	c.logger.Info("Client shut down")
	return nil
}

// Stats exposes queue depths for monitoring.
type Stats struct {
	State           State
	SendQueueLen    int
	EventQueueLen   int
	EventsDropped   int64
	PendingRequests int
}

// Stats returns a snapshot of the client's runtime counters.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{State: c.State()}
	if c.link != nil {
		s.SendQueueLen = len(c.link.sendq)
		s.EventQueueLen = c.link.disp.queue.Len()
		s.EventsDropped = c.link.disp.queue.Dropped()
		s.PendingRequests = c.link.corr.outstanding()
	}
	return s
}

// transition moves the state machine and queues the lifecycle event.
// Callers hold c.mu, which makes transition order equal delivery order.
func (c *Client) transition(l *link, to State) {
	from := c.State()
	if from == to {
		return
	}
	c.st.Store(int32(to))
	c.logger.WithFields(logrus.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Debug("Connection state changed")
	if l != nil {
		l.disp.enqueue(event{kind: eventConnection, from: from, to: to})
	}
}

// receiveLoop pulls frames from the channel, decodes them and routes each
// message to the correlator and the dispatcher. Decode failures are logged
// and skipped; only channel failure or shutdown ends the loop.
func (c *Client) receiveLoop(l *link) {
	defer func() { l.stoppedChan <- struct{}{} }()

	for {
		frame, err := l.ch.Read()
		if err != nil {
			if l.closing.Load() {
				return
			}
			c.logger.WithError(err).Warn("Frame channel closed unexpectedly")
			c.handleConnectionLost(l)
			return
		}

		msgs, derr := codec.DecodeAll(frame)
		for _, msg := range msgs {
			c.route(l, msg)
		}
		if derr != nil {
			// Malformed tail of a frame never terminates the loop.
			c.logger.WithError(derr).WithField("bytes", len(frame)).Warn("Dropping undecodable frame data")
		}
	}
}

// route resolves responses against the correlator and forwards every
// message to the dispatcher. Responses reach response listeners whether or
// not they matched a pending call.
func (c *Client) route(l *link, msg codec.Message) {
	if codec.IsResponse(msg) {
		matched := l.corr.resolve(msg)
		c.logger.WithFields(logrus.Fields{
			"type":    fmt.Sprintf("0x%02x", msg.MsgType()),
			"matched": matched,
		}).Debug("Response received")
		l.disp.enqueue(event{kind: eventResponse, msg: msg})
		return
	}
	l.disp.enqueue(event{kind: eventMessage, msg: msg})
}

// sendLoop serializes outbound writes: the frame channel never observes
// concurrent writes, and frames go out in enqueue order. A failed write is
// surfaced to the one caller whose frame it was.
func (c *Client) sendLoop(l *link) {
	defer func() { l.stoppedChan <- struct{}{} }()

	for {
		select {
		case <-l.stopChan:
			return
		case out := <-l.sendq:
			err := l.ch.Write(out.frame)
			if err == nil {
				continue
			}
			if out.pending != nil {
				// Fail the synchronous call now instead of letting it
				// run into its timeout.
				l.corr.fail(out.pending, fmt.Errorf("%w: %v", ErrSendFailed, err))
				continue
			}
			if c.opts.OnSendError != nil {
				c.opts.OnSendError(fmt.Errorf("%w: %v", ErrSendFailed, err))
				continue
			}
			c.logger.WithError(err).Warn("Failed to write outbound frame")
		}
	}
}

// handleConnectionLost runs on the receiver goroutine when the transport
// fails underneath an established connection: transition straight to
// Disconnected, fail outstanding calls, stop the sender and dispatcher.
func (c *Client) handleConnectionLost(l *link) {
	c.mu.Lock()
	if c.link != l || l.closing.Load() {
		// A concurrent Shutdown already took ownership.
		c.mu.Unlock()
		return
	}
	close(l.stopChan)
	_ = l.ch.Close()
	c.transition(l, Disconnected)
	c.link = nil
	c.mu.Unlock()

	l.corr.failAll(ErrConnectionClosed)

	// Join the sender (one token; the receiver's own token is pushed by
	// our caller's defer), then the dispatcher.
	<-l.stoppedChan
	l.disp.stop()
}
