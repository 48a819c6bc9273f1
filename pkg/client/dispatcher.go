package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/srg/senslink/internal/groutine"
	"github.com/srg/senslink/internal/ringchan"
	"github.com/srg/senslink/pkg/codec"
)

type eventKind int

const (
	eventMessage eventKind = iota
	eventResponse
	eventConnection
)

// event is one unit of work for the dispatcher: an inbound message, a
// response, or a connection state transition.
type event struct {
	kind     eventKind
	msg      codec.Message
	from, to State
}

// registration pairs a listener with its id; the client keeps them in
// registration order.
type registration struct {
	id       ListenerID
	listener Listener
}

// dispatcher delivers events to listeners on a single dedicated goroutine,
// isolating listener code from the receiver and sender loops. The queue is
// bounded; when listeners cannot keep up, new events are dropped with a
// logged warning rather than blocking the receiver.
type dispatcher struct {
	queue       *ringchan.RingChannel[event]
	snapshot    func() []registration
	logger      *logrus.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
	stoppedChan chan struct{}
	loopGID     atomic.Uint64
}

func newDispatcher(queueSize int, snapshot func() []registration, logger *logrus.Logger) *dispatcher {
	return &dispatcher{
		queue:       ringchan.New[event](queueSize),
		snapshot:    snapshot,
		logger:      logger,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

func (d *dispatcher) start() {
	groutine.Go(nil, "senslink-dispatcher", d.loop)
}

func (d *dispatcher) loop(ctx context.Context) {
	d.loopGID.Store(groutine.GID())
	defer close(d.stoppedChan)

	for {
		select {
		case ev := <-d.queue.C():
			d.deliver(ev)
		case <-d.stopChan:
			// Deliver what was queued before the stop signal (lifecycle
			// transitions in particular), then exit.
			for {
				select {
				case ev := <-d.queue.C():
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// enqueue hands an event to the dispatcher without blocking the producer.
func (d *dispatcher) enqueue(ev event) {
	if !d.queue.TrySend(ev) {
		d.logger.WithFields(logrus.Fields{
			"kind":    ev.kind,
			"dropped": d.queue.Dropped(),
		}).Warn("Event queue full, dropping event")
	}
}

// stop signals the loop and waits for it to drain queued events and exit.
// When called from a listener callback it runs on the dispatcher goroutine
// itself; joining would deadlock, so the wait is skipped and the loop
// winds down after the current callback returns.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })

	if groutine.GID() == d.loopGID.Load() {
		return
	}
	<-d.stoppedChan
}

func (d *dispatcher) deliver(ev event) {
	for _, reg := range d.snapshot() {
		d.notify(reg, ev)
	}
}

// notify invokes one listener for one event. A panicking listener is
// logged and does not stop delivery to the listeners behind it.
func (d *dispatcher) notify(reg registration, ev event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"listener": reg.id,
				"panic":    r,
			}).Warn("Listener callback panicked")
		}
	}()

	switch ev.kind {
	case eventMessage:
		if l, ok := reg.listener.(MessageListener); ok {
			l.OnMessage(ev.msg)
		}
	case eventResponse:
		if l, ok := reg.listener.(ResponseListener); ok {
			l.OnResponse(ev.msg)
		}
	case eventConnection:
		if l, ok := reg.listener.(ConnectionListener); ok {
			l.OnConnectionChange(ev.from, ev.to)
		}
	}
}
