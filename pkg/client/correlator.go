package client

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/senslink/pkg/codec"
)

// pendingCall tracks one outstanding synchronous send. It is resolved,
// failed or timed out exactly once; resp/err are written under the
// correlator lock before done is closed, so readers that wait on done see
// a consistent result.
type pendingCall struct {
	id           uint64
	responseType byte
	createdAt    time.Time
	done         chan struct{}
	resp         codec.Message
	err          error
}

// correlator matches arriving responses to pending synchronous calls. The
// wire protocol carries no request identifier, so calls are keyed by the
// expected response type; concurrent calls for the same type resolve in
// registration order (oldest first), which the insertion-ordered map gives
// us for free.
type correlator struct {
	mu      sync.Mutex
	nextID  uint64
	pending *orderedmap.OrderedMap[uint64, *pendingCall]
}

func newCorrelator() *correlator {
	return &correlator{
		pending: orderedmap.New[uint64, *pendingCall](),
	}
}

// register creates a PendingCall expecting responseType. The call is
// resolvable immediately, before the request frame is even written, so an
// impossibly fast response can never be missed.
func (c *correlator) register(responseType byte) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	p := &pendingCall{
		id:           c.nextID,
		responseType: responseType,
		createdAt:    time.Now(),
		done:         make(chan struct{}),
	}
	c.pending.Set(p.id, p)
	return p
}

// resolve hands msg to the oldest pending call expecting its type and
// reports whether a match occurred. An unmatched response is not an error;
// the caller forwards it to response listeners either way.
func (c *correlator) resolve(msg codec.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for pair := c.pending.Oldest(); pair != nil; pair = pair.Next() {
		p := pair.Value
		if p.responseType != msg.MsgType() {
			continue
		}
		c.pending.Delete(p.id)
		p.resp = msg
		close(p.done)
		return true
	}
	return false
}

// fail terminates p with err unless it was already resolved.
func (c *correlator) fail(p *pendingCall, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, present := c.pending.Get(p.id); !present {
		return
	}
	c.pending.Delete(p.id)
	p.err = err
	close(p.done)
}

// failAll terminates every pending call with err. Used on shutdown and
// transport loss.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for pair := c.pending.Oldest(); pair != nil; {
		p := pair.Value
		pair = pair.Next()
		c.pending.Delete(p.id)
		p.err = err
		close(p.done)
	}
}

// await blocks the calling goroutine until p is resolved or the timeout
// elapses. On timeout the call is removed atomically, so a response that
// arrives a moment later is treated as unmatched and reaches listeners
// only.
func (c *correlator) await(p *pendingCall, timeout time.Duration) (codec.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.resp, p.err
	case <-timer.C:
	}

	c.mu.Lock()
	if _, present := c.pending.Get(p.id); present {
		c.pending.Delete(p.id)
		c.mu.Unlock()
		return nil, ErrTimeout
	}
	c.mu.Unlock()

	// A resolve or fail won the race against the timer; its result stands.
	<-p.done
	return p.resp, p.err
}

// outstanding returns the number of pending calls, for stats.
func (c *correlator) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}
