package reporting

import (
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/senslink/pkg/codec"
)

// Observation is one pushed attribute value.
type Observation struct {
	AttributeID codec.AttributeID
	Value       []byte
	ReceivedAt  time.Time
}

// Observer receives every observation that passes the cache. Observers
// run on the client's dispatcher goroutine and must not block.
type Observer func(Observation)

// Cache is a message listener that keeps the latest value of every
// reported attribute and fans observations out to registered observers.
// Register it on the device client with AddListener.
type Cache struct {
	values *hashmap.Map[byte, Observation]
	logger *logrus.Logger

	mu        sync.Mutex
	observers []Observer
}

// NewCache creates an empty attribute cache.
func NewCache(logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{
		values: hashmap.New[byte, Observation](),
		logger: logger,
	}
}

// OnMessage records AttributeChanged messages and ignores everything else.
func (c *Cache) OnMessage(msg codec.Message) {
	changed, ok := msg.(*codec.AttributeChanged)
	if !ok {
		return
	}

	obs := Observation{
		AttributeID: changed.AttributeID,
		Value:       changed.Value,
		ReceivedAt:  time.Now(),
	}
	c.values.Set(byte(changed.AttributeID), obs)

	c.logger.WithFields(logrus.Fields{
		"attribute": changed.AttributeID.String(),
		"value":     codec.FormatAttributeValue(changed.AttributeID, changed.Value),
	}).Debug("Attribute value reported")

	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(obs)
	}
}

// Observe registers an observer for all future observations.
func (c *Cache) Observe(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Latest returns the most recent observation for the attribute.
func (c *Cache) Latest(id codec.AttributeID) (Observation, bool) {
	return c.values.Get(byte(id))
}

// Snapshot returns the latest observation of every attribute seen so far.
func (c *Cache) Snapshot() map[codec.AttributeID]Observation {
	out := make(map[codec.AttributeID]Observation, c.values.Len())
	c.values.Range(func(id byte, obs Observation) bool {
		out[codec.AttributeID(id)] = obs
		return true
	})
	return out
}
