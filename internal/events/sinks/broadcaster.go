package sinks

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/events"
	"github.com/JakeFAU/worldclock/internal/id/uuid"
	"github.com/JakeFAU/worldclock/internal/render"
)

const defaultSubscriberBuffer = 4

// IDGenerator names subscribers.
type IDGenerator interface {
	NewID() (string, error)
}

// BroadcasterConfig tunes a Broadcaster.
type BroadcasterConfig struct {
	// Buffer is the per-subscriber channel capacity (default 4).
	Buffer int
	IDs    IDGenerator
	// OnCount observes the subscriber count after every change.
	OnCount func(n int)
	Logger  *zap.Logger
}

// Subscription is one stream consumer.
type Subscription struct {
	ID string
	C  <-chan render.Frame

	ch      chan render.Frame
	dropped int
}

// Broadcaster delivers boundary and state-change frames to stream subscribers.
// A subscriber whose buffer is full misses frames rather than stalling the rest.
type Broadcaster struct {
	buffer  int
	ids     IDGenerator
	onCount func(int)
	logger  *zap.Logger

	mu       sync.Mutex
	subs     map[string]*Subscription
	closed   bool
	lastRev  uint64
	lastSec  int64
	lastSent bool
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster(cfg BroadcasterConfig) *Broadcaster {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultSubscriberBuffer
	}
	if cfg.IDs == nil {
		cfg.IDs = uuid.NewGenerator()
	}
	if cfg.OnCount == nil {
		cfg.OnCount = func(int) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Broadcaster{
		buffer:  cfg.Buffer,
		ids:     cfg.IDs,
		onCount: cfg.OnCount,
		logger:  cfg.Logger,
		subs:    make(map[string]*Subscription),
	}
}

// Subscribe registers a consumer. The returned cancel func is idempotent and
// closes the subscription channel.
func (b *Broadcaster) Subscribe() (*Subscription, func(), error) {
	id, err := b.ids.NewID()
	if err != nil {
		return nil, nil, fmt.Errorf("subscriber id: %w", err)
	}
	ch := make(chan render.Frame, b.buffer)
	sub := &Subscription{ID: id, C: ch, ch: ch}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, fmt.Errorf("broadcaster is closed")
	}
	b.subs[id] = sub
	n := len(b.subs)
	b.mu.Unlock()
	b.onCount(n)

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.remove(id) })
	}
	return sub, cancel, nil
}

func (b *Broadcaster) remove(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(sub.ch)
	}
	n := len(b.subs)
	b.mu.Unlock()
	if ok {
		b.onCount(n)
	}
}

// Len reports the current subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Consume forwards second and state_changed frames. A frame equal in revision
// and wall second to the last one sent is skipped, so a state change landing on
// a boundary reaches subscribers once.
func (b *Broadcaster) Consume(_ context.Context, batch []events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, evt := range batch {
		if evt.Kind != events.KindSecond && evt.Kind != events.KindStateChanged {
			continue
		}
		frame := *evt.Frame
		sec := frame.WallSecond()
		if b.lastSent && frame.Revision == b.lastRev && sec == b.lastSec {
			continue
		}
		b.lastSent, b.lastRev, b.lastSec = true, frame.Revision, sec
		for _, sub := range b.subs {
			select {
			case sub.ch <- frame:
			default:
				sub.dropped++
				b.logger.Debug("stream subscriber lagging; frame dropped",
					zap.String("subscriber", sub.ID),
					zap.Int("dropped", sub.dropped),
				)
			}
		}
	}
	return nil
}

// Close ends every subscription.
func (b *Broadcaster) Close(context.Context) error {
	b.mu.Lock()
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()
	b.onCount(0)
	return nil
}
