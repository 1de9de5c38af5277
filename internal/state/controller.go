package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/locale"
)

const persistTimeout = 5 * time.Second

// Config wires a Controller.
type Config struct {
	Cities    CityLookup
	Default   ClockState
	Store     Store
	Publisher Publisher
	Topic     string
	Clock     quartz.Clock
	Logger    *zap.Logger
}

// Controller is the single owner of ClockState. Mutations are serialized;
// snapshots may be taken concurrently with them.
type Controller struct {
	cities    CityLookup
	def       ClockState
	store     Store
	publisher Publisher
	topic     string
	clock     quartz.Clock
	logger    *zap.Logger

	// writeMu orders mutations together with their persistence and notifications.
	writeMu sync.Mutex

	mu       sync.RWMutex
	current  ClockState
	revision uint64

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewController validates the default state and returns a Controller holding it.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Cities == nil {
		return nil, fmt.Errorf("city lookup is required")
	}
	if !cfg.Default.Language.Valid() {
		return nil, fmt.Errorf("default language: %w: %q", locale.ErrUnsupported, cfg.Default.Language)
	}
	if _, ok := cfg.Cities.Get(cfg.Default.CityID); !ok {
		return nil, fmt.Errorf("default city: %w: %q", ErrUnknownCity, cfg.Default.CityID)
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		cities:    cfg.Cities,
		def:       cfg.Default,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		topic:     cfg.Topic,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		current:   cfg.Default,
		subs:      make(map[int]chan struct{}),
	}, nil
}

// Restore loads the persisted state, if any. Stored values that no longer fit
// the catalog or the language set are replaced by the defaults. Restore does not publish.
func (c *Controller) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	stored, ok, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load clock state: %w", err)
	}
	if !ok {
		return nil
	}
	restored := c.def
	if stored.Language.Valid() {
		restored.Language = stored.Language
	} else {
		c.logger.Warn("stored language unsupported; using default", zap.String("language", string(stored.Language)))
	}
	if _, known := c.cities.Get(stored.CityID); known {
		restored.CityID = stored.CityID
	} else {
		c.logger.Warn("stored city not in catalog; using default", zap.String("city_id", stored.CityID))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	changed := restored != c.current
	c.current = restored
	if changed {
		c.revision++
	}
	c.mu.Unlock()
	if changed {
		c.notify()
	}
	return nil
}

// Snapshot returns a copy of the current state and its revision.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{ClockState: c.current, Revision: c.revision}
}

// SelectCity makes id the active city. Selecting the active city again changes nothing.
func (c *Controller) SelectCity(ctx context.Context, id string) (bool, error) {
	if _, ok := c.cities.Get(id); !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCity, id)
	}
	return c.apply(ctx, ChangeCity, func(s *ClockState) { s.CityID = id }), nil
}

// SetLanguage switches the display language. Setting the active language again changes nothing.
func (c *Controller) SetLanguage(ctx context.Context, lang locale.Language) (bool, error) {
	if !lang.Valid() {
		return false, fmt.Errorf("%w: %q", locale.ErrUnsupported, lang)
	}
	return c.apply(ctx, ChangeLanguage, func(s *ClockState) { s.Language = lang }), nil
}

// ToggleLanguage swaps to the other supported language. It always changes the state.
func (c *Controller) ToggleLanguage(ctx context.Context) Snapshot {
	c.apply(ctx, ChangeLanguage, func(s *ClockState) { s.Language = s.Language.Toggle() })
	return c.Snapshot()
}

func (c *Controller) apply(ctx context.Context, kind ChangeKind, mutate func(*ClockState)) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	next := c.current
	mutate(&next)
	if next == c.current {
		c.mu.Unlock()
		return false
	}
	c.current = next
	c.revision++
	snap := Snapshot{ClockState: next, Revision: c.revision}
	c.mu.Unlock()

	c.persist(ctx, kind, snap)
	c.notify()
	return true
}

func (c *Controller) persist(ctx context.Context, kind ChangeKind, snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if c.store != nil {
		if err := c.store.Save(ctx, snap.ClockState); err != nil {
			c.logger.Error("failed to save clock state", zap.Error(err))
		}
	}
	if c.publisher != nil {
		evt := ChangeEvent{Kind: kind, State: snap.ClockState, Revision: snap.Revision, At: c.clock.Now().UTC()}
		if _, err := c.publisher.Publish(ctx, c.topic, evt); err != nil {
			c.logger.Warn("failed to publish state change", zap.String("topic", c.topic), zap.Error(err))
		}
	}
	c.logger.Info("clock state changed",
		zap.String("kind", string(kind)),
		zap.String("city_id", snap.CityID),
		zap.String("language", string(snap.Language)),
		zap.Uint64("revision", snap.Revision),
	)
}

// Subscribe returns a channel that receives a signal after real changes.
// Signals coalesce: a slow reader sees at least one pending signal, never a backlog.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
