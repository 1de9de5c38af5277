// Package refresh drives periodic rendering of the clock. It runs on an
// injected quartz.Clock so tests can step time deterministically.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/events"
	"github.com/JakeFAU/worldclock/internal/render"
	"github.com/JakeFAU/worldclock/internal/state"
)

// Mode selects the tick cadence.
type Mode string

// Supported modes.
const (
	// ModeFrame ticks at the frame interval for a smooth sub-second display.
	ModeFrame Mode = "frame"
	// ModeSecond ticks once per second.
	ModeSecond Mode = "second"
)

// DefaultFrameInterval is the frame-mode cadence when none is configured.
const DefaultFrameInterval = 50 * time.Millisecond

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFrame, ModeSecond:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown refresh mode %q", s)
	}
}

// Source supplies the state to render and signals when it changes.
// *state.Controller satisfies it.
type Source interface {
	Snapshot() state.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Config wires a Loop.
type Config struct {
	Clock         quartz.Clock
	Renderer      *render.Renderer
	Source        Source
	Emitter       events.Emitter
	FrameInterval time.Duration
	Logger        *zap.Logger
}

// Loop renders a frame per tick and reports second boundaries and state
// changes. At most one ticker is active at a time.
type Loop struct {
	clock    quartz.Clock
	renderer *render.Renderer
	source   Source
	emitter  events.Emitter
	frameInt time.Duration
	logger   *zap.Logger

	runMu  sync.Mutex
	mode   Mode
	cancel context.CancelFunc
	done   chan struct{}

	tickMu sync.Mutex

	latestMu sync.RWMutex
	latest   render.Frame
	ok       bool
}

// New validates cfg and returns an idle Loop.
func New(cfg Config) (*Loop, error) {
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("state source is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.FrameInterval > time.Second {
		return nil, fmt.Errorf("frame interval %s exceeds one second", cfg.FrameInterval)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Loop{
		clock:    cfg.Clock,
		renderer: cfg.Renderer,
		source:   cfg.Source,
		emitter:  cfg.Emitter,
		frameInt: cfg.FrameInterval,
		logger:   cfg.Logger,
	}, nil
}

// Interval returns the tick period for mode.
func (l *Loop) Interval(mode Mode) time.Duration {
	if mode == ModeSecond {
		return time.Second
	}
	return l.frameInt
}

// Mode reports the running mode, or "" when stopped.
func (l *Loop) Mode() Mode {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.mode
}

// Start begins ticking in mode. It is Restart under another name.
func (l *Loop) Start(ctx context.Context, mode Mode) error {
	return l.Restart(ctx, mode)
}

// Restart cancels the running ticker, waits for it to exit, renders once
// immediately and schedules a new ticker for mode.
func (l *Loop) Restart(ctx context.Context, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	l.runMu.Lock()
	defer l.runMu.Unlock()
	l.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done, l.mode = cancel, done, mode

	changes, unsubscribe := l.source.Subscribe()
	l.tick()
	waiter := l.clock.TickerFunc(loopCtx, l.Interval(mode), func() error {
		l.tick()
		return nil
	}, "refresh", "tick")

	go func() {
		defer close(done)
		defer unsubscribe()
		for {
			select {
			case <-loopCtx.Done():
				_ = waiter.Wait("refresh", "stop")
				return
			case <-changes:
				l.tick()
			}
		}
	}()
	l.logger.Info("refresh loop started",
		zap.String("mode", string(mode)),
		zap.Duration("interval", l.Interval(mode)),
	)
	return nil
}

// Stop halts the loop and waits for it to exit. Stopping an idle loop is a no-op.
func (l *Loop) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	l.stopLocked()
}

func (l *Loop) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel, l.done, l.mode = nil, nil, ""
}

// Latest returns the most recently rendered frame.
func (l *Loop) Latest() (render.Frame, bool) {
	l.latestMu.RLock()
	defer l.latestMu.RUnlock()
	return l.latest, l.ok
}

func (l *Loop) tick() {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	snap := l.source.Snapshot()
	now := l.clock.Now("refresh", "now")
	frame, boundary, revised := l.renderer.Frame(snap, now)

	l.latestMu.Lock()
	l.latest, l.ok = frame, true
	l.latestMu.Unlock()

	if l.emitter == nil {
		return
	}
	l.emitter.Emit(events.FromFrame(events.KindFrame, frame))
	if revised {
		l.emitter.Emit(events.FromFrame(events.KindStateChanged, frame))
	}
	if boundary {
		l.emitter.Emit(events.FromFrame(events.KindSecond, frame))
		if frame.Fallback {
			l.emitter.Emit(events.Event{
				Kind:     events.KindFallback,
				TS:       frame.Instant,
				CityID:   frame.CityID,
				Language: frame.Language,
				Revision: frame.Revision,
				Note:     "selected timezone unresolved; showing UTC",
			})
		}
	}
}
