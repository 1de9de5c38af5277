package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/worldclock/internal/locale"
	"github.com/JakeFAU/worldclock/internal/render"
)

// Kind classifies an Event.
type Kind string

// Event kinds.
const (
	KindFrame        Kind = "frame"
	KindSecond       Kind = "second"
	KindStateChanged Kind = "state_changed"
	KindFallback     Kind = "tz_fallback"
)

// Event is one observation from the refresh loop.
type Event struct {
	Kind Kind
	// TS is the instant the frame was rendered for.
	TS       time.Time
	Frame    *render.Frame
	CityID   string
	Language locale.Language
	Revision uint64
	// Note carries low-volume context such as the zone that failed to resolve.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindFrame, KindSecond, KindStateChanged:
		if e.Frame == nil {
			return fmt.Errorf("%s event requires a frame", e.Kind)
		}
	case KindFallback:
		if e.CityID == "" {
			return errors.New("tz_fallback event requires a city")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}

// FromFrame builds an event of kind k describing f.
func FromFrame(k Kind, f render.Frame) Event {
	return Event{
		Kind:     k,
		TS:       f.Instant,
		Frame:    &f,
		CityID:   f.CityID,
		Language: f.Language,
		Revision: f.Revision,
	}
}
