// Package state owns the selected language and city and serializes every change to them.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/locale"
)

// ErrUnknownCity is returned when a city id is not in the catalog.
var ErrUnknownCity = errors.New("unknown city")

// ClockState is the user-facing selection: which language and which city.
type ClockState struct {
	Language locale.Language `json:"language"`
	CityID   string          `json:"city_id"`
}

// Snapshot is a copy of the state tagged with a revision that grows on every real change.
type Snapshot struct {
	ClockState
	Revision uint64 `json:"revision"`
}

// ChangeKind names what a change touched.
type ChangeKind string

// Change kinds.
const (
	ChangeCity     ChangeKind = "city"
	ChangeLanguage ChangeKind = "language"
)

// ChangeEvent is the payload published on every real change.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	State    ClockState `json:"state"`
	Revision uint64     `json:"revision"`
	At       time.Time  `json:"at"`
}

// CityLookup resolves city ids; *city.Catalog satisfies it.
type CityLookup interface {
	Get(id string) (city.City, bool)
}

// Store persists the state between restarts.
type Store interface {
	// Load returns the stored state, or false when nothing has been saved yet.
	Load(ctx context.Context) (ClockState, bool, error)
	Save(ctx context.Context, s ClockState) error
}

// Publisher announces state changes to other processes.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
