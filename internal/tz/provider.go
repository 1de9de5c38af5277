// Package tz converts absolute instants into wall-clock fields for named IANA
// zones without consulting the host's configured timezone.
package tz

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	// Embedded zoneinfo keeps lookups working on hosts without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// ErrUnknownZone signals that a timezone identifier could not be resolved.
var ErrUnknownZone = errors.New("unknown timezone")

// Provider is the timezone database capability the Clock depends on.
type Provider interface {
	// Location returns the rule set for an IANA identifier.
	Location(name string) (*time.Location, error)
	// Offset returns the UTC offset, in seconds, that applies to name at the given instant.
	Offset(name string, at time.Time) (int, error)
}

// SystemProvider resolves zones through the Go runtime's tz database. Parsed
// locations are cached; offsets are always evaluated at the requested instant.
type SystemProvider struct {
	mu   sync.RWMutex
	locs map[string]*time.Location
}

// NewSystemProvider creates an empty SystemProvider.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{locs: make(map[string]*time.Location)}
}

// Location loads (or returns the cached) location for name. "Local" is
// rejected because it would resolve to the host zone.
func (p *SystemProvider) Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	p.mu.RLock()
	loc, ok := p.locs[name]
	p.mu.RUnlock()
	if ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownZone, name, err)
	}
	p.mu.Lock()
	p.locs[name] = loc
	p.mu.Unlock()
	return loc, nil
}

// Offset reports the offset in seconds east of UTC for name at instant at.
func (p *SystemProvider) Offset(name string, at time.Time) (int, error) {
	loc, err := p.Location(name)
	if err != nil {
		return 0, err
	}
	_, offset := at.In(loc).Zone()
	return offset, nil
}
