package tz

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Present-day offsets fall inside this window. Historical local mean time
// offsets can lie outside it and are returned unchanged.
const (
	MinOffsetMinutes = -12 * 60
	MaxOffsetMinutes = 14 * 60
)

// LocalFields is the wall-clock reading of an instant in some zone.
type LocalFields struct {
	Year        int          `json:"year"`
	Month       time.Month   `json:"month"`
	Day         int          `json:"day"`
	Hour        int          `json:"hour"`
	Minute      int          `json:"minute"`
	Second      int          `json:"second"`
	Millisecond int          `json:"millisecond"`
	Weekday     time.Weekday `json:"weekday"`
}

// Time rebuilds the fields as a UTC-labelled time.Time, handy for layout formatting.
func (f LocalFields) Time() time.Time {
	return time.Date(f.Year, f.Month, f.Day, f.Hour, f.Minute, f.Second, f.Millisecond*int(time.Millisecond), time.UTC)
}

// Conversion is the result of Convert.
type Conversion struct {
	Fields        LocalFields `json:"fields"`
	OffsetMinutes int         `json:"offset_minutes"`
	// OffsetSeconds is the exact offset; local mean time offsets carry seconds.
	OffsetSeconds int `json:"offset_seconds"`
	// Fallback is set when the zone lookup failed and UTC was substituted.
	Fallback bool `json:"fallback"`
}

// FallbackHook observes degraded lookups.
type FallbackHook func(name string, err error)

// Option configures a Clock.
type Option func(*Clock)

// WithLogger attaches a logger used to report degraded lookups.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Clock) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFallbackHook registers a callback fired whenever a lookup degrades to UTC.
func WithFallbackHook(hook FallbackHook) Option {
	return func(c *Clock) {
		c.hooks = append(c.hooks, hook)
	}
}

// Clock computes wall-clock fields for arbitrary zones. It holds no mutable
// state and is safe for concurrent use.
type Clock struct {
	provider Provider
	logger   *zap.Logger
	hooks    []FallbackHook
}

// New builds a Clock over the given provider. A nil provider means the system tz database.
func New(provider Provider, opts ...Option) *Clock {
	if provider == nil {
		provider = NewSystemProvider()
	}
	c := &Clock{provider: provider, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveOffset returns the signed UTC offset, in minutes, for name at instant.
// Lookup failures never escape: the offset degrades to zero and fallback is true.
func (c *Clock) ResolveOffset(name string, instant time.Time) (minutes int, fallback bool) {
	seconds, fallback := c.ResolveOffsetSeconds(name, instant)
	return seconds / 60, fallback
}

// ResolveOffsetSeconds is ResolveOffset without truncation to whole minutes.
func (c *Clock) ResolveOffsetSeconds(name string, instant time.Time) (seconds int, fallback bool) {
	seconds, err := c.lookup(name, instant)
	if err != nil {
		c.logger.Warn("timezone lookup failed; using UTC",
			zap.String("timezone", name),
			zap.Time("instant", instant),
			zap.Error(err),
		)
		for _, hook := range c.hooks {
			hook(name, err)
		}
		return 0, true
	}
	return seconds, false
}

func (c *Clock) lookup(name string, instant time.Time) (seconds int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("timezone provider panic: %v", rec)
		}
	}()
	return c.provider.Offset(name, instant)
}

// Convert derives the wall-clock fields of instant in zone name.
func (c *Clock) Convert(instant time.Time, name string) Conversion {
	seconds, fallback := c.ResolveOffsetSeconds(name, instant)
	return Conversion{
		Fields:        FieldsAt(instant, seconds),
		OffsetMinutes: seconds / 60,
		OffsetSeconds: seconds,
		Fallback:      fallback,
	}
}

// FieldsAt shifts instant by offsetSeconds from UTC and reads the wall fields.
// Working from the UTC form keeps the host zone out of the result.
func FieldsAt(instant time.Time, offsetSeconds int) LocalFields {
	wall := instant.UTC().Add(time.Duration(offsetSeconds) * time.Second)
	return LocalFields{
		Year:        wall.Year(),
		Month:       wall.Month(),
		Day:         wall.Day(),
		Hour:        wall.Hour(),
		Minute:      wall.Minute(),
		Second:      wall.Second(),
		Millisecond: wall.Nanosecond() / int(time.Millisecond),
		Weekday:     wall.Weekday(),
	}
}

// FormatOffset renders an offset as ±HH:MM; zero is "+00:00".
func FormatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("%c%02d:%02d", sign, minutes/60, minutes%60)
}

// Daytime reports whether a local hour counts as day (06:00 up to 18:00).
func Daytime(hour int) bool {
	return hour >= 6 && hour < 18
}
