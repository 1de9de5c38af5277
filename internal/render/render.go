// Package render turns a clock state and an instant into the text and marker
// values a display shows.
package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/locale"
	"github.com/JakeFAU/worldclock/internal/state"
	"github.com/JakeFAU/worldclock/internal/tz"
)

// Phase is the day/night classification of a marker.
type Phase string

// Marker phases.
const (
	PhaseDay   Phase = "day"
	PhaseNight Phase = "night"
)

// Marker is the per-city map pin.
type Marker struct {
	CityID   string        `json:"city_id"`
	Label    string        `json:"label"`
	Position city.Position `json:"position"`
	Hour     int           `json:"hour"`
	Phase    Phase         `json:"phase"`
	Active   bool          `json:"active"`
	Offset   string        `json:"offset"`
	Fallback bool          `json:"fallback,omitempty"`
}

// Frame is one complete rendering of the clock.
type Frame struct {
	CityID        string          `json:"city_id"`
	Language      locale.Language `json:"language"`
	Revision      uint64          `json:"revision"`
	Instant       time.Time       `json:"instant"`
	Time          string          `json:"time"`
	Meridiem      string          `json:"meridiem"`
	SubSecond     string          `json:"sub_second"`
	Date          string          `json:"date"`
	TimeZoneLabel string          `json:"timezone_label"`
	Offset        string          `json:"offset"`
	OffsetMinutes int             `json:"offset_minutes"`
	OffsetSeconds int             `json:"offset_seconds"`
	Fallback      bool            `json:"fallback"`
	Markers       []Marker        `json:"markers"`
}

// WallSecond identifies the rendered second: the selected zone's wall clock
// truncated to whole seconds, expressed as Unix seconds.
func (f Frame) WallSecond() int64 {
	return f.Instant.Unix() + int64(f.OffsetSeconds)
}

// Catalog is what rendering needs from the city catalog.
type Catalog interface {
	Get(id string) (city.City, bool)
	All() []city.City
}

// Render builds a full frame, markers included.
func Render(clk *tz.Clock, cat Catalog, snap state.Snapshot, instant time.Time) Frame {
	f := head(clk, cat, snap, instant)
	f.Markers = Markers(clk, cat, snap.ClockState, instant)
	return f
}

func head(clk *tz.Clock, cat Catalog, snap state.Snapshot, instant time.Time) Frame {
	lang := snap.Language
	selected, ok := cat.Get(snap.CityID)
	zone := selected.TimeZone
	place := selected.Label(lang)
	if !ok {
		// An unknown id still renders, degraded to UTC like any failed lookup.
		place = snap.CityID
	}
	conv := clk.Convert(instant, zone)
	fields := conv.Fields
	offset := tz.FormatOffset(conv.OffsetMinutes)

	return Frame{
		CityID:        snap.CityID,
		Language:      lang,
		Revision:      snap.Revision,
		Instant:       instant.UTC(),
		Time:          fmt.Sprintf("%02d:%02d:%02d", hour12(fields.Hour), fields.Minute, fields.Second),
		Meridiem:      lang.Meridiem(fields.Hour),
		SubSecond:     fmt.Sprintf("%03d", fields.Millisecond),
		Date:          lang.FormatDate(fields.Time()),
		TimeZoneLabel: lang.ZoneLabel(place, offset),
		Offset:        offset,
		OffsetMinutes: conv.OffsetMinutes,
		OffsetSeconds: conv.OffsetSeconds,
		Fallback:      conv.Fallback || !ok,
	}
}

// Markers computes one marker per catalog city, in catalog order.
func Markers(clk *tz.Clock, cat Catalog, st state.ClockState, instant time.Time) []Marker {
	cities := cat.All()
	out := make([]Marker, 0, len(cities))
	for _, c := range cities {
		conv := clk.Convert(instant, c.TimeZone)
		phase := PhaseNight
		if tz.Daytime(conv.Fields.Hour) {
			phase = PhaseDay
		}
		out = append(out, Marker{
			CityID:   c.ID,
			Label:    c.Label(st.Language),
			Position: c.Position,
			Hour:     conv.Fields.Hour,
			Phase:    phase,
			Active:   c.ID == st.CityID,
			Offset:   tz.FormatOffset(conv.OffsetMinutes),
			Fallback: conv.Fallback,
		})
	}
	return out
}

func hour12(h int) int {
	h %= 12
	if h == 0 {
		return 12
	}
	return h
}

// Renderer produces frames and reuses the marker set until the rendered second
// or the state revision changes. It is safe for concurrent use.
type Renderer struct {
	clock   *tz.Clock
	catalog Catalog

	mu       sync.Mutex
	primed   bool
	second   int64
	revision uint64
	markers  []Marker
}

// NewRenderer returns a Renderer over clk and cat.
func NewRenderer(clk *tz.Clock, cat Catalog) *Renderer {
	return &Renderer{clock: clk, catalog: cat}
}

// Frame renders snap at instant. boundary reports that the rendered second
// differs from the previous call (the first call counts as one); stateChanged
// reports a new revision. Markers are recomputed only when either is true.
func (r *Renderer) Frame(snap state.Snapshot, instant time.Time) (frame Frame, boundary, stateChanged bool) {
	frame = head(r.clock, r.catalog, snap, instant)
	sec := frame.WallSecond()

	r.mu.Lock()
	defer r.mu.Unlock()
	boundary = !r.primed || sec != r.second
	stateChanged = r.primed && snap.Revision != r.revision
	if boundary || stateChanged {
		r.markers = Markers(r.clock, r.catalog, snap.ClockState, instant)
	}
	r.primed = true
	r.second = sec
	r.revision = snap.Revision
	frame.Markers = append([]Marker(nil), r.markers...)
	return frame, boundary, stateChanged
}
