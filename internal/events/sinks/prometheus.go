package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/worldclock/internal/events"
)

// PrometheusSink exports refresh-loop activity.
type PrometheusSink struct {
	frames        prometheus.Counter
	seconds       prometheus.Counter
	stateChanges  *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	offsetMinutes prometheus.Gauge
}

// NewPrometheusSink registers the collectors against reg (the default registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worldclock_frames_total",
			Help: "Frames rendered by the refresh loop.",
		}),
		seconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worldclock_second_boundaries_total",
			Help: "Wall-second boundaries crossed by the refresh loop.",
		}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldclock_state_changes_total",
			Help: "State changes observed by the refresh loop, by selected city.",
		}, []string{"city_id"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldclock_fallback_seconds_total",
			Help: "Rendered seconds whose selected zone degraded to UTC, by city.",
		}, []string{"city_id"}),
		offsetMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worldclock_selected_offset_minutes",
			Help: "UTC offset of the selected city at the last second boundary.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.frames,
		s.seconds,
		s.stateChanges,
		s.fallbacks,
		s.offsetMinutes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case events.KindFrame:
			s.frames.Inc()
		case events.KindSecond:
			s.seconds.Inc()
			s.offsetMinutes.Set(float64(evt.Frame.OffsetMinutes))
		case events.KindStateChanged:
			s.stateChanges.WithLabelValues(evt.CityID).Inc()
			s.offsetMinutes.Set(float64(evt.Frame.OffsetMinutes))
		case events.KindFallback:
			s.fallbacks.WithLabelValues(evt.CityID).Inc()
		}
	}
	return nil
}

// Close implements events.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
