package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/locale"
	"github.com/JakeFAU/worldclock/internal/metrics"
	"github.com/JakeFAU/worldclock/internal/render"
	"github.com/JakeFAU/worldclock/internal/state"
	"github.com/JakeFAU/worldclock/internal/tz"
)

// Outcome labels for state-change metrics.
const (
	outcomeChanged   = "changed"
	outcomeUnchanged = "unchanged"
	outcomeRejected  = "rejected"
)

type cityDTO struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	TimeZone string        `json:"timezone"`
	Position city.Position `json:"position"`
	Active   bool          `json:"active"`
}

type changeResponse struct {
	Changed bool           `json:"changed"`
	State   state.Snapshot `json:"state"`
}

type selectCityRequest struct {
	CityID string `json:"city_id"`
}

type setLanguageRequest struct {
	Language string `json:"language"`
}

type conversionResponse struct {
	TimeZone      string         `json:"timezone"`
	Instant       time.Time      `json:"instant"`
	Fields        tz.LocalFields `json:"fields"`
	OffsetMinutes int            `json:"offset_minutes"`
	OffsetSeconds int            `json:"offset_seconds"`
	Offset        string         `json:"offset"`
	Fallback      bool           `json:"fallback"`
}

// listCities handles GET /v1/cities. Labels follow ?lang= when given, then
// Accept-Language, then the selected display language.
func (s *Server) listCities(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	lang := locale.Negotiate(r.Header.Get("Accept-Language"), snap.Language)
	if raw := strings.TrimSpace(r.URL.Query().Get("lang")); raw != "" {
		parsed, err := locale.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		lang = parsed
	}
	all := s.catalog.All()
	out := make([]cityDTO, 0, len(all))
	for _, c := range all {
		out = append(out, cityDTO{
			ID:       c.ID,
			Label:    c.Label(lang),
			TimeZone: c.TimeZone,
			Position: c.Position,
			Active:   c.ID == snap.CityID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language": lang,
		"cities":   out,
	})
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": s.ctrl.Snapshot()})
}

// selectCity handles POST /v1/state/city: 400 on a bad body, 404 for an id
// outside the catalog.
func (s *Server) selectCity(w http.ResponseWriter, r *http.Request) {
	var req selectCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.CityID) == "" {
		metrics.ObserveStateChange(string(state.ChangeCity), outcomeRejected)
		writeError(w, http.StatusBadRequest, "city_id required")
		return
	}
	changed, err := s.ctrl.SelectCity(r.Context(), strings.TrimSpace(req.CityID))
	if err != nil {
		metrics.ObserveStateChange(string(state.ChangeCity), outcomeRejected)
		if errors.Is(err, state.ErrUnknownCity) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("select city failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to select city")
		return
	}
	s.respondChange(w, state.ChangeCity, changed)
}

// setLanguage handles PUT /v1/state/language: 400 for an unsupported tag.
func (s *Server) setLanguage(w http.ResponseWriter, r *http.Request) {
	var req setLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveStateChange(string(state.ChangeLanguage), outcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	lang, err := locale.Parse(req.Language)
	if err != nil {
		metrics.ObserveStateChange(string(state.ChangeLanguage), outcomeRejected)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	changed, err := s.ctrl.SetLanguage(r.Context(), lang)
	if err != nil {
		metrics.ObserveStateChange(string(state.ChangeLanguage), outcomeRejected)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondChange(w, state.ChangeLanguage, changed)
}

func (s *Server) toggleLanguage(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.ToggleLanguage(r.Context())
	metrics.ObserveStateChange(string(state.ChangeLanguage), outcomeChanged)
	writeJSON(w, http.StatusOK, changeResponse{Changed: true, State: snap})
}

func (s *Server) respondChange(w http.ResponseWriter, kind state.ChangeKind, changed bool) {
	outcome := outcomeUnchanged
	if changed {
		outcome = outcomeChanged
	}
	metrics.ObserveStateChange(string(kind), outcome)
	writeJSON(w, http.StatusOK, changeResponse{Changed: changed, State: s.ctrl.Snapshot()})
}

// getFrame renders the current state at the present instant.
func (s *Server) getFrame(w http.ResponseWriter, _ *http.Request) {
	frame := render.Render(s.tz, s.catalog, s.ctrl.Snapshot(), s.clock.Now("api", "frame"))
	writeJSON(w, http.StatusOK, frame)
}

// convert handles GET /v1/convert?tz=&at=. at is RFC 3339 and defaults to now.
// An unresolvable zone is not an error: the response reports UTC with fallback set.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	zone := strings.TrimSpace(q.Get("tz"))
	if zone == "" {
		writeError(w, http.StatusBadRequest, "tz required")
		return
	}
	instant := s.clock.Now("api", "convert")
	if raw := strings.TrimSpace(q.Get("at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return
		}
		instant = parsed
	}
	conv := s.tz.Convert(instant, zone)
	writeJSON(w, http.StatusOK, conversionResponse{
		TimeZone:      zone,
		Instant:       instant.UTC(),
		Fields:        conv.Fields,
		OffsetMinutes: conv.OffsetMinutes,
		OffsetSeconds: conv.OffsetSeconds,
		Offset:        tz.FormatOffset(conv.OffsetMinutes),
		Fallback:      conv.Fallback,
	})
}
