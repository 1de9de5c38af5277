package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/config"
	"github.com/JakeFAU/worldclock/internal/events/sinks"
	"github.com/JakeFAU/worldclock/internal/locale"
	"github.com/JakeFAU/worldclock/internal/metrics"
	"github.com/JakeFAU/worldclock/internal/render"
	"github.com/JakeFAU/worldclock/internal/state"
	"github.com/JakeFAU/worldclock/internal/tz"
)

// StateController is the slice of *state.Controller the handlers use.
type StateController interface {
	Snapshot() state.Snapshot
	SelectCity(ctx context.Context, id string) (bool, error)
	SetLanguage(ctx context.Context, lang locale.Language) (bool, error)
	ToggleLanguage(ctx context.Context) state.Snapshot
}

// FrameStream hands out stream subscriptions; *sinks.Broadcaster satisfies it.
type FrameStream interface {
	Subscribe() (*sinks.Subscription, func(), error)
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	MustNewID() string
}

// Dependencies groups the collaborators behind the handlers.
type Dependencies struct {
	Controller StateController
	Catalog    render.Catalog
	TZ         *tz.Clock
	Stream     FrameStream
	IDs        IDGenerator
	// Clock supplies "now" for one-shot renders and the stream keepalive.
	Clock quartz.Clock
	// Ready reports whether the service can serve traffic. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the clock controller and renderer.
type Server struct {
	router    chi.Router
	ctrl      StateController
	catalog   render.Catalog
	tz        *tz.Clock
	stream    FrameStream
	ids       IDGenerator
	clock     quartz.Clock
	ready     func(ctx context.Context) error
	keepalive time.Duration
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Dependencies, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.TZ == nil {
		deps.TZ = tz.New(nil)
	}
	keepalive := cfg.Keepalive()
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	requestTimeout := cfg.RequestTimeout()
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	s := &Server{
		ctrl:      deps.Controller,
		catalog:   deps.Catalog,
		tz:        deps.TZ,
		stream:    deps.Stream,
		ids:       deps.IDs,
		clock:     deps.Clock,
		ready:     deps.Ready,
		keepalive: keepalive,
		logger:    logger.Named("api"),
	}

	metrics.Init()
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		// The stream outlives any request timeout.
		r.Get("/stream", s.streamFrames)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Get("/cities", s.listCities)
			r.Get("/frame", s.getFrame)
			r.Get("/convert", s.convert)
			r.Get("/state", s.getState)
			r.Post("/state/city", s.selectCity)
			r.Put("/state/language", s.setLanguage)
			r.Post("/state/language/toggle", s.toggleLanguage)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type requestIDKey struct{}

// RequestID returns the ID assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqID string
		if s.ids != nil {
			reqID = s.ids.MustNewID()
		}
		if reqID == "" {
			reqID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					zap.String("request_id", RequestID(r.Context())),
					zap.Any("panic", rec),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
