package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/render"
)

// streamFrames handles GET /v1/stream. The current frame is sent at once;
// after that a frame arrives at every displayed second and on every state
// change. Comment lines keep idle proxies from closing the connection. A
// broadcast frame matching the one just written, by revision and wall
// second, is skipped so an event id is never sent twice in a row.
func (s *Server) streamFrames(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub, cancel, err := s.stream.Subscribe()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer cancel()

	logger := s.logger.With(
		zap.String("request_id", RequestID(r.Context())),
		zap.String("subscriber", sub.ID),
	)
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	first := render.Render(s.tz, s.catalog, s.ctrl.Snapshot(), s.clock.Now("api", "stream"))
	if err := writeFrameEvent(w, first); err != nil {
		logger.Debug("stream write failed", zap.Error(err))
		return
	}
	flusher.Flush()
	lastRev, lastSec := first.Revision, first.WallSecond()

	keepalive := s.clock.NewTicker(s.keepalive, "api", "keepalive")
	defer keepalive.Stop("api", "keepalive")

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-sub.C:
			if !open {
				return
			}
			if frame.Revision == lastRev && frame.WallSecond() == lastSec {
				continue
			}
			if err := writeFrameEvent(w, frame); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
			lastRev, lastSec = frame.Revision, frame.WallSecond()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrameEvent(w http.ResponseWriter, frame render.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: frame\nid: %d-%d\ndata: %s\n\n", frame.Revision, frame.WallSecond(), data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
