package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/snapper/internal/pin"
	"github.com/nerrad567/snapper/internal/signal"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// PinResponse is the JSON view of a configured pin.
type PinResponse struct {
	Name       string     `json:"name"`
	ID         int        `json:"id"`
	Mode       string     `json:"mode"`
	Direction  string     `json:"direction"`
	Active     bool       `json:"active"`
	IntervalMS int64      `json:"interval_ms,omitempty"`
	LastPoll   *time.Time `json:"last_poll,omitempty"`
}

func pinResponse(c pin.Config) PinResponse {
	resp := PinResponse{
		Name:      c.Name(),
		ID:        c.ID,
		Mode:      c.Mode.String(),
		Direction: c.Direction.String(),
		Active:    c.Active(),
	}
	if resp.Active {
		resp.IntervalMS = c.Interval.Milliseconds()
	}
	if !c.LastPoll.IsZero() {
		t := c.LastPoll.UTC()
		resp.LastPoll = &t
	}
	return resp
}

// handleHealth reports the server version, the session status and the
// result of each component check. Any failing check or a fatal session
// answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	status := http.StatusOK
	overall := "ok"

	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			overall = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}
	if snap.Fatal {
		overall = "failed"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"session":    snap.Status.Code(),
		"board":      snap.Board.Code(),
		"components": components,
	})
}

// handleStatus returns the session snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleListPins returns every configured pin ordered by id.
func (s *Server) handleListPins(w http.ResponseWriter, _ *http.Request) {
	pins := s.session.Pins()
	out := make([]PinResponse, 0, len(pins))
	for _, c := range pins {
		out = append(out, pinResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pins":  out,
		"count": len(out),
	})
}

// handleGetPin returns one pin by wire name, e.g. /pins/D5.
func (s *Server) handleGetPin(w http.ResponseWriter, r *http.Request) {
	ref, err := signal.ParsePinRef(chi.URLParam(r, "name"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if ref.Class != signal.ClassDigital {
		writeBadRequest(w, "only digital pins are tracked")
		return
	}
	for _, c := range s.session.Pins() {
		if c.ID == ref.Number {
			writeJSON(w, http.StatusOK, pinResponse(c))
			return
		}
	}
	writeNotFound(w, "pin not configured")
}
