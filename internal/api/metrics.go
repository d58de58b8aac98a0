package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/snapper/internal/session"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	Session       SessionMetrics     `json:"session"`
	Pins          PinMetrics         `json:"pins"`
	Inbox         session.InboxStats `json:"inbox"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// SessionMetrics summarises the broker session.
type SessionMetrics struct {
	Status   string           `json:"status"`
	Board    string           `json:"board"`
	Online   bool             `json:"online"`
	Counters session.Counters `json:"counters"`
}

// PinMetrics counts configured pins.
type PinMetrics struct {
	Configured int `json:"configured"`
	Polled     int `json:"polled"`
}

// handleMetrics returns runtime, hub and session statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.session.Snapshot()
	pins := s.session.Pins()
	polled := 0
	for _, c := range pins {
		if c.Active() {
			polled++
		}
	}

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,      //nolint:mnd // bytes to MB
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024, //nolint:mnd // bytes to MB
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Session: SessionMetrics{
			Status:   snap.Status.Code(),
			Board:    snap.Board.Code(),
			Online:   snap.Status.Online(),
			Counters: snap.Counters,
		},
		Pins:  PinMetrics{Configured: len(pins), Polled: polled},
		Inbox: snap.Inbox,
	})
}
