package audit

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/snapper/internal/session"
)

// writeTimeout bounds a single journal write.
const writeTimeout = 2 * time.Second

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder journals session status changes. It implements session.Notifier
// and ignores every channel other than session.ChannelStatus.
type Recorder struct {
	repo   Repository
	logger Logger

	mu   sync.Mutex
	last map[string]key
}

type key struct {
	status string
	board  string
}

var _ session.Notifier = (*Recorder)(nil)

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}, last: make(map[string]key)}
}

// SetLogger sets the logger for write failures.
func (r *Recorder) SetLogger(l Logger) {
	r.logger = l
}

// Broadcast records payload when it is a status snapshot that differs from
// the last one recorded for the same session.
func (r *Recorder) Broadcast(channel string, payload any) {
	if channel != session.ChannelStatus {
		return
	}
	snap, ok := payload.(session.Snapshot)
	if !ok {
		return
	}

	k := key{status: snap.Status.Code(), board: snap.Board.Code()}
	r.mu.Lock()
	prev, seen := r.last[snap.SessionID]
	if seen && prev == k {
		r.mu.Unlock()
		return
	}
	r.last[snap.SessionID] = k
	r.mu.Unlock()

	ev := &Event{
		SessionID: snap.SessionID,
		Action:    ActionStatus,
		Status:    k.status,
		Board:     k.board,
		Fatal:     snap.Fatal,
		Details: map[string]any{
			"status_text": snap.StatusText,
			"board_text":  snap.BoardText,
			"return_code": snap.ReturnCode,
		},
	}
	switch {
	case snap.Fatal:
		ev.Action = ActionFatal
	case seen && prev.board != k.board:
		ev.Action = ActionBoard
	}
	if snap.LastFailure != "" {
		ev.Details["failure"] = snap.LastFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Create(ctx, ev); err != nil {
		r.logger.Warn("journaling session event failed", "action", ev.Action, "error", err)
	}
}
