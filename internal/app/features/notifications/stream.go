// internal/app/features/notifications/stream.go
package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// latest is a one-slot mailbox that keeps only the newest inbox. Puts
// never block, so a slow client cannot stall the writer that caused the
// change.
type latest chan fanout.Inbox

func (l latest) put(in fanout.Inbox) {
	for {
		select {
		case l <- in:
			return
		default:
		}
		select {
		case <-l:
		default:
		}
	}
}

// ServeStream handles GET /notifications/stream. It holds one inbox
// listener, scoped to the request's signed-in user, and writes a full
// inbox as an SSE "inbox" event after every change. When the request's
// session settles on another user the listener is rebound; when it
// settles signed out the stream ends. The listener is released when the
// client goes away.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.ErrLog.LogServerError(w, r, "stream without flusher", nil, "Streaming is not supported.", "/notifications")
		return
	}

	userID := auth.CurrentSession(r).UserID()
	clientID := uuid.NewString()
	log := h.Log.With(zap.String("user_id", userID), zap.String("client_id", clientID))

	ctx := r.Context()
	updates := make(latest, 1)
	scope := h.Fanout.NewScope(updates.put)
	defer scope.Close()
	if err := scope.Bind(ctx, userID); err != nil {
		h.ErrLog.LogServerError(w, r, "open inbox listener", err, "Could not open the notification stream.", "/notifications")
		return
	}

	ended := make(chan struct{})
	var endOnce sync.Once
	if tracker := auth.TrackerFrom(ctx); tracker != nil {
		stop := tracker.Watch(func(s auth.Session) {
			if s.Loading {
				return
			}
			if err := scope.Bind(ctx, s.UserID()); err != nil {
				log.Warn("inbox listener rebind failed", zap.Error(err))
			}
			if scope.Key() == "" {
				endOnce.Do(func() { close(ended) })
			}
		})
		defer stop()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: 3000\n\n")
	flusher.Flush()
	log.Debug("inbox stream opened")

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug("inbox stream closed")
			return
		case <-ended:
			log.Debug("inbox stream ended by sign-out")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case in := <-updates:
			data, err := json.Marshal(in)
			if err != nil {
				log.Warn("inbox encode failed", zap.Error(err))
				continue
			}
			seq++
			if _, err := fmt.Fprintf(w, "event: inbox\nid: %d\ndata: %s\n\n", seq, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
