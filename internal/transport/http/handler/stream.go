package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gymbuddy-notify/internal/application/realtime"
	"github.com/gymbuddy-notify/internal/infrastructure/broadcast"
	"github.com/gymbuddy-notify/internal/transport/http/middleware"
)

const heartbeatInterval = 25 * time.Second

type subscriber interface {
	Subscribe(ctx context.Context, group string) (*broadcast.Subscription, error)
}

// StreamHandler serves the caller's realtime group as Server-Sent Events.
type StreamHandler struct {
	hub       subscriber
	heartbeat time.Duration
}

func NewStreamHandler(hub subscriber) *StreamHandler {
	return &StreamHandler{hub: hub, heartbeat: heartbeatInterval}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rc := http.NewResponseController(w)

	sub, err := h.hub.Subscribe(r.Context(), realtime.Group(claims.UserID))
	if err != nil {
		httpError(w, err)
		return
	}
	defer sub.Close()

	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 5000\n: connected\n\n")
	if err := rc.Flush(); err != nil {
		slog.Warn("event stream flush unsupported", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case payload, open := <-sub.C:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
