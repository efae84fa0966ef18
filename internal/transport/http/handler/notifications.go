package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gymbuddy-notify/internal/application/notification"
	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/transport/http/middleware"
)

// NotificationHandler handles the caller's own notifications.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List answers GET /notifications?unread=true|false&limit=&cursor=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	q := r.URL.Query()
	f := domain.NotificationFilter{Cursor: q.Get("cursor")}
	if v := q.Get("unread"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unread must be true or false")
			return
		}
		isRead := !unread
		f.IsRead = &isRead
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = int32(min(n, 100))
	}

	items, next, err := h.svc.List(r.Context(), claims.UserID, f)
	if err != nil {
		httpError(w, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationPage{Data: items, NextCursor: next})
}

func (h *NotificationHandler) Counts(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	counts, err := h.svc.Counts(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.svc.MarkAsRead, "marked as read")
}

func (h *NotificationHandler) MarkAsSeen(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.svc.MarkAsSeen, "marked as seen")
}

func (h *NotificationHandler) mark(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id, userID string) (bool, error), msg string) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	updated, err := fn(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	h.markAll(w, r, h.svc.MarkAllAsRead)
}

func (h *NotificationHandler) MarkAllAsSeen(w http.ResponseWriter, r *http.Request) {
	h.markAll(w, r, h.svc.MarkAllAsSeen)
}

func (h *NotificationHandler) markAll(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, userID string) (int, error)) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := fn(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AffectedEnvelope{Updated: n})
}

// DeliveryLogs answers the admin view of per-channel outcomes.
func (h *NotificationHandler) DeliveryLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.DeliveryLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.DeliveryLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
