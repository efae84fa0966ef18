package handler

import (
	"net/http"

	"github.com/gymbuddy-notify/internal/application/notification"
	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/pkg/validate"
)

// EventHandler accepts domain events from other services and turns them
// into notifications.
type EventHandler struct {
	svc notification.Service
}

func NewEventHandler(svc notification.Service) *EventHandler { return &EventHandler{svc: svc} }

func (h *EventHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req domain.TriggerEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	in := createInput(req.EventContent)
	in.UserID = req.UserID
	n, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *EventHandler) TriggerBulk(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkTriggerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	created := h.svc.BulkCreate(r.Context(), req.UserIDs, createInput(req.EventContent))
	writeJSON(w, http.StatusCreated, BulkCreatedEnvelope{
		Requested: len(req.UserIDs),
		Created:   len(created),
		Data:      created,
	})
}

func createInput(e domain.EventContent) notification.CreateInput {
	return notification.CreateInput{
		Category:        e.Category,
		SenderID:        e.SenderID,
		RelatedRef:      e.Related,
		Params:          e.Params,
		Priority:        e.Priority,
		Metadata:        e.Metadata,
		TitleKey:        e.TitleKey,
		BodyKey:         e.BodyKey,
		FallbackContent: e.FallbackContent,
	}
}
