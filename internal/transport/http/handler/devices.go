package handler

import (
	"net/http"

	"github.com/gymbuddy-notify/internal/application/push"
	"github.com/gymbuddy-notify/internal/domain"
	"github.com/gymbuddy-notify/internal/pkg/validate"
	"github.com/gymbuddy-notify/internal/transport/http/middleware"
)

// DeviceHandler handles push token registration for the caller.
type DeviceHandler struct {
	svc push.Service
}

func NewDeviceHandler(svc push.Service) *DeviceHandler { return &DeviceHandler{svc: svc} }

func (h *DeviceHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tokens, err := h.svc.Tokens(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	if tokens == nil {
		tokens = []domain.DeviceToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *DeviceHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.RegisterTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Register(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *DeviceHandler) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UnregisterTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	if err := h.svc.Unregister(r.Context(), claims.UserID, req.Token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "device token deactivated"})
}
