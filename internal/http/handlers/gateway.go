// Package handlers exposes the management API: conversation turns over HTTP,
// bridge status, message history, and session administration.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/valarieck/waconcierge/internal/channel"
	"github.com/valarieck/waconcierge/internal/engine"
	"github.com/valarieck/waconcierge/pkg/logging"
)

// Bridge is the messaging-channel surface the handlers need. Nil when the
// deployment runs without a WhatsApp bridge.
type Bridge interface {
	Status() string
	Send(userID, text, mediaURL string) error
}

// AIHealthChecker probes the AI backend. Nil when no AI gateway is wired.
type AIHealthChecker interface {
	Healthy(ctx context.Context) (bool, string)
}

// GatewayHandler serves the management API around the conversation engine.
type GatewayHandler struct {
	engine    *engine.Engine
	bridge    Bridge
	aiHealth  AIHealthChecker
	history   *channel.History
	logger    *logging.Logger
	startedAt time.Time
}

func NewGatewayHandler(eng *engine.Engine, bridge Bridge, aiHealth AIHealthChecker, history *channel.History, logger *logging.Logger) *GatewayHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &GatewayHandler{
		engine:    eng,
		bridge:    bridge,
		aiHealth:  aiHealth,
		history:   history,
		logger:    logger,
		startedAt: time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HealthCheck reports process liveness.
func (h *GatewayHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports bridge connectivity and basic gateway stats.
func (h *GatewayHandler) Status(w http.ResponseWriter, r *http.Request) {
	bridgeStatus := "disabled"
	if h.bridge != nil {
		bridgeStatus = h.bridge.Status()
	}
	resp := map[string]any{
		"bridge":         bridgeStatus,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	}
	if h.history != nil {
		resp["history_size"] = h.history.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

type handleRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// HandleMessage runs one conversation turn for a user, as if the text had
// arrived over the channel. Useful for testing flows without a phone.
func (h *GatewayHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req handleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	out, err := h.engine.Handle(r.Context(), req.UserID, req.Text)
	if err != nil {
		h.logger.Error("turn failed", "user", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "turn failed")
		return
	}

	if h.history != nil {
		h.history.Add(req.UserID, channel.DirectionIn, "text", strings.TrimSpace(req.Text), time.Now())
		if out.Text != "" {
			h.history.Add(req.UserID, channel.DirectionOut, "text", out.Text, time.Now())
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListMessages returns the retained message history, newest first.
func (h *GatewayHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []channel.Record{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": h.history.List()})
}

// ClearMessages drops the retained history.
func (h *GatewayHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	removed := 0
	if h.history != nil {
		removed = h.history.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

type sendRequest struct {
	UserID   string `json:"user_id"`
	Text     string `json:"text"`
	MediaURL string `json:"media_url,omitempty"`
}

// SendMessage pushes an arbitrary message to a user through the bridge.
func (h *GatewayHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if h.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "bridge not configured")
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	if err := h.bridge.Send(req.UserID, req.Text, req.MediaURL); err != nil {
		h.logger.Error("manual send failed", "user", req.UserID, "error", err)
		writeError(w, http.StatusBadGateway, "send failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type startMenuRequest struct {
	UserID string `json:"user_id"`
	MenuID string `json:"menu_id,omitempty"`
}

// StartMenu places a user on a menu and returns its rendered text. When the
// bridge is up, the menu is also pushed to the user.
func (h *GatewayHandler) StartMenu(w http.ResponseWriter, r *http.Request) {
	var req startMenuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	text, err := h.engine.StartMenu(r.Context(), req.UserID, req.MenuID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	delivered := false
	if h.bridge != nil {
		if err := h.bridge.Send(req.UserID, text, ""); err != nil {
			h.logger.Warn("menu push failed", "user", req.UserID, "error", err)
		} else {
			delivered = true
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "delivered": delivered})
}

// GetSession reports whether a user has a live session and where they are.
func (h *GatewayHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	active, err := h.engine.IsActive(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	resp := map[string]any{"user_id": userID, "active": active}
	if active {
		if info, err := h.engine.CurrentMenuInfo(r.Context(), userID); err == nil && info != nil {
			resp["menu"] = info
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearSession drops a user's session.
func (h *GatewayHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.engine.ClearSession(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "session clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "cleared"})
}

// AIHealth probes the AI backend with a minimal query.
func (h *GatewayHandler) AIHealth(w http.ResponseWriter, r *http.Request) {
	if h.aiHealth == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	ok, detail := h.aiHealth.Healthy(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"enabled": true, "ok": ok, "detail": detail})
}
