package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/middleware"
	"github.com/nbsync/sync-server-go/internal/model"
	"github.com/nbsync/sync-server-go/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	syncService    *service.SyncService
}

func NewSessionHandler(sessionService *service.SessionService, syncService *service.SyncService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		syncService:    syncService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/{code}", h.GetSession)
	r.Post("/{code}/join", h.JoinSession)
	r.Delete("/{code}", h.EndSession)
	r.Post("/{code}/units/{unitID}", h.PushUnit)
	r.Put("/{code}/units/{unitID}/permission", h.TogglePermission)
	r.Get("/{code}/notifications", h.PollNotifications)
	r.Get("/{code}/units/{unitID}", h.FetchUnit)

	return r
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	session, err := h.sessionService.CreateSession(r.Context(), *identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      session.Code,
		"createdAt": session.CreatedAt.Format(time.RFC3339),
	})
}

// GET /v1/sessions/{code}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.sessionService.CheckAccess(r.Context(), *identity, code); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.GetSession(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := h.sessionService.ListMembers(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":      session.Code,
		"status":    session.Status,
		"createdAt": session.CreatedAt.Format(time.RFC3339),
		"members":   formatMembers(members),
	})
}

// POST /v1/sessions/{code}/join
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.sessionService.JoinSession(r.Context(), *identity, code); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DELETE /v1/sessions/{code}
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")
	if err := h.sessionService.EndSession(r.Context(), *identity, code); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type pushUnitRequest struct {
	CreatedAt string `json:"createdAt"`
	Payload   string `json:"payload"`
}

// POST /v1/sessions/{code}/units/{unitID}
func (h *SessionHandler) PushUnit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req pushUnitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	createdAt, err := parseTimestamp(req.CreatedAt)
	if err != nil {
		writeError(w, err)
		return
	}

	code := chi.URLParam(r, "code")
	unitID := chi.URLParam(r, "unitID")

	hash, err := h.syncService.PushUnit(r.Context(), *identity, code, unitID, createdAt, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"contentHash": hash})
}

type togglePermissionRequest struct {
	Allowed bool `json:"allowed"`
}

// PUT /v1/sessions/{code}/units/{unitID}/permission
func (h *SessionHandler) TogglePermission(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req togglePermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	code := chi.URLParam(r, "code")
	unitID := chi.URLParam(r, "unitID")

	if err := h.sessionService.ToggleUnitPermission(r.Context(), *identity, code, unitID, req.Allowed); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /v1/sessions/{code}/notifications?since=<unix micros>
func (h *SessionHandler) PollNotifications(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	since := time.UnixMicro(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		micros, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || micros < 0 {
			writeError(w, apperrors.InvalidInput("since", "must be a non-negative unix microsecond timestamp"))
			return
		}
		since = time.UnixMicro(micros)
	}

	code := chi.URLParam(r, "code")
	notifications, err := h.syncService.PollNotifications(r.Context(), *identity, code, since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": formatNotifications(notifications),
	})
}

// GET /v1/sessions/{code}/units/{unitID}
func (h *SessionHandler) FetchUnit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")
	unitID := chi.URLParam(r, "unitID")

	entry, err := h.syncService.FetchUnit(r.Context(), *identity, code, unitID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payload":     entry.Payload,
		"createdAt":   entry.CreatedAt.Format(time.RFC3339Nano),
		"contentHash": entry.Hash,
	})
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput("created_at", "required")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("created_at", "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func formatMembers(members []model.Member) []map[string]any {
	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		out = append(out, map[string]any{
			"followerId": m.FollowerID,
			"joinedAt":   m.JoinedAt.Format(time.RFC3339),
		})
	}
	return out
}

func formatNotifications(notifications []model.Notification) []map[string]any {
	out := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, map[string]any{
			"unitId":    n.UnitID,
			"updatedAt": n.UpdatedAt.UnixMicro(),
		})
	}
	return out
}
