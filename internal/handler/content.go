package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/service"
)

// ContentHandler exposes the session-less hash path: ad hoc sharing where
// presenter and follower share only a hash, not a session membership.
type ContentHandler struct {
	contentService *service.ContentService
}

func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.PushByHash)
	r.Get("/", h.ListHashes)
	r.Get("/{hash}", h.GetByHash)

	return r
}

type pushByHashRequest struct {
	UnitID     string `json:"unitId"`
	CreatedAt  string `json:"createdAt"`
	Payload    string `json:"payload"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

// POST /v1/content
func (h *ContentHandler) PushByHash(w http.ResponseWriter, r *http.Request) {
	var req pushByHashRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	createdAt, err := parseTimestamp(req.CreatedAt)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.TTLSeconds < 0 {
		writeError(w, apperrors.InvalidInput("ttlSeconds", "must be non-negative"))
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second

	hash, created, err := h.contentService.PushByHash(r.Context(), req.UnitID, createdAt, req.Payload, ttl)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{"contentHash": hash})
}

// GET /v1/content/{hash}
func (h *ContentHandler) GetByHash(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	entry, err := h.contentService.GetByHash(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payload":   entry.Payload,
		"createdAt": entry.CreatedAt.Format(time.RFC3339Nano),
	})
}

// GET /v1/content?cursor=&limit=&match=
func (h *ContentHandler) ListHashes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.InvalidInput("limit", "must be an integer"))
			return
		}
		limit = parsed
	}

	items, nextCursor, err := h.contentService.ListHashes(r.Context(), query.Get("cursor"), limit, query.Get("match"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"nextCursor": nextCursor,
	})
}
