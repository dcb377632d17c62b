package handler

import (
	"net/http"
	"time"

	"github.com/nbsync/sync-server-go/internal/database"
	redisclient "github.com/nbsync/sync-server-go/internal/redis"
	"github.com/nbsync/sync-server-go/internal/repository"
)

// StatusHandler reports store reachability and the active-session count.
type StatusHandler struct {
	db          *database.DB
	redis       *redisclient.Client
	sessionRepo repository.SessionRepository
}

func NewStatusHandler(db *database.DB, redis *redisclient.Client, sessionRepo repository.SessionRepository) *StatusHandler {
	return &StatusHandler{
		db:          db,
		redis:       redis,
		sessionRepo: sessionRepo,
	}
}

// GET /health
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "connected"
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "error: " + err.Error()
	}

	redisStatus := "connected"
	if err := h.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "error: " + err.Error()
	}

	activeSessions := -1
	if count, err := h.sessionRepo.CountActive(ctx); err == nil {
		activeSessions = count
	}

	status := http.StatusOK
	if dbStatus != "connected" || redisStatus != "connected" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":         statusWord(status),
		"database":       dbStatus,
		"redis":          redisStatus,
		"activeSessions": activeSessions,
		"timestamp":      time.Now().UnixMilli(),
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
