package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventSessionCreate    EventType = "session_create"
	EventSessionEnd       EventType = "session_end"
	EventFollowerJoin     EventType = "follower_join"
	EventPermissionToggle EventType = "permission_toggle"
	EventUnitPush         EventType = "unit_push"
	EventForbiddenAttempt EventType = "forbidden_attempt"
)

type Event struct {
	Type        EventType
	UserID      string
	SessionCode string
	Details     map[string]any
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "session").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.SessionCode != "" {
		logger = logger.With().Str("session_code", event.SessionCode).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("session audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
