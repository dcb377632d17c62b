package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/audit"
	"github.com/nbsync/sync-server-go/internal/config"
	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/model"
	"github.com/nbsync/sync-server-go/internal/repository"
)

// SyncService orchestrates the session-scoped push/poll/fetch protocol. It
// composes the session registry, the content store and the ledger, and is
// the single place where role and permission rules are enforced.
type SyncService struct {
	sessions   repository.SessionRepository
	content    repository.ContentStore
	ledger     repository.LedgerRepository
	events     EventPublisher
	contentTTL time.Duration
	sessionTTL time.Duration
}

func NewSyncService(
	sessions repository.SessionRepository,
	content repository.ContentStore,
	ledger repository.LedgerRepository,
	events EventPublisher,
	contentTTL, sessionTTL time.Duration,
) *SyncService {
	return &SyncService{
		sessions:   sessions,
		content:    content,
		ledger:     ledger,
		events:     events,
		contentTTL: contentTTL,
		sessionTTL: sessionTTL,
	}
}

// PushUnit writes the payload through the content store, then commits the
// pending pointer and notification atomically. If the ledger commit fails
// after the content write, the operation reports failure; a retry with the
// same (unit_id, created_at) is safe because both writes are idempotent.
func (s *SyncService) PushUnit(ctx context.Context, requester model.Identity, code, unitID string, createdAt time.Time, payload string) (string, error) {
	if err := validateUnitID(unitID); err != nil {
		return "", err
	}
	if createdAt.IsZero() {
		return "", apperrors.InvalidInput("created_at", "must be a valid timestamp")
	}
	if len(payload) > config.MaxPayloadBytes {
		return "", apperrors.InvalidInput("payload", "exceeds maximum size")
	}

	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return "", err
	}
	if session.PresenterID != requester.UserID {
		audit.Log(ctx, audit.Event{Type: audit.EventForbiddenAttempt, UserID: requester.UserID, SessionCode: code, Details: map[string]any{"op": "push_unit", "unitId": unitID}})
		return "", apperrors.Forbidden("only the presenter can push units")
	}

	hash := ContentHash(unitID, createdAt)
	if _, err := s.content.Put(ctx, hash, payload, createdAt, s.contentTTL); err != nil {
		return "", err
	}

	updatedAt := time.Now().UTC()
	if err := s.ledger.Commit(ctx, code, unitID, hash, updatedAt, s.sessionTTL); err != nil {
		// Content may already be durably stored; followers simply won't be
		// notified until the presenter retries.
		return "", err
	}

	if err := s.sessions.Touch(ctx, code); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to touch session activity")
	}

	s.publish(ctx, code, "update_available", map[string]any{
		"unitId":    unitID,
		"updatedAt": updatedAt.UnixMicro(),
	})

	audit.Log(ctx, audit.Event{Type: audit.EventUnitPush, UserID: requester.UserID, SessionCode: code, Details: map[string]any{"unitId": unitID}})
	log.Info().
		Str("code", code).
		Str("unitId", unitID).
		Str("contentHash", hash).
		Msg("unit pushed")

	return hash, nil
}

// PollNotifications returns every notification after since, ascending. The
// requester must be the presenter or a current member.
func (s *SyncService) PollNotifications(ctx context.Context, requester model.Identity, code string, since time.Time) ([]model.Notification, error) {
	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.requireAccess(ctx, requester, session); err != nil {
		return nil, err
	}

	return s.ledger.Poll(ctx, code, since)
}

// FetchUnit resolves the current pending pointer for a unit and returns its
// content. Followers need membership plus the per-unit permission flag; the
// presenter reads its own content unconditionally. The permission check
// sits in front of the pointer, so revoking it instantly blocks fetches of
// content that was already pushed.
func (s *SyncService) FetchUnit(ctx context.Context, requester model.Identity, code, unitID string) (*model.ContentEntry, error) {
	if err := validateUnitID(unitID); err != nil {
		return nil, err
	}

	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return nil, err
	}

	if session.PresenterID != requester.UserID {
		if err := s.requireAccess(ctx, requester, session); err != nil {
			return nil, err
		}

		allowed, err := s.sessions.GetUnitPermission(ctx, code, unitID)
		if err != nil {
			return nil, storeErr("permission lookup", err)
		}
		if !allowed {
			audit.Log(ctx, audit.Event{Type: audit.EventForbiddenAttempt, UserID: requester.UserID, SessionCode: code, Details: map[string]any{"op": "fetch_unit", "unitId": unitID}})
			return nil, apperrors.Forbidden("sync is not enabled for this unit")
		}
	}

	pending, err := s.ledger.GetPending(ctx, code, unitID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, apperrors.NotFound("unit update")
	}

	entry, err := s.content.Get(ctx, pending.ContentHash)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("code", code).
		Str("unitId", unitID).
		Str("followerId", requester.UserID).
		Msg("unit fetched")

	return entry, nil
}

func (s *SyncService) lookupActive(ctx context.Context, code string) (*model.Session, error) {
	if err := validateSessionCode(code); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		return nil, storeErr("session lookup", err)
	}
	if session == nil {
		return nil, apperrors.SessionNotFound(code)
	}
	if !session.Active() {
		return nil, apperrors.SessionEnded(code)
	}
	return session, nil
}

func (s *SyncService) requireAccess(ctx context.Context, requester model.Identity, session *model.Session) error {
	if session.PresenterID == requester.UserID {
		return nil
	}
	member, err := s.sessions.IsMember(ctx, session.Code, requester.UserID)
	if err != nil {
		return storeErr("membership lookup", err)
	}
	if !member {
		return apperrors.Forbidden("not a member of this session")
	}
	return nil
}

func (s *SyncService) publish(ctx context.Context, code, eventType string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, code, eventType, data); err != nil {
		log.Warn().Err(err).Str("code", code).Str("event", eventType).Msg("failed to publish session event")
	}
}
