package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/audit"
	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/model"
	"github.com/nbsync/sync-server-go/internal/repository"
)

// Ambiguous characters (O, I, 0, 1) are excluded so codes survive being
// read aloud in a classroom.
const sessionCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 10

// EventPublisher fans session events out to connected listeners. Delivery
// is an optimization; pollers remain the source of truth.
type EventPublisher interface {
	Publish(ctx context.Context, sessionCode, eventType string, data any) error
}

type SessionService struct {
	sessions   repository.SessionRepository
	events     EventPublisher
	codeLength int
}

func NewSessionService(sessions repository.SessionRepository, events EventPublisher, codeLength int) *SessionService {
	return &SessionService{
		sessions:   sessions,
		events:     events,
		codeLength: codeLength,
	}
}

// CreateSession allocates a code unique among registered sessions and
// registers the requester as presenter of a fresh active session.
func (s *SessionService) CreateSession(ctx context.Context, requester model.Identity) (*model.Session, error) {
	if requester.Role != model.RolePresenter {
		audit.Log(ctx, audit.Event{Type: audit.EventForbiddenAttempt, UserID: requester.UserID, Details: map[string]any{"op": "create_session"}})
		return nil, apperrors.Forbidden("only a presenter can create a session")
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateSessionCode(s.codeLength)
		if err != nil {
			return nil, apperrors.Internal("generate session code").WithCause(err)
		}

		existing, err := s.sessions.FindByCode(ctx, code)
		if err != nil {
			return nil, storeErr("session lookup", err)
		}
		if existing != nil {
			continue
		}

		session, err := s.sessions.Create(ctx, code, requester.UserID)
		if err != nil {
			return nil, storeErr("session create", err)
		}

		audit.Log(ctx, audit.Event{Type: audit.EventSessionCreate, UserID: requester.UserID, SessionCode: code})
		log.Info().
			Str("code", code).
			Str("presenterId", requester.UserID).
			Msg("session created")

		return session, nil
	}

	return nil, apperrors.Internal("could not allocate a unique session code")
}

// JoinSession idempotently adds the requester to the session membership.
func (s *SessionService) JoinSession(ctx context.Context, requester model.Identity, code string) error {
	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return err
	}

	if err := s.sessions.AddMember(ctx, code, requester.UserID); err != nil {
		return storeErr("session join", err)
	}
	if err := s.sessions.Touch(ctx, code); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to touch session activity")
	}

	s.publish(ctx, code, "follower_joined", map[string]any{
		"followerId": requester.UserID,
	})

	audit.Log(ctx, audit.Event{Type: audit.EventFollowerJoin, UserID: requester.UserID, SessionCode: code})
	log.Info().
		Str("code", code).
		Str("followerId", requester.UserID).
		Str("presenterId", session.PresenterID).
		Msg("follower joined session")

	return nil
}

// EndSession is presenter-only and terminal: once ended, every mutating
// operation against the code fails and the code never returns to active.
func (s *SessionService) EndSession(ctx context.Context, requester model.Identity, code string) error {
	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return err
	}
	if session.PresenterID != requester.UserID {
		audit.Log(ctx, audit.Event{Type: audit.EventForbiddenAttempt, UserID: requester.UserID, SessionCode: code, Details: map[string]any{"op": "end_session"}})
		return apperrors.Forbidden("only the presenter can end the session")
	}

	if err := s.sessions.End(ctx, code); err != nil {
		return storeErr("session end", err)
	}

	s.publish(ctx, code, "session_ended", map[string]any{
		"code": code,
	})

	audit.Log(ctx, audit.Event{Type: audit.EventSessionEnd, UserID: requester.UserID, SessionCode: code})
	log.Info().Str("code", code).Msg("session ended")

	return nil
}

// ToggleUnitPermission flips the sync-allowed flag for a unit. Permission
// and content are orthogonal: content can be pushed while the flag is off
// and released later by flipping it on.
func (s *SessionService) ToggleUnitPermission(ctx context.Context, requester model.Identity, code, unitID string, allowed bool) error {
	if err := validateUnitID(unitID); err != nil {
		return err
	}

	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return err
	}
	if session.PresenterID != requester.UserID {
		audit.Log(ctx, audit.Event{Type: audit.EventForbiddenAttempt, UserID: requester.UserID, SessionCode: code, Details: map[string]any{"op": "toggle_permission", "unitId": unitID}})
		return apperrors.Forbidden("only the presenter can change unit permissions")
	}

	if err := s.sessions.SetUnitPermission(ctx, code, unitID, allowed); err != nil {
		return storeErr("permission toggle", err)
	}

	s.publish(ctx, code, "permission_changed", map[string]any{
		"unitId":  unitID,
		"allowed": allowed,
	})

	audit.Log(ctx, audit.Event{Type: audit.EventPermissionToggle, UserID: requester.UserID, SessionCode: code, Details: map[string]any{"unitId": unitID, "allowed": allowed}})
	log.Info().
		Str("code", code).
		Str("unitId", unitID).
		Bool("allowed", allowed).
		Msg("unit permission toggled")

	return nil
}

// GetSession resolves a code for callers that only need to inspect it.
func (s *SessionService) GetSession(ctx context.Context, code string) (*model.Session, error) {
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
	return session, nil
}

func (s *SessionService) ListMembers(ctx context.Context, code string) ([]model.Member, error) {
	if _, err := s.GetSession(ctx, code); err != nil {
		return nil, err
	}
	members, err := s.sessions.ListMembers(ctx, code)
	if err != nil {
		return nil, storeErr("member list", err)
	}
	return members, nil
}

// CheckAccess verifies the requester may observe session-scoped data: the
// presenter always can, anyone else needs current membership.
func (s *SessionService) CheckAccess(ctx context.Context, requester model.Identity, code string) error {
	session, err := s.lookupActive(ctx, code)
	if err != nil {
		return err
	}
	if session.PresenterID == requester.UserID {
		return nil
	}
	member, err := s.sessions.IsMember(ctx, code, requester.UserID)
	if err != nil {
		return storeErr("membership lookup", err)
	}
	if !member {
		return apperrors.Forbidden("not a member of this session")
	}
	return nil
}

func (s *SessionService) lookupActive(ctx context.Context, code string) (*model.Session, error) {
	session, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, apperrors.SessionEnded(code)
	}
	return session, nil
}

func (s *SessionService) publish(ctx context.Context, code, eventType string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, code, eventType, data); err != nil {
		log.Warn().Err(err).Str("code", code).Str("event", eventType).Msg("failed to publish session event")
	}
}

func generateSessionCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionCodeChars))))
		if err != nil {
			return "", err
		}
		b.WriteByte(sessionCodeChars[n.Int64()])
	}
	return b.String(), nil
}
