package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nbsync/sync-server-go/internal/model"
)

// Mock stores shared by the service tests.

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, code, presenterID string) (*model.Session, error) {
	args := m.Called(ctx, code, presenterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) End(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockSessionRepo) Touch(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockSessionRepo) AddMember(ctx context.Context, code, followerID string) error {
	args := m.Called(ctx, code, followerID)
	return args.Error(0)
}

func (m *mockSessionRepo) IsMember(ctx context.Context, code, followerID string) (bool, error) {
	args := m.Called(ctx, code, followerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) ListMembers(ctx context.Context, code string) ([]model.Member, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Member), args.Error(1)
}

func (m *mockSessionRepo) SetUnitPermission(ctx context.Context, code, unitID string, allowed bool) error {
	args := m.Called(ctx, code, unitID, allowed)
	return args.Error(0)
}

func (m *mockSessionRepo) GetUnitPermission(ctx context.Context, code, unitID string) (bool, error) {
	args := m.Called(ctx, code, unitID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) EndIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSessionRepo) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockContentStore struct {
	mock.Mock
}

func (m *mockContentStore) Put(ctx context.Context, hash, payload string, createdAt time.Time, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, hash, payload, createdAt, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockContentStore) Get(ctx context.Context, hash string) (*model.ContentEntry, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentEntry), args.Error(1)
}

func (m *mockContentStore) List(ctx context.Context, cursor uint64, limit int64, match string) ([]string, uint64, error) {
	args := m.Called(ctx, cursor, limit, match)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).([]string), args.Get(1).(uint64), args.Error(2)
}

type mockLedgerRepo struct {
	mock.Mock
}

func (m *mockLedgerRepo) Commit(ctx context.Context, code, unitID, contentHash string, updatedAt time.Time, ttl time.Duration) error {
	args := m.Called(ctx, code, unitID, contentHash, updatedAt, ttl)
	return args.Error(0)
}

func (m *mockLedgerRepo) GetPending(ctx context.Context, code, unitID string) (*model.PendingUpdate, error) {
	args := m.Called(ctx, code, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PendingUpdate), args.Error(1)
}

func (m *mockLedgerRepo) Poll(ctx context.Context, code string, since time.Time) ([]model.Notification, error) {
	args := m.Called(ctx, code, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Notification), args.Error(1)
}

func (m *mockLedgerRepo) PurgeSession(ctx context.Context, code string) (int64, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(int64), args.Error(1)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) Publish(ctx context.Context, sessionCode, eventType string, data any) error {
	args := m.Called(ctx, sessionCode, eventType, data)
	return args.Error(0)
}

func activeSession(code, presenterID string) *model.Session {
	return &model.Session{
		Code:           code,
		PresenterID:    presenterID,
		Status:         model.SessionStatusActive,
		CreatedAt:      time.Now().Add(-time.Minute),
		LastActivityAt: time.Now(),
	}
}

func endedSession(code, presenterID string) *model.Session {
	now := time.Now()
	s := activeSession(code, presenterID)
	s.Status = model.SessionStatusEnded
	s.EndedAt = &now
	return s
}
