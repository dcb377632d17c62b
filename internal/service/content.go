package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/config"
	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/model"
	"github.com/nbsync/sync-server-go/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ContentService is the session-less sharing path: content is pushed and
// fetched by hash alone, bypassing the session registry and the ledger.
// There is no permission gate; possession of the hash is the authorization.
type ContentService struct {
	content    repository.ContentStore
	defaultTTL time.Duration
}

func NewContentService(content repository.ContentStore, defaultTTL time.Duration) *ContentService {
	return &ContentService{
		content:    content,
		defaultTTL: defaultTTL,
	}
}

// PushByHash stores the payload under its derived hash. A duplicate
// (unit_id, created_at) tuple returns the same hash without touching the
// stored payload.
func (s *ContentService) PushByHash(ctx context.Context, unitID string, createdAt time.Time, payload string, ttl time.Duration) (string, bool, error) {
	if err := validateUnitID(unitID); err != nil {
		return "", false, err
	}
	if createdAt.IsZero() {
		return "", false, apperrors.InvalidInput("created_at", "must be a valid timestamp")
	}
	if len(payload) > config.MaxPayloadBytes {
		return "", false, apperrors.InvalidInput("payload", "exceeds maximum size")
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > config.MaxContentTTL {
		ttl = config.MaxContentTTL
	}

	hash := ContentHash(unitID, createdAt)
	created, err := s.content.Put(ctx, hash, payload, createdAt, ttl)
	if err != nil {
		return "", false, err
	}

	log.Info().
		Str("unitId", unitID).
		Str("contentHash", hash).
		Bool("created", created).
		Msg("content pushed by hash")

	return hash, created, nil
}

// GetByHash returns the entry for a hash, or NotFound once it has expired.
func (s *ContentService) GetByHash(ctx context.Context, hash string) (*model.ContentEntry, error) {
	if err := validateContentHash(hash); err != nil {
		return nil, err
	}
	return s.content.Get(ctx, hash)
}

// ListHashes pages through stored hashes. The cursor is an opaque token
// from the previous page; an empty next cursor means the scan is complete.
func (s *ContentService) ListHashes(ctx context.Context, cursor string, limit int, match string) ([]string, string, error) {
	var scanCursor uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, "", apperrors.InvalidInput("cursor", "malformed continuation token")
		}
		scanCursor = parsed
	}

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	hashes, next, err := s.content.List(ctx, scanCursor, int64(limit), match)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if next != 0 {
		nextCursor = strconv.FormatUint(next, 10)
	}
	return hashes, nextCursor, nil
}
