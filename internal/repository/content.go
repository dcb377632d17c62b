package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/model"
	redisclient "github.com/nbsync/sync-server-go/internal/redis"
)

const (
	contentReadRetries    = 2
	contentReadRetryDelay = 50 * time.Millisecond
)

// ContentStore is the hash-addressed payload store. Entries are immutable
// once written; expiry is enforced by Redis TTL, so a Get after expiry
// reports NotFound without any sweeper involvement.
type ContentStore interface {
	Put(ctx context.Context, hash, payload string, createdAt time.Time, ttl time.Duration) (created bool, err error)
	Get(ctx context.Context, hash string) (*model.ContentEntry, error)
	List(ctx context.Context, cursor uint64, limit int64, match string) (hashes []string, next uint64, err error)
}

type contentStore struct {
	client *redisclient.Client
}

func NewContentStore(client *redisclient.Client) ContentStore {
	return &contentStore{client: client}
}

type contentRecord struct {
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Put writes the entry under its hash key unless one already exists. The
// idempotency is by construction: the hash encodes (unit_id, created_at),
// so a duplicate tuple is a no-op that leaves the stored payload untouched.
func (s *contentStore) Put(ctx context.Context, hash, payload string, createdAt time.Time, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(contentRecord{Payload: payload, CreatedAt: createdAt.UTC()})
	if err != nil {
		return false, apperrors.Internal("encode content entry").WithCause(err)
	}

	created, err := s.client.SetNX(ctx, redisclient.ContentKey(hash), data, ttl).Result()
	if err != nil {
		return false, apperrors.StoreUnavailable("content put", err)
	}
	return created, nil
}

func (s *contentStore) Get(ctx context.Context, hash string) (*model.ContentEntry, error) {
	key := redisclient.ContentKey(hash)

	var data string
	var err error
	for attempt := 0; ; attempt++ {
		data, err = s.client.Get(ctx, key).Result()
		if err == nil || errors.Is(err, redis.Nil) {
			break
		}
		if attempt >= contentReadRetries || ctx.Err() != nil {
			return nil, apperrors.StoreUnavailable("content get", err)
		}
		time.Sleep(contentReadRetryDelay)
	}
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("content")
	}

	var rec contentRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, apperrors.Internal("decode content entry").WithCause(err)
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, apperrors.StoreUnavailable("content ttl", err)
	}

	entry := &model.ContentEntry{
		Hash:      hash,
		Payload:   rec.Payload,
		CreatedAt: rec.CreatedAt,
	}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	return entry, nil
}

// List enumerates stored hashes via SCAN. Ordering is store-defined and the
// cursor is an opaque continuation token, not a content property.
func (s *contentStore) List(ctx context.Context, cursor uint64, limit int64, match string) ([]string, uint64, error) {
	pattern := redisclient.ContentKeyPrefix + match + "*"

	keys, next, err := s.client.Scan(ctx, cursor, pattern, limit).Result()
	if err != nil {
		return nil, 0, apperrors.StoreUnavailable("content list", err)
	}

	hashes := make([]string, 0, len(keys))
	for _, key := range keys {
		hashes = append(hashes, strings.TrimPrefix(key, redisclient.ContentKeyPrefix))
	}
	return hashes, next, nil
}
