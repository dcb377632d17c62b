package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nbsync/sync-server-go/internal/config"
	apperrors "github.com/nbsync/sync-server-go/internal/errors"
	"github.com/nbsync/sync-server-go/internal/model"
	redisclient "github.com/nbsync/sync-server-go/internal/redis"
)

// commitScript writes the pending-update pointer and appends the matching
// notification in one atomic step. Redis runs scripts serially, which
// linearizes concurrent pushes to the same (session, unit) and guarantees a
// poller can never observe a notification before its pending update.
var commitScript = redis.NewScript(`
local pendingKey = KEYS[1]
local notifyKey = KEYS[2]
local hash = ARGV[1]
local unit = ARGV[2]
local ts = ARGV[3]
local ttl = tonumber(ARGV[4])
local cap = tonumber(ARGV[5])

redis.call('HSET', pendingKey, 'content_hash', hash, 'unit_id', unit, 'updated_at', ts)
redis.call('EXPIRE', pendingKey, ttl)

redis.call('ZADD', notifyKey, ts, unit .. ':' .. ts)
redis.call('ZREMRANGEBYRANK', notifyKey, 0, -(cap + 1))
redis.call('EXPIRE', notifyKey, ttl)

return 1
`)

// LedgerRepository owns the pending-update pointers and the time-ordered
// notification log for each session.
type LedgerRepository interface {
	Commit(ctx context.Context, code, unitID, contentHash string, updatedAt time.Time, ttl time.Duration) error
	GetPending(ctx context.Context, code, unitID string) (*model.PendingUpdate, error)
	Poll(ctx context.Context, code string, since time.Time) ([]model.Notification, error)
	PurgeSession(ctx context.Context, code string) (int64, error)
}

type ledgerRepo struct {
	client *redisclient.Client
}

func NewLedgerRepository(client *redisclient.Client) LedgerRepository {
	return &ledgerRepo{client: client}
}

func (r *ledgerRepo) Commit(ctx context.Context, code, unitID, contentHash string, updatedAt time.Time, ttl time.Duration) error {
	keys := []string{
		redisclient.PendingKey(code, unitID),
		redisclient.NotifyKey(code),
	}
	args := []any{
		contentHash,
		unitID,
		updatedAt.UnixMicro(),
		int64(ttl.Seconds()),
		config.NotificationLogCap,
	}

	if err := commitScript.Run(ctx, r.client, keys, args...).Err(); err != nil {
		return apperrors.StoreUnavailable("ledger commit", err)
	}
	return nil
}

func (r *ledgerRepo) GetPending(ctx context.Context, code, unitID string) (*model.PendingUpdate, error) {
	fields, err := r.client.HGetAll(ctx, redisclient.PendingKey(code, unitID)).Result()
	if err != nil {
		return nil, apperrors.StoreUnavailable("ledger get", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	micros, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return nil, apperrors.Internal("decode pending update timestamp").WithCause(err)
	}

	return &model.PendingUpdate{
		SessionCode: code,
		UnitID:      fields["unit_id"],
		ContentHash: fields["content_hash"],
		UpdatedAt:   time.UnixMicro(micros).UTC(),
	}, nil
}

// Poll returns notifications strictly after since, in ascending time order.
// An empty result is valid and means no new content.
func (r *ledgerRepo) Poll(ctx context.Context, code string, since time.Time) ([]model.Notification, error) {
	entries, err := r.client.ZRangeByScoreWithScores(ctx, redisclient.NotifyKey(code), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since.UnixMicro(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, apperrors.StoreUnavailable("ledger poll", err)
	}

	notifications := make([]model.Notification, 0, len(entries))
	for _, entry := range entries {
		member, ok := entry.Member.(string)
		if !ok {
			continue
		}
		unitID := member
		if i := strings.LastIndex(member, ":"); i >= 0 {
			unitID = member[:i]
		}
		notifications = append(notifications, model.Notification{
			UnitID:    unitID,
			UpdatedAt: time.UnixMicro(int64(entry.Score)).UTC(),
		})
	}
	return notifications, nil
}

// PurgeSession deletes all ledger keys for a session. Called by the cleanup
// job after the retention window; correctness never depends on it because
// reads against ended sessions are rejected before reaching the ledger.
func (r *ledgerRepo) PurgeSession(ctx context.Context, code string) (int64, error) {
	var deleted int64
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisclient.PendingKeyPattern(code), 100).Result()
		if err != nil {
			return deleted, apperrors.StoreUnavailable("ledger purge", err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, apperrors.StoreUnavailable("ledger purge", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	n, err := r.client.Del(ctx, redisclient.NotifyKey(code)).Result()
	if err != nil {
		return deleted, apperrors.StoreUnavailable("ledger purge", err)
	}
	return deleted + n, nil
}
