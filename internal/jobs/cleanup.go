package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/repository"
)

// CleanupJob ends sessions idle past their TTL and, after a retention
// window, removes ended session rows together with their inert ledger
// entries. Correctness never depends on this job; it reclaims space.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	ledgerRepo  repository.LedgerRepository
	sessionTTL  time.Duration
	retention   time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(
	sessionRepo repository.SessionRepository,
	ledgerRepo repository.LedgerRepository,
	sessionTTL, retention, interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		ledgerRepo:  ledgerRepo,
		sessionTTL:  sessionTTL,
		retention:   retention,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.endIdleSessions(ctx)
	j.purgeEndedSessions(ctx)
}

func (j *CleanupJob) endIdleSessions(ctx context.Context) {
	count, err := j.sessionRepo.EndIdleSince(ctx, time.Now().Add(-j.sessionTTL))
	if err != nil {
		log.Error().Err(err).Msg("failed to end idle sessions")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("ended idle sessions")
	}
}

func (j *CleanupJob) purgeEndedSessions(ctx context.Context) {
	codes, err := j.sessionRepo.DeleteEndedBefore(ctx, time.Now().Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("failed to delete ended sessions")
		return
	}

	var purged int64
	for _, code := range codes {
		n, err := j.ledgerRepo.PurgeSession(ctx, code)
		if err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to purge session ledger")
			continue
		}
		purged += n
	}

	if len(codes) > 0 {
		log.Info().
			Int("sessions", len(codes)).
			Int64("ledgerKeys", purged).
			Msg("purged ended sessions")
	}
}
