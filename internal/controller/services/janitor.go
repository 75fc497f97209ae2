package services

import (
	"context"
	"time"
)

const janitorBatchSize = 100

// EvictStale deletes outbox copies not accessed within the configured cache
// timeout and purges expired staging tickets. It returns the number of
// evicted files.
func (s *DataRepositoryService) EvictStale(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-time.Duration(s.config.OutboxCacheTimeoutDays) * 24 * time.Hour)
	files := s.repomanager.Files(s.db)

	evicted := 0
	for {
		stale, err := files.ListStale(ctx, cutoff, janitorBatchSize)
		if err != nil {
			return evicted, err
		}

		for _, f := range stale {
			if err := s.outbox.Delete(ctx, f.StorageAlias, f.ObjectID); err != nil {
				return evicted, err
			}
			if err := files.ClearLastAccessed(ctx, f.FileID); err != nil {
				return evicted, err
			}
			evicted++
			s.logger.Debug(ctx, "outbox copy evicted", "file_id", f.FileID)
		}

		if len(stale) < janitorBatchSize {
			break
		}
	}

	purged, err := s.repomanager.Tickets(s.db).PurgeExpired(ctx, now.Add(-s.config.StagingTicketTTL))
	if err != nil {
		return evicted, err
	}
	if evicted > 0 || purged > 0 {
		s.logger.Info(ctx, "janitor pass finished", "evicted", evicted, "tickets_purged", purged)
	}
	return evicted, nil
}

// RunJanitor calls EvictStale every interval until ctx is done.
func (s *DataRepositoryService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.EvictStale(ctx); err != nil {
				s.logger.Error(ctx, "janitor pass failed", "error", err)
			}
		}
	}
}
