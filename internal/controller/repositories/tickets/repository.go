package tickets

import (
	"context"
	"time"
)

type Repository interface {
	// CreateIfAbsent atomically creates a ticket for fileID unless one
	// created at or after staleBefore already exists. It reports whether
	// this call created (or replaced an expired) ticket.
	CreateIfAbsent(ctx context.Context, fileID string, now, staleBefore time.Time) (bool, error)
	Delete(ctx context.Context, fileID string) error
	PurgeExpired(ctx context.Context, staleBefore time.Time) (int64, error)
}
