package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/dbx"
)

// PostgresRepository stores staging tickets. Uniqueness per file comes from
// the primary key, so concurrent callers collapse into a single ticket.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, fileID string, now, staleBefore time.Time) (bool, error) {
	query := `
		INSERT INTO staging_tickets (file_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (file_id)
		DO UPDATE SET created_at = EXCLUDED.created_at
			WHERE staging_tickets.created_at < $3
	`
	res, err := r.db.ExecContext(ctx, query, fileID, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete clears the ticket for fileID. A missing ticket is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, fileID string) error {
	query := `DELETE FROM staging_tickets WHERE file_id=$1`
	if _, err := r.db.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	return nil
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context, staleBefore time.Time) (int64, error) {
	query := `DELETE FROM staging_tickets WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tickets: %w", err)
	}
	return dbx.RowsAffected(res)
}
