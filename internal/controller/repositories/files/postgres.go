package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/models"
	"github.com/dmitrijs2005/ghgadelivery/internal/dbx"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Register inserts a file record. A second registration of the same file_id
// leaves the first one untouched.
func (r *PostgresRepository) Register(ctx context.Context, file *models.RegisteredFile) (bool, error) {
	query := `
		INSERT INTO registered_files (file_id, storage_alias, object_id, decrypted_size, decrypted_sha256, secret_id, creation_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		file.FileID, file.StorageAlias, file.ObjectID, file.DecryptedSize, file.DecryptedSHA256, file.SecretID, file.CreationDate)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, fileID string) (*models.RegisteredFile, error) {
	query := ` SELECT file_id, storage_alias, object_id, decrypted_size, decrypted_sha256, secret_id, creation_date, last_accessed
		FROM registered_files WHERE file_id=$1
		`

	var (
		item         models.RegisteredFile
		lastAccessed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, fileID).Scan(&item.FileID, &item.StorageAlias, &item.ObjectID,
		&item.DecryptedSize, &item.DecryptedSHA256, &item.SecretID, &item.CreationDate, &lastAccessed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	if lastAccessed.Valid {
		item.LastAccessed = &lastAccessed.Time
	}
	return &item, nil
}

// Delete removes the file row. It returns common.ErrorNotFound when no row
// matched.
func (r *PostgresRepository) Delete(ctx context.Context, fileID string) error {
	query := `DELETE FROM registered_files WHERE file_id=$1`
	res, err := r.db.ExecContext(ctx, query, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) TouchLastAccessed(ctx context.Context, fileID string, at time.Time) error {
	query := `UPDATE registered_files SET last_accessed=$2 WHERE file_id=$1`
	if _, err := r.db.ExecContext(ctx, query, fileID, at); err != nil {
		return fmt.Errorf("failed to update last access: %w", err)
	}
	return nil
}

// ClearLastAccessed marks the file as no longer held in the outbox.
func (r *PostgresRepository) ClearLastAccessed(ctx context.Context, fileID string) error {
	query := `UPDATE registered_files SET last_accessed=NULL WHERE file_id=$1`
	if _, err := r.db.ExecContext(ctx, query, fileID); err != nil {
		return fmt.Errorf("failed to clear last access: %w", err)
	}
	return nil
}

// ListStale returns up to limit files whose last access is older than before,
// oldest first.
func (r *PostgresRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.RegisteredFile, error) {
	query := ` SELECT file_id, storage_alias, object_id, decrypted_size, decrypted_sha256, secret_id, creation_date, last_accessed
		FROM registered_files
		WHERE last_accessed IS NOT NULL AND last_accessed < $1
		ORDER BY last_accessed
		LIMIT $2
		`
	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select stale files: %w", err)
	}
	defer rows.Close()

	var result []*models.RegisteredFile
	for rows.Next() {
		var (
			item         models.RegisteredFile
			lastAccessed sql.NullTime
		)
		if err := rows.Scan(&item.FileID, &item.StorageAlias, &item.ObjectID, &item.DecryptedSize,
			&item.DecryptedSHA256, &item.SecretID, &item.CreationDate, &lastAccessed); err != nil {
			return nil, err
		}
		if lastAccessed.Valid {
			item.LastAccessed = &lastAccessed.Time
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
