package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/controller/models"
)

type Repository interface {
	// Register inserts file unless a row with the same id exists. It reports
	// whether a row was created.
	Register(ctx context.Context, file *models.RegisteredFile) (bool, error)
	Get(ctx context.Context, fileID string) (*models.RegisteredFile, error)
	Delete(ctx context.Context, fileID string) error
	TouchLastAccessed(ctx context.Context, fileID string, at time.Time) error
	ClearLastAccessed(ctx context.Context, fileID string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]*models.RegisteredFile, error)
}
