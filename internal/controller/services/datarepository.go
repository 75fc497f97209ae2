// Package services contains the Retrieval Controller's business logic:
// serving DRS metadata and envelopes, projecting inbound events onto the
// metadata store, and evicting stale outbox copies.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/config"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/custodianclient"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/events"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/models"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/repositories/repomanager"
	"github.com/dmitrijs2005/ghgadelivery/internal/eventbus"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

// ObjectStore is the outbox area of the configured storage nodes.
type ObjectStore interface {
	Exists(ctx context.Context, alias, objectID string) (bool, error)
	PresignGet(ctx context.Context, alias, objectID string) (string, error)
	Delete(ctx context.Context, alias, objectID string) error
}

// EnvelopeSource personalizes envelopes for a requester key.
type EnvelopeSource interface {
	PersonalizedEnvelope(ctx context.Context, secretID string, publicKey []byte) ([]byte, error)
}

// WorkOrder is the authorization context derived from a bearer token.
type WorkOrder struct {
	FileID    string
	PublicKey []byte
}

// MetadataResult is either a served object or a retry hint. Object is nil
// while the file is being staged.
type MetadataResult struct {
	Object     *models.DrsObject
	RetryAfter int64
}

// DataRepositoryService implements the controller's request and event paths.
type DataRepositoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	outbox      ObjectStore
	custodian   EnvelopeSource
	publisher   eventbus.Publisher
	config      *config.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewDataRepositoryService(db *sql.DB, m repomanager.RepositoryManager, outbox ObjectStore,
	custodian EnvelopeSource, publisher eventbus.Publisher, cfg *config.Config, logger logging.Logger) *DataRepositoryService {
	return &DataRepositoryService{
		db:          db,
		repomanager: m,
		outbox:      outbox,
		custodian:   custodian,
		publisher:   publisher,
		config:      cfg,
		logger:      logger.With("module", "services"),
		now:         time.Now,
	}
}

// RetryAfter estimates how many seconds staging a file of size bytes takes at
// speedMBps megabytes per second, clamped to [minSec, maxSec].
func RetryAfter(size, speedMBps, minSec, maxSec int64) int64 {
	if speedMBps <= 0 {
		return maxSec
	}
	secs := size / (speedMBps * 1_000_000)
	if secs < minSec {
		return minSec
	}
	if secs > maxSec {
		return maxSec
	}
	return secs
}

func (s *DataRepositoryService) authorizedFile(ctx context.Context, fileID string, wo *WorkOrder) (*models.RegisteredFile, error) {
	if wo == nil || wo.FileID != fileID {
		return nil, ErrWrongFileAuthorization
	}

	file, err := s.repomanager.Files(s.db).Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}
	return file, nil
}

func (s *DataRepositoryService) selfURI(fileID string) string {
	return strings.TrimRight(s.config.DRSServerURI, "/") + "/" + fileID
}

// GetMetadata serves the DRS object for fileID when its outbox copy exists,
// and otherwise makes sure exactly one staging request is outstanding.
func (s *DataRepositoryService) GetMetadata(ctx context.Context, fileID string, wo *WorkOrder) (*MetadataResult, error) {
	file, err := s.authorizedFile(ctx, fileID, wo)
	if err != nil {
		return nil, err
	}

	resident, err := s.outbox.Exists(ctx, file.StorageAlias, file.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrObjectStorage, err)
	}

	if !resident {
		if err := s.requestStaging(ctx, file); err != nil {
			return nil, err
		}
		return &MetadataResult{
			RetryAfter: RetryAfter(file.DecryptedSize, s.config.StagingSpeedMBps, s.config.RetryAfterMin, s.config.RetryAfterMax),
		}, nil
	}

	url, err := s.outbox.PresignGet(ctx, file.StorageAlias, file.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrObjectStorage, err)
	}

	now := s.now()
	if err := s.repomanager.Files(s.db).TouchLastAccessed(ctx, fileID, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}

	if err := s.publisher.Publish(ctx, s.config.DownloadServedTopic, events.TypeDownloadServed, fileID,
		events.DownloadServed{FileID: fileID, Timestamp: now.UTC()}); err != nil {
		s.logger.Warn(ctx, "download-served event not published", "file_id", fileID, "error", err)
	}

	return &MetadataResult{Object: models.NewDrsObject(file, s.selfURI(fileID), url)}, nil
}

// requestStaging publishes a staging request unless one is outstanding.
// When publishing fails the fresh ticket is withdrawn so the next request
// tries again instead of waiting for the ticket to expire.
func (s *DataRepositoryService) requestStaging(ctx context.Context, file *models.RegisteredFile) error {
	tickets := s.repomanager.Tickets(s.db)
	now := s.now()

	created, err := tickets.CreateIfAbsent(ctx, file.FileID, now, now.Add(-s.config.StagingTicketTTL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}
	if !created {
		return nil
	}

	err = s.publisher.Publish(ctx, s.config.StagingRequestedTopic, events.TypeStagingRequested, file.FileID,
		events.StagingRequested{FileID: file.FileID, Size: file.DecryptedSize})
	if err != nil {
		if delErr := tickets.Delete(context.WithoutCancel(ctx), file.FileID); delErr != nil {
			s.logger.Error(ctx, "staging ticket not withdrawn", "file_id", file.FileID, "error", delErr)
		}
		return fmt.Errorf("%w: %v", ErrEventPublish, err)
	}

	s.logger.Info(ctx, "staging requested", "file_id", file.FileID, "size", file.DecryptedSize)
	return nil
}

// GetEnvelope returns the file's envelope personalized for the work order's
// public key.
func (s *DataRepositoryService) GetEnvelope(ctx context.Context, fileID string, wo *WorkOrder) ([]byte, error) {
	file, err := s.authorizedFile(ctx, fileID, wo)
	if err != nil {
		return nil, err
	}

	envelope, err := s.custodian.PersonalizedEnvelope(ctx, file.SecretID, wo.PublicKey)
	if err != nil {
		if errors.Is(err, custodianclient.ErrSecretNotFound) {
			return nil, ErrEnvelopeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalAPI, err)
	}
	return envelope, nil
}
