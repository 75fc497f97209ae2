package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/events"
	"github.com/dmitrijs2005/ghgadelivery/internal/dbx"
	"github.com/dmitrijs2005/ghgadelivery/internal/eventbus"
)

// HandleFileRegistered stores the announced file. Redelivery of the same
// file_id is a no-op.
func (s *DataRepositoryService) HandleFileRegistered(ctx context.Context, ev eventbus.Event) error {
	var payload events.FileRegistered
	if err := events.Decode(ev.Payload, &payload); err != nil {
		return err
	}

	created, err := s.repomanager.Files(s.db).Register(ctx, payload.ToModel())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}
	if !created {
		s.logger.Info(ctx, "file already registered", "file_id", payload.FileID)
		return nil
	}

	s.logger.Info(ctx, "file registered", "file_id", payload.FileID)
	return nil
}

// HandleFileStaged clears the staging ticket and starts the outbox copy's
// eviction clock. A staged event without a ticket is accepted.
func (s *DataRepositoryService) HandleFileStaged(ctx context.Context, ev eventbus.Event) error {
	var payload events.FileRef
	if err := events.Decode(ev.Payload, &payload); err != nil {
		return err
	}

	if err := s.repomanager.Tickets(s.db).Delete(ctx, payload.FileID); err != nil {
		return fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}
	if err := s.repomanager.Files(s.db).TouchLastAccessed(ctx, payload.FileID, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}

	s.logger.Info(ctx, "file staged", "file_id", payload.FileID)
	return nil
}

// HandleFileDeletionRequested removes every trace of the file and confirms
// with a file-deleted event. Unknown files are confirmed as well, so a
// redelivered request still gets its confirmation.
func (s *DataRepositoryService) HandleFileDeletionRequested(ctx context.Context, ev eventbus.Event) error {
	var payload events.FileRef
	if err := events.Decode(ev.Payload, &payload); err != nil {
		return err
	}

	file, err := s.repomanager.Files(s.db).Get(ctx, payload.FileID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Info(ctx, "deletion requested for unknown file", "file_id", payload.FileID)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrDBInteraction, err)
	default:
		if err := s.outbox.Delete(ctx, file.StorageAlias, file.ObjectID); err != nil {
			return fmt.Errorf("%w: %v", ErrObjectStorage, err)
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Tickets(tx).Delete(ctx, payload.FileID); err != nil {
			return err
		}
		if err := s.repomanager.Files(tx).Delete(ctx, payload.FileID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDBInteraction, err)
	}

	if err := s.publisher.Publish(ctx, s.config.FileDeletedTopic, events.TypeFileDeleted, payload.FileID,
		events.FileRef{FileID: payload.FileID}); err != nil {
		return fmt.Errorf("%w: %v", ErrEventPublish, err)
	}

	s.logger.Info(ctx, "file deleted", "file_id", payload.FileID)
	return nil
}

// Subscriptions lists the consumers the controller runs, one per topic.
func (s *DataRepositoryService) Subscriptions() []eventbus.Subscription {
	sub := func(topic string, h eventbus.Handler) eventbus.Subscription {
		return eventbus.Subscription{
			Topic:    topic,
			Group:    s.config.ConsumerGroup,
			Consumer: s.config.ConsumerName,
			Handler:  h,
		}
	}
	return []eventbus.Subscription{
		sub(s.config.FileRegisteredTopic, s.HandleFileRegistered),
		sub(s.config.FileStagedTopic, s.HandleFileStaged),
		sub(s.config.FileDeletionRequestTopic, s.HandleFileDeletionRequested),
	}
}
