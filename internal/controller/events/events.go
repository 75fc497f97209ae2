// Package events defines the payloads the controller exchanges over the
// event bus.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/controller/models"
)

// Event types.
const (
	TypeFileRegistered        = "file_registered"
	TypeFileStaged            = "file_staged"
	TypeFileDeletionRequested = "file_deletion_requested"
	TypeStagingRequested      = "staging_requested"
	TypeFileDeleted           = "file_deleted"
	TypeDownloadServed        = "download_served"
)

// ErrInvalidPayload marks a payload that can never be processed.
var ErrInvalidPayload = errors.New("invalid event payload")

// StorageLocator addresses the durable copy of a file.
type StorageLocator struct {
	Alias    string `json:"alias"`
	ObjectID string `json:"object_id"`
}

type FileRegistered struct {
	FileID         string         `json:"file_id"`
	Size           int64          `json:"size"`
	Checksum       string         `json:"checksum"`
	SecretID       string         `json:"secret_id"`
	StorageLocator StorageLocator `json:"storage_locator"`
	CreatedTime    time.Time      `json:"created_time"`
}

// Validate rejects payloads missing any field needed to serve the file.
func (e *FileRegistered) Validate() error {
	switch {
	case e.FileID == "":
		return fmt.Errorf("%w: missing file_id", ErrInvalidPayload)
	case e.SecretID == "":
		return fmt.Errorf("%w: missing secret_id", ErrInvalidPayload)
	case e.StorageLocator.Alias == "" || e.StorageLocator.ObjectID == "":
		return fmt.Errorf("%w: incomplete storage_locator", ErrInvalidPayload)
	case e.Size < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidPayload)
	case e.Checksum == "":
		return fmt.Errorf("%w: missing checksum", ErrInvalidPayload)
	case e.CreatedTime.IsZero():
		return fmt.Errorf("%w: missing created_time", ErrInvalidPayload)
	}
	return nil
}

// ToModel converts the payload into the stored representation.
func (e *FileRegistered) ToModel() *models.RegisteredFile {
	return &models.RegisteredFile{
		FileID:          e.FileID,
		StorageAlias:    e.StorageLocator.Alias,
		ObjectID:        e.StorageLocator.ObjectID,
		DecryptedSize:   e.Size,
		DecryptedSHA256: e.Checksum,
		SecretID:        e.SecretID,
		CreationDate:    e.CreatedTime,
	}
}

// FileRef is the payload of events that only name a file: file-staged,
// file-deletion-requested and file-deleted.
type FileRef struct {
	FileID string `json:"file_id"`
}

func (e *FileRef) Validate() error {
	if e.FileID == "" {
		return fmt.Errorf("%w: missing file_id", ErrInvalidPayload)
	}
	return nil
}

// StagingRequested carries the size so the stager can estimate duration.
type StagingRequested struct {
	FileID string `json:"file_id"`
	Size   int64  `json:"size"`
}

type DownloadServed struct {
	FileID    string    `json:"file_id"`
	Timestamp time.Time `json:"timestamp"`
}

type validator interface {
	Validate() error
}

// Decode unmarshals payload into v and validates it when v knows how.
// Malformed JSON is reported as ErrInvalidPayload.
func Decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if val, ok := v.(validator); ok {
		return val.Validate()
	}
	return nil
}
