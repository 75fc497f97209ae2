// Package models defines the Retrieval Controller's persisted and
// transport-level data models.
package models

import "time"

// RegisteredFile is a file known to the controller. It is materialized only
// from a file-registered event and never modified afterwards, except for
// LastAccessed, which drives outbox eviction.
type RegisteredFile struct {
	FileID string
	// StorageAlias names the storage node holding the durable copy.
	StorageAlias string
	// ObjectID is the object key inside the node's buckets.
	ObjectID string
	// DecryptedSize is the content size in bytes.
	DecryptedSize int64
	// DecryptedSHA256 is the hex digest of the decrypted content.
	DecryptedSHA256 string
	// SecretID references the custodian's vault entry for the content key.
	SecretID     string
	CreationDate time.Time
	LastAccessed *time.Time
}
