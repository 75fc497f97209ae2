// Package services implements the Envelope Custodian's secret lifecycle:
// extracting a file's data key from a submitted envelope, minting and
// storing a re-encryption secret, and re-issuing that secret as an
// envelope for any recipient.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/crypt4gh"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/vault"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

var (
	ErrMalformedEnvelope = errors.New("malformed or missing envelope")
	ErrDecryption        = errors.New("envelope decryption failed")
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrSecretInsertion   = errors.New("secret insertion failed")
	ErrVaultConnection   = errors.New("vault unreachable")
	ErrVault             = errors.New("vault interaction failed")
)

// SecretStore is the vault capability the custodian needs.
type SecretStore interface {
	Create(ctx context.Context, id string, secret []byte) error
	Read(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Envelopes holds the server key pair; the raw private key never leaves it.
type Envelopes interface {
	Open(filePart, senderPublicKey []byte) (*crypt4gh.Opened, error)
	Seal(dataKey, recipient []byte) ([]byte, error)
}

// Extracted is the result of a successful extraction. SubmitterSecret is
// never persisted.
type Extracted struct {
	SubmitterSecret []byte
	NewSecret       []byte
	SecretID        string
	Offset          int64
}

// Seams for tests.
var (
	newSecretID = uuid.NewString
	newSecret   = func() []byte { return common.GenerateRandByteArray(crypt4gh.KeySize) }
)

type SecretService struct {
	keys   Envelopes
	store  SecretStore
	logger logging.Logger
}

func NewSecretService(keys Envelopes, store SecretStore, logger logging.Logger) *SecretService {
	return &SecretService{keys: keys, store: store, logger: logger.With("module", "services")}
}

// Extract opens the envelope at the start of filePart, which must have been
// written by submitterPublicKey for this server, and stores a freshly
// minted secret under a new id.
func (s *SecretService) Extract(ctx context.Context, filePart, submitterPublicKey []byte) (*Extracted, error) {
	if len(submitterPublicKey) != crypt4gh.KeySize {
		return nil, ErrInvalidPublicKey
	}

	opened, err := s.keys.Open(filePart, submitterPublicKey)
	if err != nil {
		switch {
		case errors.Is(err, crypt4gh.ErrMalformedEnvelope):
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		case errors.Is(err, crypt4gh.ErrDecryption), errors.Is(err, crypt4gh.ErrInvalidKey):
			return nil, ErrDecryption
		default:
			return nil, err
		}
	}

	secret := newSecret()
	id := newSecretID()

	if err := s.store.Create(ctx, id, secret); err != nil {
		common.WipeByteArray(opened.DataKey)
		common.WipeByteArray(secret)
		return nil, translateStoreError(err)
	}

	s.logger.Info(ctx, "secret stored", "secret_id", id)
	return &Extracted{
		SubmitterSecret: opened.DataKey,
		NewSecret:       secret,
		SecretID:        id,
		Offset:          opened.Offset,
	}, nil
}

// Personalize wraps the stored secret for recipientPublicKey. Each call
// produces a distinct, independently valid envelope.
func (s *SecretService) Personalize(ctx context.Context, secretID string, recipientPublicKey []byte) ([]byte, error) {
	if len(recipientPublicKey) != crypt4gh.KeySize {
		return nil, ErrInvalidPublicKey
	}

	secret, err := s.store.Read(ctx, secretID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	defer common.WipeByteArray(secret)

	envelope, err := s.keys.Seal(secret, recipientPublicKey)
	if err != nil {
		if errors.Is(err, crypt4gh.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return nil, err
	}
	return envelope, nil
}

// Delete removes the secret permanently.
func (s *SecretService) Delete(ctx context.Context, secretID string) error {
	if err := s.store.Delete(ctx, secretID); err != nil {
		return translateStoreError(err)
	}
	s.logger.Info(ctx, "secret deleted", "secret_id", secretID)
	return nil
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		return ErrSecretNotFound
	case errors.Is(err, vault.ErrSecretInsertion):
		return fmt.Errorf("%w: %v", ErrSecretInsertion, err)
	case errors.Is(err, vault.ErrConnection):
		return fmt.Errorf("%w: %v", ErrVaultConnection, err)
	default:
		return fmt.Errorf("%w: %v", ErrVault, err)
	}
}
