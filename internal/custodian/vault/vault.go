// Package vault stores envelope secrets in a HashiCorp Vault KV v2 engine.
//
// The custodian only ever creates, reads and permanently deletes secrets
// under one path prefix. Creation uses check-and-set 0, so a write to an
// existing id is rejected by Vault instead of adding a new version.
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/approle"

	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

var (
	ErrSecretNotFound = errors.New("vault: secret not found")
	// ErrSecretInsertion means Vault answered but refused the write.
	ErrSecretInsertion = errors.New("vault: secret insertion failed")
	// ErrConnection means Vault could not be reached in time.
	ErrConnection = errors.New("vault: connection failed")
	// ErrUnexpectedResponse covers any other non-success answer.
	ErrUnexpectedResponse = errors.New("vault: unexpected response")
)

const secretField = "secret"

type Options struct {
	Addr       string
	Token      string
	RoleID     string
	SecretID   string
	AuthMount  string
	KVMount    string
	PathPrefix string
	Timeout    time.Duration
	Retries    int
}

// Client wraps the Vault SDK's KV v2 helper for the custodian's path prefix.
type Client struct {
	opts   Options
	api    *vaultapi.Client
	kv     *vaultapi.KVv2
	logger logging.Logger
}

func New(opts Options, logger logging.Logger) (*Client, error) {
	l := logger.With("module", "vault")

	cfg := vaultapi.DefaultConfig()
	if cfg.Error != nil {
		return nil, cfg.Error
	}
	cfg.Address = strings.TrimRight(opts.Addr, "/")
	cfg.Timeout = opts.Timeout
	cfg.MaxRetries = opts.Retries
	cfg.MinRetryWait = 100 * time.Millisecond
	cfg.MaxRetryWait = 2 * time.Second
	cfg.Logger = logging.Leveled{L: l}

	api, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	api.SetToken(opts.Token)

	return &Client{
		opts:   opts,
		api:    api,
		kv:     api.KVv2(strings.Trim(opts.KVMount, "/")),
		logger: l,
	}, nil
}

func (c *Client) path(id string) string {
	return strings.Trim(c.opts.PathPrefix, "/") + "/" + id
}

// Create stores secret under id. It fails with ErrSecretInsertion when id
// already exists.
func (c *Client) Create(ctx context.Context, id string, secret []byte) error {
	data := map[string]interface{}{secretField: base64.StdEncoding.EncodeToString(secret)}

	err := c.withLogin(ctx, func() error {
		_, err := c.kv.Put(ctx, c.path(id), data, vaultapi.WithCheckAndSet(0))
		return err
	})
	if err == nil {
		return nil
	}
	if isResponseError(err) {
		return fmt.Errorf("%w: id %s: %v", ErrSecretInsertion, id, err)
	}
	return classify(err)
}

// Read returns the secret stored under id.
func (c *Client) Read(ctx context.Context, id string) ([]byte, error) {
	var kvs *vaultapi.KVSecret
	err := c.withLogin(ctx, func() error {
		var err error
		kvs, err = c.kv.Get(ctx, c.path(id))
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	// a soft-deleted version comes back without data
	encoded, ok := kvs.Data[secretField].(string)
	if !ok {
		return nil, ErrSecretNotFound
	}
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return secret, nil
}

// Delete permanently removes every version of id. Vault itself does not
// report whether the id existed, so it is read first.
func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.Read(ctx, id); err != nil {
		return err
	}

	err := c.withLogin(ctx, func() error {
		return c.kv.DeleteMetadata(ctx, c.path(id))
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// withLogin runs op with the current token. With AppRole configured, a
// missing token triggers a login first and a 403 triggers one fresh login
// and a single replay.
func (c *Client) withLogin(ctx context.Context, op func() error) error {
	if c.opts.RoleID == "" {
		return op()
	}

	if c.api.Token() == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	err := op()
	if statusCode(err) != http.StatusForbidden {
		return err
	}

	c.logger.Info(ctx, "vault token rejected, logging in again")
	if err := c.login(ctx); err != nil {
		return err
	}
	return op()
}

// login exchanges AppRole credentials for a client token; the SDK stores
// the token on the client.
func (c *Client) login(ctx context.Context) error {
	auth, err := approle.NewAppRoleAuth(c.opts.RoleID,
		&approle.SecretID{FromString: c.opts.SecretID},
		approle.WithMountPath(strings.Trim(c.opts.AuthMount, "/")))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	if _, err := c.api.Auth().Login(ctx, auth); err != nil {
		if isResponseError(err) {
			return fmt.Errorf("%w: approle login: %v", ErrUnexpectedResponse, err)
		}
		return classify(err)
	}
	return nil
}

// classify maps SDK errors onto the package sentinels. Anything that is not
// an HTTP answer from Vault counts as a connection failure.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrSecretNotFound), errors.Is(err, ErrSecretInsertion),
		errors.Is(err, ErrConnection), errors.Is(err, ErrUnexpectedResponse):
		return err
	case errors.Is(err, vaultapi.ErrSecretNotFound):
		return ErrSecretNotFound
	case isResponseError(err):
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
}

func isResponseError(err error) bool {
	var re *vaultapi.ResponseError
	return errors.As(err, &re)
}

func statusCode(err error) int {
	var re *vaultapi.ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
