// Package custodianclient calls the Envelope Custodian to personalize
// envelopes for a requester.
package custodianclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

var (
	// ErrSecretNotFound means the custodian holds no secret for the id.
	ErrSecretNotFound = errors.New("custodian: secret not found")
	// ErrCommunication covers transport failures, timeouts and unexpected
	// responses.
	ErrCommunication = errors.New("custodian: communication error")
)

const maxResponseBytes = 1 << 20

type envelopeResponse struct {
	Content string `json:"content"`
}

// Client is a retrying HTTP client for the custodian.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New returns a Client for baseURL. Each call is bounded by timeout and
// retried up to retries times on transport errors and 5xx responses.
func New(baseURL string, timeout time.Duration, retries int, logger logging.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logging.Leveled{L: logger.With("module", "custodianclient")}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
}

// PersonalizedEnvelope asks the custodian for an envelope carrying the
// secret secretID, encrypted for publicKey (raw 32 bytes).
func (c *Client) PersonalizedEnvelope(ctx context.Context, secretID string, publicKey []byte) ([]byte, error) {
	u := fmt.Sprintf("%s/secrets/%s/envelopes/%s", c.baseURL,
		url.PathEscape(secretID), base64.RawURLEncoding.EncodeToString(publicKey))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrSecretNotFound
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrCommunication, resp.StatusCode)
	}

	var body envelopeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrCommunication, err)
	}

	envelope, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrCommunication, err)
	}
	return envelope, nil
}
