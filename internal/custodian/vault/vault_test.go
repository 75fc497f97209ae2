package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const versionMetadata = `{"created_time":"2024-06-01T12:00:00Z","custom_metadata":null,"deletion_time":"","destroyed":false,"version":1}`

// fakeKV mimics the subset of Vault's KV v2 and AppRole APIs the client uses.
type fakeKV struct {
	mu      sync.Mutex
	secrets map[string]map[string]string
	token   string
	logins  int
	// failNext makes the next data request answer with this status.
	failNext int
}

func newFakeKV(token string) *fakeKV {
	return &fakeKV{secrets: map[string]map[string]string{}, token: token}
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/v1/auth/approle/login" {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["role_id"] != "role" || body["secret_id"] != "sid" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.logins++
		_ = json.NewEncoder(w).Encode(map[string]any{"auth": map[string]any{"client_token": f.token}})
		return
	}

	if r.Header.Get("X-Vault-Token") != f.token {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if f.failNext != 0 {
		w.WriteHeader(f.failNext)
		f.failNext = 0
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/v1/secret/data/ekss/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/ekss/")
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			var body struct {
				Options map[string]int    `json:"options"`
				Data    map[string]string `json:"data"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			cas, hasCAS := body.Options["cas"]
			if _, exists := f.secrets[id]; exists && hasCAS && cas == 0 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"errors":["check-and-set parameter did not match the current version"]}`))
				return
			}
			f.secrets[id] = body.Data
			_, _ = w.Write([]byte(`{"data":` + versionMetadata + `}`))
		case http.MethodGet:
			data, ok := f.secrets[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"data":     data,
				"metadata": json.RawMessage(versionMetadata),
			}})
		}
	case strings.HasPrefix(r.URL.Path, "/v1/secret/metadata/ekss/") && r.Method == http.MethodDelete:
		delete(f.secrets, strings.TrimPrefix(r.URL.Path, "/v1/secret/metadata/ekss/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeKV) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func newTestClient(t *testing.T, kv *fakeKV, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(kv)
	t.Cleanup(srv.Close)

	opts.Addr = srv.URL + "/"
	opts.KVMount = "secret"
	opts.PathPrefix = "/ekss/"
	if opts.AuthMount == "" {
		opts.AuthMount = "approle"
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	c, err := New(opts, logging.Nop{})
	require.NoError(t, err)
	return c
}

func TestCreateReadDelete(t *testing.T) {
	kv := newFakeKV("tok")
	c := newTestClient(t, kv, Options{Token: "tok"})
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, "id-1", []byte{1, 2, 3}))

	got, err := c.Read(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, c.Delete(ctx, "id-1"))

	_, err = c.Read(ctx, "id-1")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.ErrorIs(t, c.Delete(ctx, "id-1"), ErrSecretNotFound)
}

func TestCreate_ExistingIDIsRejected(t *testing.T) {
	kv := newFakeKV("tok")
	c := newTestClient(t, kv, Options{Token: "tok"})
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, "id-1", []byte("first")))
	err := c.Create(ctx, "id-1", []byte("second"))
	assert.ErrorIs(t, err, ErrSecretInsertion)

	got, err := c.Read(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestCreate_WrongTokenIsInsertionError(t *testing.T) {
	kv := newFakeKV("tok")
	c := newTestClient(t, kv, Options{Token: "other"})

	assert.ErrorIs(t, c.Create(context.Background(), "id-1", []byte("x")), ErrSecretInsertion)
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(Options{Addr: addr, Token: "tok", KVMount: "secret", PathPrefix: "ekss", Timeout: time.Second}, logging.Nop{})
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, c.Create(ctx, "id", []byte("x")), ErrConnection)
	_, err = c.Read(ctx, "id")
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, c.Delete(ctx, "id"), ErrConnection)
}

func TestRead_RetriesServerErrors(t *testing.T) {
	kv := newFakeKV("tok")
	c := newTestClient(t, kv, Options{Token: "tok", Retries: 1})
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, "id-1", []byte("x")))
	kv.mu.Lock()
	kv.failNext = http.StatusServiceUnavailable
	kv.mu.Unlock()

	got, err := c.Read(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestRead_UnexpectedStatus(t *testing.T) {
	kv := newFakeKV("tok")
	c := newTestClient(t, kv, Options{Token: "tok"})
	kv.mu.Lock()
	kv.failNext = http.StatusTeapot
	kv.mu.Unlock()

	_, err := c.Read(context.Background(), "id-1")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestAppRoleLogin(t *testing.T) {
	kv := newFakeKV("approle-token")
	c := newTestClient(t, kv, Options{RoleID: "role", SecretID: "sid"})
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, "id-1", []byte("x")))
	_, err := c.Read(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, 1, kv.loginCount())

	// token rotated server side: one re-login and replay
	kv.mu.Lock()
	kv.token = "rotated"
	kv.mu.Unlock()

	_, err = c.Read(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, 2, kv.loginCount())
}

func TestAppRoleLogin_BadCredentials(t *testing.T) {
	kv := newFakeKV("approle-token")
	c := newTestClient(t, kv, Options{RoleID: "role", SecretID: "wrong"})

	_, err := c.Read(context.Background(), "id-1")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestRead_SoftDeletedVersionIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"data":{"data":null,"metadata":{"created_time":"2024-06-01T12:00:00Z","deletion_time":"2024-06-02T12:00:00Z","destroyed":false,"version":1}}}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{Addr: srv.URL, Token: "tok", KVMount: "secret", PathPrefix: "ekss", Timeout: time.Second}, logging.Nop{})
	require.NoError(t, err)

	_, err = c.Read(context.Background(), "id-1")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestCreate_SendsCheckAndSetZero(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"data":` + versionMetadata + `}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{Addr: srv.URL, Token: "tok", KVMount: "secret", PathPrefix: "ekss", Timeout: time.Second}, logging.Nop{})
	require.NoError(t, err)

	require.NoError(t, c.Create(context.Background(), "id-1", []byte{1}))
	assert.Equal(t, map[string]any{"cas": float64(0)}, got["options"])
	assert.Equal(t, map[string]any{"secret": "AQ=="}, got["data"])
}
