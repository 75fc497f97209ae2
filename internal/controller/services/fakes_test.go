package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/config"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/models"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/repositories/files"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/repositories/tickets"
	"github.com/dmitrijs2005/ghgadelivery/internal/dbx"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

// --- repositories ---

type fakeFilesRepo struct {
	mu     sync.Mutex
	files  map[string]*models.RegisteredFile
	getErr error
	regErr error
}

func newFakeFilesRepo(fs ...*models.RegisteredFile) *fakeFilesRepo {
	r := &fakeFilesRepo{files: map[string]*models.RegisteredFile{}}
	for _, f := range fs {
		r.files[f.FileID] = f
	}
	return r
}

func (r *fakeFilesRepo) Register(_ context.Context, f *models.RegisteredFile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.regErr != nil {
		return false, r.regErr
	}
	if _, ok := r.files[f.FileID]; ok {
		return false, nil
	}
	cp := *f
	r.files[f.FileID] = &cp
	return true, nil
}

func (r *fakeFilesRepo) Get(_ context.Context, id string) (*models.RegisteredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	f, ok := r.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFilesRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.files, id)
	return nil
}

func (r *fakeFilesRepo) TouchLastAccessed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[id]; ok {
		f.LastAccessed = &at
	}
	return nil
}

func (r *fakeFilesRepo) ClearLastAccessed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.files[id]; ok {
		f.LastAccessed = nil
	}
	return nil
}

func (r *fakeFilesRepo) ListStale(_ context.Context, before time.Time, limit int) ([]*models.RegisteredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RegisteredFile
	for _, f := range r.files {
		if f.LastAccessed != nil && f.LastAccessed.Before(before) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeTicketsRepo struct {
	mu        sync.Mutex
	tickets   map[string]time.Time
	createErr error
}

func newFakeTicketsRepo() *fakeTicketsRepo {
	return &fakeTicketsRepo{tickets: map[string]time.Time{}}
}

func (r *fakeTicketsRepo) CreateIfAbsent(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return false, r.createErr
	}
	if created, ok := r.tickets[id]; ok && !created.Before(staleBefore) {
		return false, nil
	}
	r.tickets[id] = now
	return true, nil
}

func (r *fakeTicketsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, id)
	return nil
}

func (r *fakeTicketsRepo) PurgeExpired(_ context.Context, staleBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, created := range r.tickets {
		if created.Before(staleBefore) {
			delete(r.tickets, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeTicketsRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}

type fakeRepoManager struct {
	f *fakeFilesRepo
	t *fakeTicketsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.f }
func (m *fakeRepoManager) Tickets(dbx.DBTX) tickets.Repository          { return m.t }

// --- collaborators ---

type fakeOutbox struct {
	mu         sync.Mutex
	resident   map[string]bool
	existsErr  error
	presignErr error
	deleteErr  error
	deleted    []string
}

func (o *fakeOutbox) Exists(_ context.Context, alias, objectID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.existsErr != nil {
		return false, o.existsErr
	}
	return o.resident[alias+"/"+objectID], nil
}

func (o *fakeOutbox) PresignGet(_ context.Context, alias, objectID string) (string, error) {
	if o.presignErr != nil {
		return "", o.presignErr
	}
	return "https://s3.example/" + alias + "/" + objectID + "?sig", nil
}

func (o *fakeOutbox) Delete(_ context.Context, alias, objectID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deleteErr != nil {
		return o.deleteErr
	}
	o.deleted = append(o.deleted, alias+"/"+objectID)
	delete(o.resident, alias+"/"+objectID)
	return nil
}

type fakeCustodian struct {
	envelope []byte
	err      error
	secretID string
	pk       []byte
}

func (c *fakeCustodian) PersonalizedEnvelope(_ context.Context, secretID string, pk []byte) ([]byte, error) {
	c.secretID, c.pk = secretID, pk
	if c.err != nil {
		return nil, c.err
	}
	return c.envelope, nil
}

type published struct {
	topic, eventType, key string
	payload               any
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakePublisher) Publish(_ context.Context, topic, eventType, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, eventType: eventType, key: key, payload: payload})
	return nil
}

func (p *fakePublisher) ofType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.sent {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// --- wiring ---

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	svc       *DataRepositoryService
	files     *fakeFilesRepo
	tickets   *fakeTicketsRepo
	outbox    *fakeOutbox
	custodian *fakeCustodian
	publisher *fakePublisher
	mock      sqlmock.Sqlmock
}

func testConfig() *config.Config {
	var c config.Config
	c.LoadDefaults()
	return &c
}

func newEnv(t *testing.T, fs ...*models.RegisteredFile) *env {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := &env{
		files:     newFakeFilesRepo(fs...),
		tickets:   newFakeTicketsRepo(),
		outbox:    &fakeOutbox{resident: map[string]bool{}},
		custodian: &fakeCustodian{},
		publisher: &fakePublisher{},
		mock:      mock,
	}
	e.svc = NewDataRepositoryService(db, &fakeRepoManager{f: e.files, t: e.tickets},
		e.outbox, e.custodian, e.publisher, testConfig(), logging.Nop{})
	e.svc.now = func() time.Time { return testNow }
	return e
}

func sampleFile(id string, size int64) *models.RegisteredFile {
	return &models.RegisteredFile{
		FileID:          id,
		StorageAlias:    "test",
		ObjectID:        "obj-" + id,
		DecryptedSize:   size,
		DecryptedSHA256: "sha-" + id,
		SecretID:        "secret-" + id,
		CreationDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
