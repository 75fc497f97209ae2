package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/controller/custodianclient"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int64
	}{
		{name: "one gigabyte at 100 MB/s", size: 1_000_000_000, want: 10},
		{name: "tiny file clamps to min", size: 10, want: 5},
		{name: "huge file clamps to max", size: 1_000_000_000_000, want: 300},
		{name: "exactly max", size: 30_000_000_000, want: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryAfter(tt.size, 100, 5, 300))
		})
	}
}

func TestRetryAfter_MonotonicInSize(t *testing.T) {
	prev := RetryAfter(0, 100, 5, 300)
	for size := int64(0); size <= 40_000_000_000; size += 250_000_000 {
		got := RetryAfter(size, 100, 5, 300)
		require.GreaterOrEqual(t, got, prev, "size %d", size)
		require.GreaterOrEqual(t, got, int64(5))
		require.LessOrEqual(t, got, int64(300))
		prev = got
	}
}

func TestRetryAfter_NoSpeedUsesMax(t *testing.T) {
	assert.Equal(t, int64(300), RetryAfter(1, 0, 5, 300))
}

func TestGetMetadata_WrongFileAuthorization(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 10), sampleFile("f2", 10))

	for _, path := range []string{"f1", "unknown"} {
		_, err := e.svc.GetMetadata(context.Background(), path, &WorkOrder{FileID: "f2"})
		assert.ErrorIs(t, err, ErrWrongFileAuthorization, path)
	}

	_, err := e.svc.GetMetadata(context.Background(), "f1", nil)
	assert.ErrorIs(t, err, ErrWrongFileAuthorization)
}

func TestGetMetadata_NotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGetMetadata_DBError(t *testing.T) {
	e := newEnv(t)
	e.files.getErr = errors.New("conn reset")

	_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	assert.ErrorIs(t, err, ErrDBInteraction)
}

func TestGetMetadata_Resident(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 1000))
	e.outbox.resident["test/obj-f1"] = true

	res, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	require.NoError(t, err)
	require.NotNil(t, res.Object)

	obj := res.Object
	assert.Equal(t, "f1", obj.ID)
	assert.Equal(t, "drs://localhost:8080/f1", obj.SelfURI)
	assert.Equal(t, int64(1000), obj.Size)
	assert.Equal(t, "sha-f1", obj.Checksums[0].Checksum)
	assert.Equal(t, "https://s3.example/test/obj-f1?sig", obj.AccessMethods[0].AccessURL.URL)

	stored, _ := e.files.Get(context.Background(), "f1")
	require.NotNil(t, stored.LastAccessed)
	assert.Equal(t, testNow, *stored.LastAccessed)

	served := e.publisher.ofType(events.TypeDownloadServed)
	require.Len(t, served, 1)
	assert.Equal(t, "file-downloads", served[0].topic)
	assert.Equal(t, events.DownloadServed{FileID: "f1", Timestamp: testNow}, served[0].payload)
	assert.Empty(t, e.publisher.ofType(events.TypeStagingRequested))
}

func TestGetMetadata_ResidentSurvivesPublishFailure(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 1000))
	e.outbox.resident["test/obj-f1"] = true
	e.publisher.err = errors.New("redis down")

	res, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	require.NoError(t, err)
	assert.NotNil(t, res.Object)
}

func TestGetMetadata_StagingRequestedOnce(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 1_000_000_000))

	for i := 0; i < 3; i++ {
		res, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
		require.NoError(t, err)
		assert.Nil(t, res.Object)
		assert.Equal(t, int64(10), res.RetryAfter)
	}

	reqs := e.publisher.ofType(events.TypeStagingRequested)
	require.Len(t, reqs, 1)
	assert.Equal(t, "file-staging-requests", reqs[0].topic)
	assert.Equal(t, "f1", reqs[0].key)
	assert.Equal(t, events.StagingRequested{FileID: "f1", Size: 1_000_000_000}, reqs[0].payload)
	assert.Equal(t, 1, e.tickets.count())
}

func TestGetMetadata_ConcurrentRequestsPublishOnce(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 50))

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
			if err == nil && res.Object != nil {
				err = errors.New("unexpected object")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, e.publisher.ofType(events.TypeStagingRequested), 1)
	assert.Equal(t, 1, e.tickets.count())
}

func TestGetMetadata_ExpiredTicketRepublishes(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 50))
	e.tickets.tickets["f1"] = testNow.Add(-48 * time.Hour)

	_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	require.NoError(t, err)
	assert.Len(t, e.publisher.ofType(events.TypeStagingRequested), 1)
	assert.Equal(t, testNow, e.tickets.tickets["f1"])
}

func TestGetMetadata_PublishFailureWithdrawsTicket(t *testing.T) {
	e := newEnv(t, sampleFile("f1", 50))
	e.publisher.err = errors.New("redis down")

	_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	assert.ErrorIs(t, err, ErrEventPublish)
	assert.Equal(t, 0, e.tickets.count())

	e.publisher.err = nil
	_, err = e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
	require.NoError(t, err)
	assert.Len(t, e.publisher.ofType(events.TypeStagingRequested), 1)
}

func TestGetMetadata_DependencyErrors(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		e.outbox.existsErr = errors.New("timeout")
		_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
		assert.ErrorIs(t, err, ErrObjectStorage)
	})

	t.Run("presign", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		e.outbox.resident["test/obj-f1"] = true
		e.outbox.presignErr = errors.New("no creds")
		_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
		assert.ErrorIs(t, err, ErrObjectStorage)
	})

	t.Run("ticket", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		e.tickets.createErr = errors.New("deadlock")
		_, err := e.svc.GetMetadata(context.Background(), "f1", &WorkOrder{FileID: "f1"})
		assert.ErrorIs(t, err, ErrDBInteraction)
	})
}

func TestGetEnvelope(t *testing.T) {
	pk := []byte("requester-public-key-32-bytes!!!")

	t.Run("ok", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		e.custodian.envelope = []byte("envelope")

		env, err := e.svc.GetEnvelope(context.Background(), "f1", &WorkOrder{FileID: "f1", PublicKey: pk})
		require.NoError(t, err)
		assert.Equal(t, []byte("envelope"), env)
		assert.Equal(t, "secret-f1", e.custodian.secretID)
		assert.Equal(t, pk, e.custodian.pk)
	})

	t.Run("wrong file", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		_, err := e.svc.GetEnvelope(context.Background(), "f1", &WorkOrder{FileID: "f2", PublicKey: pk})
		assert.ErrorIs(t, err, ErrWrongFileAuthorization)
	})

	t.Run("unknown file", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.svc.GetEnvelope(context.Background(), "f1", &WorkOrder{FileID: "f1", PublicKey: pk})
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("secret gone", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		e.custodian.err = custodianclient.ErrSecretNotFound
		_, err := e.svc.GetEnvelope(context.Background(), "f1", &WorkOrder{FileID: "f1", PublicKey: pk})
		assert.ErrorIs(t, err, ErrEnvelopeNotFound)
	})

	t.Run("custodian unreachable", func(t *testing.T) {
		e := newEnv(t, sampleFile("f1", 50))
		e.custodian.err = custodianclient.ErrCommunication
		_, err := e.svc.GetEnvelope(context.Background(), "f1", &WorkOrder{FileID: "f1", PublicKey: pk})
		assert.ErrorIs(t, err, ErrExternalAPI)
		assert.NotErrorIs(t, err, custodianclient.ErrCommunication)
	})
}
