// Package app wires and runs the Retrieval Controller: the HTTP surface,
// one event consumer per subscribed topic and the optional outbox janitor.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/ghgadelivery/internal/controller/config"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/custodianclient"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/httpapi"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/repositories/repomanager"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/storage"
	"github.com/dmitrijs2005/ghgadelivery/internal/eventbus"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	repomanager repomanager.RepositoryManager
	bus         *eventbus.RedisBus
	service     *services.DataRepositoryService
	server      *httpapi.HTTPServer
}

// NewApp builds every dependency without contacting any of them.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel, "retrieval-controller")

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	outbox, err := storage.NewOutbox(ctx, c.StorageNodes, c.PresignedURLExpiration)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	rdb := eventbus.NewRedisClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
	bus := eventbus.NewRedisBus(rdb, eventbus.RetryPolicy{
		MaxRetries:        c.EventMaxRetries,
		InitialBackoff:    c.EventRetryBackoff,
		DeadLetterEnabled: c.DeadLetterEnabled,
		DeadLetterTopic:   c.DeadLetterTopic,
	}, logger)

	rm := repomanager.NewPostgresRepositoryManager()
	custodian := custodianclient.New(c.CustodianBaseURL, c.CustodianTimeout, c.CustodianRetries, logger)
	svc := services.NewDataRepositoryService(db, rm, outbox, custodian, bus, c, logger)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		redis:       rdb,
		repomanager: rm,
		bus:         bus,
		service:     svc,
		server:      httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, svc, c.WorkOrderSecret),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startConsumer runs one subscription. A consumer that stops on its own
// (retries exhausted with dead-lettering off) takes the process down.
func (app *App) startConsumer(ctx context.Context, cancelFunc context.CancelFunc, sub eventbus.Subscription) {
	err := app.bus.Consume(ctx, sub)
	if err == nil {
		return
	}
	if errors.Is(err, eventbus.ErrRetriesExhausted) {
		app.logger.Error(ctx, "consumer gave up, shutting down", "topic", sub.Topic, "error", err)
	} else {
		app.logger.Error(ctx, "consumer failed", "topic", sub.Topic, "error", err)
	}
	cancelFunc()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	for _, sub := range app.service.Subscriptions() {
		wg.Add(1)
		go func(sub eventbus.Subscription) {
			defer wg.Done()
			app.startConsumer(ctx, cancelFunc, sub)
		}(sub)
	}

	if app.config.JanitorInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.service.RunJanitor(ctx, app.config.JanitorInterval)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "Stopped")
	return errors.Join(app.redis.Close(), app.db.Close())
}
