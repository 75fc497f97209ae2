// Package app wires and runs the Envelope Custodian.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/ghgadelivery/internal/crypt4gh"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/config"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/httpapi"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/services"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/vault"
	"github.com/dmitrijs2005/ghgadelivery/internal/logging"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	service *services.SecretService
	server  *httpapi.HTTPServer
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel, "envelope-custodian")

	keys, err := crypt4gh.NewKeyPairFromBase64(c.ServerPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("server key error: %w", err)
	}

	store, err := vault.New(vault.Options{
		Addr:       c.VaultAddr,
		Token:      c.VaultToken,
		RoleID:     c.VaultRoleID,
		SecretID:   c.VaultSecretID,
		AuthMount:  c.VaultAuthMount,
		KVMount:    c.VaultKVMount,
		PathPrefix: c.VaultPathPrefix,
		Timeout:    c.VaultTimeout,
		Retries:    c.VaultRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("vault init error: %w", err)
	}

	svc := services.NewSecretService(keys, store, logger)

	return &App{
		config:  c,
		logger:  logger,
		service: svc,
		server:  httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, svc, c.MaxRequestBodyLen),
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

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		return err
	}

	app.logger.Info(context.Background(), "Stopped")
	return nil
}
