// Package server wires the auth server together: configuration, storage,
// outbound mail, the auth service and the HTTP and gRPC surfaces. It also
// owns graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/telemetry"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	handler http.Handler
	health  *gs.HealthServer

	// closers run in reverse order once both servers have stopped.
	closers []func(context.Context) error
}

// NewApp builds every component from c. A missing signing secret fails
// before any connection is opened.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	signer, err := auth.NewSessionSigner(c.SecretKey, c.SessionTTL)
	if err != nil {
		return nil, err
	}

	a := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.ServiceName, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	store, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("db prepare error: %w", err)
	}

	transport, closeTransport, err := newTransport(c.Mail, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeTransport)

	templates, err := loadTemplates(ctx, c.TemplateS3, logger)
	if err != nil {
		return nil, err
	}

	mailer, err := notify.NewMailer(transport, logger,
		notify.WithFrom(c.Mail.From),
		notify.WithClientURL(c.ClientURL),
		notify.WithLifetimes(c.VerificationTTL, c.ResetTTL),
		notify.WithTemplates(templates),
	)
	if err != nil {
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	m := metrics.New()

	svc, err := services.NewAuthService(store.Accounts(), mailer, signer, logger,
		services.WithHasher(cryptox.NewHasher(c.BcryptCost)),
		services.WithMetrics(m),
		services.WithLifetimes(c.VerificationTTL, c.ResetTTL),
		services.WithClientURL(c.ClientURL),
		services.WithConcealUnknownEmail(c.ConcealUnknownEmail),
	)
	if err != nil {
		return nil, err
	}

	api, err := httpapi.New(svc, signer, store, m, logger, httpapi.Config{
		ClientURL:    c.ClientURL,
		SecureCookie: !c.IsLocal(),
		ServiceName:  telemetry.ServiceName,
	})
	if err != nil {
		return nil, err
	}

	a.handler = api.Routes()
	a.health = gs.NewHealthServer(c.GRPCAddr, logger, store, healthCheckInterval)
	return a, nil
}

// newTransport picks the outbound mail transport. The returned closer is
// never nil.
func newTransport(c config.MailConfig, logger logging.Logger) (notify.Transport, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch c.Transport {
	case config.MailTransportSMTP:
		return notify.NewSMTPTransport(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword), noop, nil
	case config.MailTransportNATS:
		t, err := notify.DialNATS(c.NATSURL, c.NATSSubject)
		if err != nil {
			return nil, nil, err
		}
		return t, func(context.Context) error { t.Close(); return nil }, nil
	case config.MailTransportLog, "":
		return notify.NewLogTransport(logger), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown mail transport %q", c.Transport)
}

// loadTemplates returns the embedded templates, overridden from S3 when a
// bucket is configured.
func loadTemplates(ctx context.Context, c config.S3Config, logger logging.Logger) (*notify.Templates, error) {
	templates, err := notify.DefaultTemplates()
	if err != nil {
		return nil, err
	}
	if c.Bucket == "" {
		return templates, nil
	}

	client, err := notify.NewS3Client(ctx, notify.S3Options{
		Region:       c.Region,
		BaseEndpoint: c.BaseEndpoint,
		User:         c.RootUser,
		Password:     c.RootPassword,
	})
	if err != nil {
		return nil, err
	}

	loaded, err := notify.LoadS3Templates(ctx, client, c.Bucket, c.Prefix, templates)
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}
	logger.Info(ctx, "email templates loaded from s3", "bucket", c.Bucket, "overridden", loaded)
	return templates, nil
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
	srv := httpapi.NewServer(app.config.HTTPAddr, app.handler)

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a termination signal arrives or one of
// the servers fails, then releases every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.close(sctx)
	app.logger.Info(sctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			app.logger.Error(ctx, "close", "error", err)
		}
	}
	app.closers = nil
}
