// Package server wires the storage backends, services and transports of
// the SecureNotes server and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/activity"
	"github.com/dmitrijs2005/securenotes/internal/server/config"
	"github.com/dmitrijs2005/securenotes/internal/server/httpapi"
	"github.com/dmitrijs2005/securenotes/internal/server/kvstore"
	"github.com/dmitrijs2005/securenotes/internal/server/mailer"
	"github.com/dmitrijs2005/securenotes/internal/server/objectstore"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securenotes/internal/server/services"
	"github.com/dmitrijs2005/securenotes/internal/server/tracing"
	"github.com/dmitrijs2005/securenotes/internal/server/viewer"
	"github.com/dmitrijs2005/securenotes/internal/server/watermark"

	gs "github.com/dmitrijs2005/securenotes/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	kv         kvstore.Store
	dispatcher *activity.Dispatcher
	tracing    tracing.ShutdownFunc
	http       *httpapi.HTTPServer
	grpc       *gs.GRPCServer
	closers    []func() error
}

// NewLogger returns the zap logger writing to cfg.LogFile when one is set
// and a JSON slog logger on stdout otherwise.
func NewLogger(cfg *config.Config) logging.Logger {
	if cfg.LogFile != "" {
		return logging.NewZapLogger(logging.FileOptions{Path: cfg.LogFile, Compress: true}, false, false)
	}
	return logging.NewJSONSlogLogger(os.Stdout, slog.LevelInfo)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := NewLogger(c)
	app := &App{config: c, logger: logger}

	shutdownTracing, err := tracing.Init(ctx, c.OTELEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.tracing = shutdownTracing

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	if c.RedisURL != "" {
		rs, err := kvstore.NewRedis(ctx, c.RedisURL)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.kv = rs
		app.closers = append(app.closers, rs.Close)
	} else {
		logger.Warn(ctx, "Redis is not configured, one-time codes are kept in memory")
		app.kv = kvstore.NewMemory()
	}

	store, err := objectstore.New(ctx, objectstore.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	var ml mailer.Mailer = mailer.NewLogMailer(logger)
	if c.MailEnabled() {
		ml = mailer.NewSMTPMailer(mailer.SMTPOptions{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		}, logger)
	}

	app.dispatcher = activity.NewDispatcher(rm.Activity(db), logger.With("module", "activity"), activity.DefaultWriteTimeout)

	identity := services.NewIdentityService(db, rm, c, logger)
	noteViewer := viewer.New(rm.Notes(db), rm.Attachments(db), store, app.dispatcher, logger.With("module", "viewer"), viewer.Options{
		SignedURLTTL:    c.SignedURLTTL,
		SignConcurrency: int64(c.SignConcurrency),
		FetchRetries:    c.FetchRetries,
		FetchRetryBase:  c.FetchRetryBase,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Identity:      identity,
		OTP:           services.NewOTPService(identity, app.kv, services.NewLogOTPSender(logger)),
		OAuth:         services.NewOAuthService(identity, c),
		PasswordReset: services.NewPasswordResetService(db, rm, app.kv, ml, c.AppBaseURL, logger),
		Catalog:       services.NewCatalogService(db, rm),
		Viewer:        noteViewer,
		Admin:         services.NewAdminService(db, rm, store, logger),
		Watermarks:    watermark.NewRenderer(0),
	}, logger, c.SecretKey)

	app.http = httpapi.NewHTTPServer(c.HTTPAddr, router, logger)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, noteViewer, c.SecretKey)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and gRPC until a signal arrives or either server fails,
// then drains pending activity writes and releases connections.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.grpc.Run(gctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}

	app.logger.Info(ctx, "Stopping app...")
	app.dispatcher.Close()
	if terr := app.tracing(context.WithoutCancel(ctx)); terr != nil {
		app.logger.Warn(ctx, "tracing shutdown", "error", terr)
	}
	app.close()

	return err
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close error", "error", err)
		}
	}
	app.closers = nil
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
