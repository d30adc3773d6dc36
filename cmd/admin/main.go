package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/config"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/help"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/identity"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/imageproxy"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/observability"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/session"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger level comes from config, so fall back to a production logger here.
		zap.Must(zap.NewProduction()).Fatal("load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("console stopped", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	client, err := backend.NewClient(cfg.Backend.URL, &http.Client{Timeout: cfg.Backend.Timeout}, backend.WithLogger(logger))
	if err != nil {
		return err
	}

	if cfg.Session.GeneratedKeys {
		logger.Warn("session keys generated for this process; sessions will not survive a restart")
	}
	sessions, err := session.NewManager(session.Config{
		HashKey:      cfg.Session.HashKey,
		BlockKey:     cfg.Session.BlockKey,
		CookieSecure: cfg.Session.CookieSecure,
	})
	if err != nil {
		return err
	}

	autoRefresh := cfg.QR.AutoRefresh
	if autoRefresh == 0 {
		autoRefresh = -1
	}
	registry := qrlogin.NewRegistry(qrlogin.NewHTTPBackend(client), qrlogin.Options{
		PollInterval:   cfg.QR.PollInterval,
		AutoRefresh:    autoRefresh,
		RequestTimeout: cfg.QR.RequestTimeout,
		Logger:         logger.Named("qrlogin"),
	}, qrlogin.DefaultIdleTimeout)
	go registry.Run(ctx, time.Minute)

	docs, err := help.Load()
	if err != nil {
		return err
	}

	var proxy *imageproxy.Handler
	if cfg.ImageProxy.Enabled {
		proxy = imageproxy.NewHandler(imageproxy.Options{Logger: logger.Named("imageproxy")})
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:               cfg.Server.Addr,
		BasePath:              cfg.Server.BasePath,
		Environment:           cfg.Server.Environment,
		Logger:                logger,
		FirebaseAuthenticator: buildFirebaseAuthenticator(ctx, cfg.Firebase, logger),
		Sessions:              sessions,
		CookieSecure:          cfg.Session.CookieSecure,
		Identity:              identity.NewHTTPService(client),
		Accounts:              accounts.NewHTTPService(client),
		Videos:                videos.NewHTTPService(client),
		QR:                    registry,
		AutoRefreshChoices:    config.AutoRefreshChoices,
		ImageProxy:            proxy,
		Help:                  docs,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("console listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("backend", cfg.Backend.URL),
		zap.Bool("image_proxy", proxy != nil),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("console stopped")
	return nil
}

func buildFirebaseAuthenticator(ctx context.Context, cfg config.FirebaseConfig, logger *zap.Logger) middleware.Authenticator {
	if cfg.ProjectID == "" {
		logger.Debug("FIREBASE_PROJECT_ID not set; Firebase sign-in disabled")
		return nil
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
	if err != nil {
		logger.Warn("failed to initialise Firebase app", zap.Error(err))
		return nil
	}

	client, err := app.Auth(ctx)
	if err != nil {
		logger.Warn("failed to initialise Firebase auth client", zap.Error(err))
		return nil
	}

	logger.Info("Firebase authenticator enabled", zap.String("project", cfg.ProjectID))
	return middleware.NewFirebaseAuthenticator(client)
}
