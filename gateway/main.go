package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animus-labs/stamps/internal/platform/auditlog"
	"github.com/animus-labs/stamps/internal/platform/auth"
	"github.com/animus-labs/stamps/internal/platform/env"
	"github.com/animus-labs/stamps/internal/platform/httpserver"
	"github.com/animus-labs/stamps/internal/platform/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("GATEWAY_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("GATEWAY_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	if authCfg.Mode == auth.ModeGateway {
		logger.Error("gateway cannot trust another gateway", "mode", authCfg.Mode)
		os.Exit(2)
	}
	// The same secret signs the identity headers the validation service verifies.
	internalAuthSecret := env.String("STAMPS_INTERNAL_AUTH_SECRET", "")
	if internalAuthSecret == "" {
		logger.Error("missing internal auth secret", "env", "STAMPS_INTERNAL_AUTH_SECRET")
		os.Exit(2)
	}

	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	authenticator, err := auth.NewAuthenticator(authCtx, authCfg)
	cancel()
	if err != nil {
		logger.Error("auth init failed", "mode", authCfg.Mode, "error", err)
		os.Exit(1)
	}

	auditFn := func(ctx context.Context, event auth.DenyEvent) error {
		auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
		defer cancel()
		return auditlog.InsertAuthDeny(auditCtx, db, "gateway", event)
	}
	protected := func(handler http.Handler) http.Handler {
		return auth.Middleware{
			Logger:        logger,
			Authenticator: authenticator,
			Authorize:     auth.MethodRoleAuthorizer(),
			Audit:         auditFn,
		}.Wrap(handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("gateway"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("gateway", httpserver.ReadinessCheck{
		Name:  "postgres",
		Check: httpserver.WithTimeout(750*time.Millisecond, db.PingContext),
	}))

	if oidc, ok := authenticator.(*auth.OIDCService); ok {
		mux.HandleFunc("GET /auth/login", oidc.LoginHandler())
		mux.HandleFunc("GET /auth/callback", oidc.CallbackHandler())
		mux.HandleFunc("POST /auth/logout", oidc.LogoutHandler())
	}
	mux.Handle("GET /auth/session", auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Audit:         auditFn,
	}.Wrap(http.HandlerFunc(handleSession)))

	validationProxy, err := newReverseProxy(logger, internalAuthSecret, env.String("VALIDATION_BASE_URL", "http://localhost:8090"), nil)
	if err != nil {
		logger.Error("proxy init failed", "service", "validation", "error", err)
		os.Exit(2)
	}
	mux.Handle("/api/validation/", protected(http.StripPrefix("/api/validation", validationProxy)))

	cfg := httpserver.Config{
		Service:         "gateway",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	logger.Info("gateway starting", "auth_mode", authCfg.Mode)
	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "gateway", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
