package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/platform/auditlog"
	"github.com/animus-labs/stamps/internal/platform/auth"
	"github.com/animus-labs/stamps/internal/platform/env"
	"github.com/animus-labs/stamps/internal/platform/httpserver"
	"github.com/animus-labs/stamps/internal/platform/objectstore"
	"github.com/animus-labs/stamps/internal/platform/postgres"
	"github.com/animus-labs/stamps/internal/repo"
	"github.com/animus-labs/stamps/internal/repo/memory"
	pgrepo "github.com/animus-labs/stamps/internal/repo/postgres"
	"github.com/animus-labs/stamps/internal/service/reports"
	"github.com/animus-labs/stamps/internal/service/validation"
)

const serviceName = "validation"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("VALIDATION_HTTP_ADDR", ":8090")
	shutdownTimeout, err := env.Duration("VALIDATION_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	storeKind, err := env.OneOf("VALIDATION_STORE", "postgres", "postgres", "memory")
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	reportsEnabled, err := env.Bool("VALIDATION_REPORTS_ENABLED", true)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	var checks []httpserver.ReadinessCheck
	var db *sql.DB
	var stamps repo.StampRepository
	var runs repo.RunRepository
	switch storeKind {
	case "postgres":
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err = postgres.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		stamps = pgrepo.NewStampStore(db)
		runs = pgrepo.NewRunStore(db)
		checks = append(checks, httpserver.ReadinessCheck{
			Name:  "postgres",
			Check: httpserver.WithTimeout(750*time.Millisecond, db.PingContext),
		})
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.New()
		stamps, runs = store, store
	}

	svc := validation.New(stamps, runs, datatype.Builtin(), logger)

	var publisher *reports.Publisher
	if reportsEnabled {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		client, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBucket(startupCtx, client, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		minioStore, err := objectstore.NewMinioStore(client)
		if err != nil {
			logger.Error("object store init failed", "error", err)
			os.Exit(2)
		}
		var audit reports.AuditFunc
		if db != nil {
			audit = func(ctx context.Context, event auditlog.Event) error {
				_, err := auditlog.Insert(ctx, db, event)
				return err
			}
		}
		publisher = reports.NewPublisher(minioStore, storeCfg.BucketReports, audit)
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "minio",
			Check: httpserver.WithTimeout(750*time.Millisecond, func(ctx context.Context) error {
				return objectstore.CheckBucket(ctx, client, storeCfg)
			}),
		})
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	authenticator, err := auth.NewAuthenticator(authCtx, authCfg)
	cancel()
	if err != nil {
		logger.Error("auth init failed", "mode", authCfg.Mode, "error", err)
		os.Exit(1)
	}

	doc, err := loadOpenAPI(ctx)
	if err != nil {
		logger.Error("invalid openapi document", "error", err)
		os.Exit(2)
	}
	validator, err := newRequestValidator(logger, doc)
	if err != nil {
		logger.Error("openapi router init failed", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks(serviceName, checks...))
	mux.HandleFunc("GET /openapi.yaml", handleOpenAPI)
	if oidc, ok := authenticator.(*auth.OIDCService); ok {
		mux.HandleFunc("GET /auth/login", oidc.LoginHandler())
		mux.HandleFunc("GET /auth/callback", oidc.CallbackHandler())
		mux.HandleFunc("POST /auth/logout", oidc.LogoutHandler())
	}

	api := newValidationAPI(logger, svc, publisher)
	api.register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.MethodRoleAuthorizer(),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			if db == nil {
				return nil
			}
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, serviceName, event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz", "/openapi.yaml", "/auth/"},
	}.Wrap(validator.Wrap(mux))

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	logger.Info("validation service starting", "store", storeKind, "auth_mode", authCfg.Mode, "reports", publisher != nil)
	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, serviceName, handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
