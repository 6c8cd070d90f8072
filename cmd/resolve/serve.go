package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/resolve-ai/internal/application/analysis"
	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/scans"
	"github.com/bryanwahyu/resolve-ai/internal/infra/db"
	"github.com/bryanwahyu/resolve-ai/internal/infra/httpserver"
	"github.com/bryanwahyu/resolve-ai/internal/infra/storage"
	"github.com/bryanwahyu/resolve-ai/internal/middleware"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis and scan history API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		log := zap.L()

		dialect, err := db.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return err
		}
		conn, err := db.Connect(ctx, dialect, cfg.DSN())
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.Migrate(ctx, conn, dialect); err != nil {
			return err
		}

		var repo scans.Repository = db.NewScanRepository(conn, dialect)
		checkers := map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: conn},
		}

		// media ke object storage kalau minio dikonfigurasi
		if cfg.Minio.Endpoint != "" {
			store, err := storage.New(ctx,
				cfg.Minio.Endpoint,
				cfg.Minio.Region,
				cfg.Minio.BucketName,
				cfg.Minio.AccessKey,
				cfg.Minio.SecretKey,
				cfg.Minio.UseSSL,
			)
			if err != nil {
				return err
			}
			repo = storage.NewOffloadRepository(repo, store, log)
			checkers["object_storage"] = middleware.CheckerFunc(store.Ping)
		}

		prov := cfg.Provider()
		analyzer, err := newAnalyzer(ctx, cfg.AI.Provider, prov.Key, prov.Model)
		switch {
		case errors.Is(err, ai.ErrNotConfigured):
			log.Warn("ai provider not configured; /api/analyze will answer 503", zap.String("provider", cfg.AI.Provider))
		case err != nil:
			return err
		}
		svc := appanalysis.NewService(analyzer, log)

		var limiter *middleware.RateLimiter
		if cfg.Server.RateLimit.RPS > 0 {
			limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
			go limiter.Run(ctx.Done())
		}

		handler := httpserver.NewRouter(svc, repo, httpserver.Options{
			StaticDir:       cfg.Server.StaticDir,
			BodyLimitBytes:  int64(cfg.Server.BodyLimitMB) << 20,
			AnalysisTimeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
			Limiter:         limiter,
			Checkers:        checkers,
			Logger:          log,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("shutdown error", zap.Error(err))
			}
		}()

		log.Info("server listening",
			zap.Int("port", port),
			zap.String("provider", cfg.AI.Provider),
			zap.String("store", string(dialect)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
