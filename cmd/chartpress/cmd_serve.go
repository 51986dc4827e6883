package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chartpress/internal/app"
	"chartpress/internal/nav"
	"chartpress/internal/overrides"
	"chartpress/internal/store"
)

var serveFlags struct {
	fromSnapshot   bool
	skipMigrations bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only page metadata API",
	Long: `Starts the HTTP API with health, readiness, page override, axis tick and
search endpoints. Migrations are applied on startup unless --skip-migrations
is set or posts are served from the git snapshot.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.BoolVar(&serveFlags.fromSnapshot, "from-snapshot", false, "Serve posts from the git snapshot instead of Postgres")
	f.BoolVar(&serveFlags.skipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	content, db, err := rt.content(ctx, serveFlags.fromSnapshot)
	if err != nil {
		return err
	}
	if db != nil && !serveFlags.skipMigrations {
		if _, err := store.ApplyMigrations(ctx, db, rt.cfg.MigrationsDir, logger.Named("migrate")); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	tree, err := nav.Load(rt.cfg.NavFile)
	if err != nil {
		return err
	}

	reporter, redisReporter := rt.reporter()
	resolver := overrides.NewResolver(content, tree, reporter, logger.Named("overrides"), rt.cfg.BaseURL)
	searchService, meiliClient := rt.search(db)

	service := app.New(content, resolver, searchService, logger.Named("app"))
	if redisReporter != nil {
		service.AddReadinessCheck("redis", redisReporter.Ping)
	}
	if meiliClient != nil {
		service.AddReadinessCheck("meilisearch", meiliCheck(meiliClient))
	}

	httpServer := app.NewHTTPServer(service, rt.cfg.CORSOrigin, logger.Named("http"))
	server := &http.Server{
		Addr:              rt.cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chartpress api listening", zap.String("addr", rt.cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("chartpress api stopped")
	return nil
}
