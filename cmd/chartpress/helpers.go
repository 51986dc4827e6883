package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chartpress/internal/baker"
	"chartpress/internal/config"
	"chartpress/internal/errreport"
	"chartpress/internal/publish"
	"chartpress/internal/search"
	"chartpress/internal/snapshot"
	"chartpress/internal/store"
)

// contentSource is what both the Postgres store and a git snapshot provide.
type contentSource interface {
	baker.ContentSource
	Ping(ctx context.Context) error
}

// runtime owns the process-wide dependencies of one command invocation.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	closers []func()
}

func setup() (*runtime, error) {
	cfg := config.Load()
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger}, nil
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	_ = rt.logger.Sync()
}

func (rt *runtime) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := store.Open(ctx, rt.cfg.DatabaseURL, store.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = db.Close() })
	return db, nil
}

// content returns the post source for a command. With fromSnapshot the git
// snapshot is used and no database connection is opened, so db is nil.
func (rt *runtime) content(ctx context.Context, fromSnapshot bool) (contentSource, *sql.DB, error) {
	if fromSnapshot {
		rt.logger.Info("reading posts from snapshot", zap.String("dir", rt.cfg.SnapshotDir))
		return snapshot.New(rt.cfg.SnapshotDir), nil, nil
	}
	db, err := rt.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(db), db, nil
}

// reporter always logs; with REDIS_URL set events are also published on the
// error channel. The redis reporter is returned separately for readiness checks.
func (rt *runtime) reporter() (errreport.Reporter, *errreport.RedisReporter) {
	logReporter := errreport.NewLogReporter(rt.logger.Named("errreport"))
	if strings.TrimSpace(rt.cfg.RedisURL) == "" {
		return logReporter, nil
	}

	redisReporter, err := errreport.NewRedisReporter(rt.cfg.RedisURL, rt.cfg.ErrorChannel, rt.logger.Named("errreport"))
	if err != nil {
		rt.logger.Warn("redis error channel unavailable, errors are only logged", zap.Error(err))
		return logReporter, nil
	}
	rt.logger.Info("publishing errors to redis", zap.String("channel", rt.cfg.ErrorChannel))
	rt.closers = append(rt.closers, func() { _ = redisReporter.Close() })
	return errreport.Multi{logReporter, redisReporter}, redisReporter
}

// search wires Meilisearch when MEILI_URL is set and Postgres full-text search
// when a database is open.
func (rt *runtime) search(db *sql.DB) (*search.Service, *search.Meili) {
	var meiliClient *search.Meili
	if strings.TrimSpace(rt.cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(rt.cfg.MeiliURL, rt.cfg.MeiliMasterKey, 10*time.Second, rt.logger.Named("search"))
		rt.closers = append(rt.closers, meiliClient.Close)
	}
	var pgfts *search.PgFTS
	if db != nil {
		pgfts = search.NewPgFTS(db)
	}
	return search.NewService(meiliClient, pgfts, rt.logger.Named("search")), meiliClient
}

// publisher returns nil when no object storage endpoint is configured.
func (rt *runtime) publisher(ctx context.Context) (*publish.Publisher, error) {
	if strings.TrimSpace(rt.cfg.S3Endpoint) == "" {
		return nil, nil
	}
	pub, err := publish.New(publish.Options{
		Endpoint:  rt.cfg.S3Endpoint,
		AccessKey: rt.cfg.S3AccessKey,
		SecretKey: rt.cfg.S3SecretKey,
		Bucket:    rt.cfg.S3Bucket,
		Prefix:    rt.cfg.S3Prefix,
		UseSSL:    rt.cfg.S3UseSSL,
	}, rt.logger.Named("publish"))
	if err != nil {
		return nil, err
	}
	if err := pub.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return pub, nil
}

func meiliCheck(m *search.Meili) func(context.Context) error {
	return func(context.Context) error {
		if !m.Healthy() {
			return errors.New("meilisearch unhealthy")
		}
		return nil
	}
}
