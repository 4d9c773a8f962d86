// Package backend connects the data stores named in the config and assembles the
// application repository stack on top of them.
package backend

import (
	"context"
	"fmt"
	"time"

	"application-board/internal/activity"
	"application-board/internal/common/config"
	"application-board/internal/common/database"
	"application-board/internal/common/logger"
	"application-board/internal/store"

	"go.uber.org/zap"
)

// RetryWithBackoff attempts to execute a function with exponential backoff
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Stores holds the live connections. Redis and Elasticsearch are nil when unused.
type Stores struct {
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Search   *database.ElasticsearchClient
	Recorder *activity.Recorder

	// Repository is Postgres, optionally wrapped with the activity log and the list cache.
	Repository store.Repository
}

// Options tunes connection retries.
type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// Open connects every store the config enables and builds the repository stack.
func Open(ctx context.Context, cfg *config.Config, opts Options, zapLog *zap.Logger, log logger.Logger) (*Stores, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	s := &Stores{}

	err := RetryWithBackoff(func() error {
		var err error
		s.Postgres, err = database.NewPostgres(ctx, cfg.Database.Postgres)
		return err
	}, opts.MaxRetries, opts.InitialDelay, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	var repo store.Repository = store.NewPostgresRepository(s.Postgres.DB, log)

	if cfg.Activity.Enabled {
		err = RetryWithBackoff(func() error {
			var err error
			s.Search, err = database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
			if err != nil {
				return err
			}
			return s.Search.Ping(ctx)
		}, opts.MaxRetries, opts.InitialDelay, zapLog, "Elasticsearch connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Recorder = activity.NewRecorder(s.Search, cfg.Activity.Index, log)
		if err := s.Recorder.EnsureIndex(ctx); err != nil {
			// the log is optional; the board works without it
			zapLog.Warn("activity index unavailable", zap.Error(err))
		}
		repo = activity.WrapRepository(repo, s.Recorder, log)
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Activity.Index))
	}

	if cfg.Board.CacheTTL > 0 {
		s.Redis = database.NewRedis(cfg.Database.Redis)
		err = RetryWithBackoff(func() error {
			return s.Redis.Ping(ctx)
		}, opts.MaxRetries, opts.InitialDelay, zapLog, "Redis connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		repo = store.NewCachedRepository(repo, s.Redis.Client, config.GetDuration(cfg.Board.CacheTTL), log)
		zapLog.Info("Redis connected successfully")
	}

	s.Repository = repo
	return s, nil
}

// Ready pings every open store.
func (s *Stores) Ready(ctx context.Context) error {
	if err := s.Postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx); err != nil {
			return err
		}
	}
	if s.Search != nil {
		if err := s.Search.Ping(ctx); err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
	}
	return nil
}

func (s *Stores) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Postgres != nil {
		_ = s.Postgres.Close()
	}
}
