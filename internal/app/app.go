// Package app wires configuration into the storage backend and the activity
// service shared by the HTTP service and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github-activity-resolver/internal/activity"
	"github-activity-resolver/internal/api"
	"github-activity-resolver/internal/config"
	"github-activity-resolver/internal/database"
	"github-activity-resolver/internal/github"
	"github-activity-resolver/internal/mongostore"
)

const closeTimeout = 10 * time.Second

// Storage is what both backends provide to the service and the API.
type Storage interface {
	activity.Store
	api.Storage
}

// OpenStorage connects the configured backend, prepares its schema and returns
// it together with a cleanup function.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Storage, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		closeStore := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				logger.Error("Failed to disconnect from mongodb", "error", err)
			}
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("failed to create mongodb indexes: %w", err)
		}
		logger.Info("MongoDB indexes ensured")
		return store, closeStore, nil

	default:
		dbpool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Database connection established")

		if err := RunMigrations(cfg.MigrationsURL, cfg.DBURL); err != nil {
			dbpool.Close()
			return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		logger.Info("Database migrations applied successfully")
		return database.New(dbpool), dbpool.Close, nil
	}
}

// RunMigrations applies every pending migration from sourceURL.
func RunMigrations(sourceURL, dbURL string) error {
	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// NewService builds the GitHub client and the activity service from cfg.
func NewService(cfg *config.Config, store activity.Store, logger *slog.Logger) (*activity.Service, error) {
	ghClient, err := github.NewClient(github.Options{
		Token:           cfg.GithubToken,
		GraphQLURL:      cfg.GithubGraphQLURL,
		APIURL:          cfg.GithubAPIURL,
		Timeout:         cfg.GithubRequestTimeout,
		MaxRetries:      cfg.GithubMaxRetries,
		MaxConcurrency:  cfg.GithubMaxConcurrency,
		MaxReposPerUser: cfg.MaxReposPerUser,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}

	return activity.NewService(ghClient, store, activity.Options{
		TokenConfigured: cfg.GithubToken != "",
		MinForkCount:    cfg.MinForkCount,
		MonthsToAnalyze: cfg.MonthsToAnalyze,
		Limits: github.ActivityLimits{
			Commits:      cfg.MaxCommitsPerRepo,
			PullRequests: cfg.MaxPRsPerRepo,
			Issues:       cfg.MaxIssuesPerRepo,
		},
		CacheTTL:        cfg.CacheTTL,
		UserConcurrency: cfg.UserConcurrency,
		RepoConcurrency: cfg.RepoConcurrency,
	}, logger), nil
}

// NewLogger returns the JSON logger used by both binaries. The level starts at
// info; SetLogLevel adjusts it once configuration is loaded.
func NewLogger(w io.Writer) (*slog.Logger, *slog.LevelVar) {
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler), logLevel
}

func SetLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
