package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/activitylog"
	"github.com/Ramsey-B/fern/internal/repositories/candidate"
	"github.com/Ramsey-B/fern/internal/repositories/catalog"
	"github.com/Ramsey-B/fern/internal/repositories/progress"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/review"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// app holds what every command needs: configuration, logging, the pool and
// the repositories built on it.
type app struct {
	cfg    *config.Config
	zap    *zap.Logger
	logger ectologger.Logger
	db     database.DB

	candidates *candidate.Repository
	catalog    *catalog.Repository
	progress   *progress.Repository
	activity   *activitylog.Repository
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil).WithField("service", cfg.AppName)

	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		_ = zapLogger.Sync()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		zap:        zapLogger,
		logger:     logger,
		db:         db,
		candidates: candidate.NewRepository(db, logger),
		catalog:    catalog.NewRepository(db, logger),
		progress:   progress.NewRepository(db, logger),
		activity:   activitylog.NewRepository(db, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
	_ = a.zap.Sync()
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if err := zapCfg.Level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	return zapCfg.Build()
}

func (a *app) migrate() error {
	instance, ok := a.db.(*database.DatabaseInstance)
	if !ok {
		return fmt.Errorf("migrations need a postgres connection, got %T", a.db)
	}

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             a.cfg.DatabaseMigrationVersion,
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.MigratePostgres(a.cfg.DatabaseName, instance.DB.DB)
}

func (a *app) detector() (*detection.Detector, error) {
	sim, err := similarity.New(a.cfg.DetectSimilarity)
	if err != nil {
		return nil, err
	}

	cfg := detection.Config{
		HashConfidence:      a.cfg.DetectHashConfidence,
		URLConfidence:       a.cfg.DetectURLConfidence,
		SameSourceThreshold: a.cfg.DetectSameSourceThreshold,
		SameSourceScale:     a.cfg.DetectSameSourceScale,
		AnySourceThreshold:  a.cfg.DetectAnySourceThreshold,
		AnySourceScale:      a.cfg.DetectAnySourceScale,
		TitlePrefixLength:   a.cfg.DetectTitlePrefixLength,
		TitleCandidateLimit: a.cfg.DetectTitleCandidateLimit,
		WarnConfidence:      a.cfg.DetectWarnConfidence,
	}
	return detection.NewDetector(cfg, a.candidates, a.catalog, a.activity, sim, a.logger), nil
}

func (a *app) reviewConfig() review.Config {
	return review.Config{
		MergeConfidence:     a.cfg.ReviewMergeConfidence,
		ActiveLearnerWindow: a.cfg.ReviewActiveLearnerWindow,
		PendingLimit:        a.cfg.ReviewPendingLimit,
	}
}
