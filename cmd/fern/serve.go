package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/review"
	"github.com/Ramsey-B/fern/pkg/routes/candidate"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review API and the scraped course consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipMigrations {
				if err := a.migrate(); err != nil {
					return err
				}
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "start without applying database migrations")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	checker := health.NewChecker(version)

	var (
		redisClient     *redis.Client
		tracingShutdown func(context.Context) error
	)
	deps := startup.NewStartup(a.logger, cfg.StartupMaxAttempts)
	deps.AddDependency(startup.Func{
		Name: "tracing",
		OnStart: func(ctx context.Context) error {
			otlp := exporters.OTLPConfig{Protocol: cfg.OTELProtocol, Insecure: cfg.OTELInsecure}
			if cfg.OTELEnabled {
				otlp.Endpoint = cfg.OTELEndpoint
			}
			shutdown, err := tracing.Init(ctx, cfg.AppName, otlp, a.logger)
			if err != nil {
				return err
			}
			tracingShutdown = shutdown
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if tracingShutdown == nil {
				return nil
			}
			return tracingShutdown(ctx)
		},
	})
	deps.AddDependency(startup.Func{
		Name:    "database",
		OnStart: a.db.PingContext,
	})
	deps.AddDependency(startup.Func{
		Name: "redis",
		OnStart: func(context.Context) error {
			a.logger.WithField("addr", cfg.RedisAddr()).Info("Connecting to redis")
			client, err := redis.NewClient(redis.ConfigFrom(*cfg), a.logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		OnStop: func(context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Close()
		},
	})

	if err := deps.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dependencies: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := deps.Stop(stopCtx); err != nil {
			a.logger.WithError(err).Warn("Failed to stop dependencies cleanly")
		}
	}()

	checker.AddCheck("database", a.db.PingContext)
	checker.AddCheck("redis", redisClient.Ping)

	detector, err := a.detector()
	if err != nil {
		return err
	}

	producer := kafka.NewProducer(kafka.ProducerConfigFrom(*cfg), a.logger)
	defer func() {
		if err := producer.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close kafka producer")
		}
	}()
	emitter := events.NewEmitter(producer, a.logger)

	reviewCfg := a.reviewConfig()
	eligibility := review.NewEligibilityPolicy(reviewCfg, a.progress, a.logger)
	queue := review.NewQueue(reviewCfg, a.candidates, a.logger)
	transitioner := review.NewTransitioner(reviewCfg, a.candidates, a.catalog, eligibility, a.db, emitter, a.logger)

	guard := redis.NewGuard(redisClient, "", cfg.IngestGuardTTL)
	ingestSvc := ingest.NewService(a.candidates, detector, guard, a.logger)

	if cfg.KafkaConsumerEnabled {
		consumer := kafka.NewConsumer(*cfg, a.logger, ingestSvc.HandleMessage)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				a.logger.WithError(err).Warn("Failed to stop kafka consumer")
			}
		}()
		checker.AddCheck("kafka", func(context.Context) error {
			if !consumer.Health() {
				return errors.New("kafka consumer is not running")
			}
			return nil
		})
	}

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	registrations := []error{
		ectoinject.RegisterInstance[ectologger.Logger](container, a.logger),
		ectoinject.RegisterInstance(container, checker),
		ectoinject.RegisterInstance[candidate.Queue](container, queue),
		ectoinject.RegisterInstance[candidate.Transitioner](container, transitioner),
		ectoinject.RegisterInstance[candidate.Submitter](container, ingestSvc),
		ectoinject.RegisterInstance[candidate.Detector](container, detector),
		ectoinject.RegisterInstance[detection.PendingStore](container, a.candidates),
		ectoinject.RegisterInstance(container, candidate.Settings{RescanLimit: reviewCfg.PendingLimit}),
	}
	if err := errors.Join(registrations...); err != nil {
		return fmt.Errorf("failed to register dependencies: %w", err)
	}

	e, err := a.newEcho(ctx)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        e,
		ReadTimeout:    time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Infof("%s listening on %s", cfg.AppName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (a *app) newEcho(ctx context.Context) (*echo.Echo, error) {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	health.Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	group := e.Group("/api/v1/candidates")
	if cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to create oidc verifier: %w", err)
		}
		group.Use(middleware.Authentication(a.logger, verifier, cfg.AuthRole))
	}
	candidate.Register(group)

	return e, nil
}
