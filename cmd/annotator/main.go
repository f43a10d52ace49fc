// cmd/annotator/main.go
//
// @title Job Annotation Service
// @version 1.0
// @description Map annotation edit session and reference annotations API for field-service jobs.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "job-annotation-service/docs"
	"job-annotation-service/internal/config"
	"job-annotation-service/internal/logger"
	"job-annotation-service/internal/metrics"
	"job-annotation-service/internal/notify"
	"job-annotation-service/internal/render/scene"
	"job-annotation-service/internal/repository/annotationapi"
	"job-annotation-service/internal/repository/postgresql"
	"job-annotation-service/internal/service"
	"job-annotation-service/internal/telemetry"
	httptransport "job-annotation-service/internal/transport/http"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath, addr string

	root := &cobra.Command{
		Use:           "annotator",
		Short:         "Job map annotation service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (optional)")
	root.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the map edit session service",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(configPath, addr, config.Config.ValidateServe, serve)
			},
		},
		&cobra.Command{
			Use:   "api",
			Short: "Run the reference annotations API on Postgres",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(configPath, addr, config.Config.ValidateAPI, api)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

// app is what a subcommand serves. run, when set, works alongside the HTTP
// server until shutdown; close runs after the server has stopped.
type app struct {
	handler http.Handler
	run     func(context.Context) error
	close   func()
}

type builder func(ctx context.Context, cfg config.Config, reg *prometheus.Registry) (app, error)

// run loads the config, sets up telemetry and logging, and serves until SIGINT/SIGTERM.
func run(configPath, addr string, validate func(config.Config) error, build builder) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	if cfg.OTel.ServiceVersion == "dev" {
		cfg.OTel.ServiceVersion = version
	}
	if err := validate(cfg); err != nil {
		return err
	}

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	logger.Setup(cfg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	g, gctx := errgroup.WithContext(ctx)

	a, err := build(gctx, cfg, reg)
	if err != nil {
		return err
	}
	if a.close != nil {
		defer a.close()
	}
	if a.run != nil {
		g.Go(func() error { return a.run(gctx) })
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		slog.Info("http server started", "addr", cfg.HTTPAddr, "env", cfg.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("stopped")
	return err
}

func serve(ctx context.Context, cfg config.Config, reg *prometheus.Registry) (app, error) {
	col := metrics.NewCollector(reg)

	feed := notify.NewMemoryFeed(cfg.Redis.NotificationsMax)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return app{}, fmt.Errorf("redis: %w", err)
		}
		feed = notify.NewRedisFeed(rdb, cfg.Redis.NotificationsKey, cfg.Redis.NotificationsMax)
	} else {
		slog.Warn("REDIS_ADDR not set, notifications are kept in memory")
	}
	disp := notify.NewDispatcher(feed, col, 2, 256)

	sc := scene.New()
	col.TrackLiveOverlays(sc.Live)

	client := annotationapi.NewClient(cfg.AnnotationAPI.URL,
		annotationapi.WithToken(cfg.AnnotationAPI.Token),
		annotationapi.WithTimeout(cfg.AnnotationAPI.Timeout),
		annotationapi.WithObserver(col),
	)
	ctrl := service.NewController(service.Deps{
		API:      client,
		Provider: sc,
		Notifier: disp,
		Metrics:  col,
	})

	slog.Info("session service configured",
		"annotation_api", cfg.AnnotationAPI.URL,
		"redis_addr", cfg.Redis.Addr,
		"notifications_key", cfg.Redis.NotificationsKey,
	)

	a := app{
		handler: httptransport.Routes(httptransport.NewHandler(ctrl, sc, disp.Feed()), metrics.Handler(reg)),
		run: func(ctx context.Context) error {
			disp.Run(ctx)
			return nil
		},
	}
	if rdb != nil {
		a.close = func() { _ = rdb.Close() }
	}
	return a, nil
}

func api(ctx context.Context, cfg config.Config, reg *prometheus.Registry) (app, error) {
	pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return app{}, fmt.Errorf("pg: %w", err)
	}
	repo := postgresql.NewAnnotationRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return app{}, fmt.Errorf("pg schema: %w", err)
	}
	if cfg.AnnotationAPI.Token == "" {
		slog.Warn("ANNOTATION_API_TOKEN not set, annotation routes accept any caller")
	}
	slog.Info("annotations api configured", "postgres_dsn", config.RedactDSN(cfg.Postgres.DSN))

	return app{
		handler: httptransport.APIRoutes(
			httptransport.NewAPIHandler(service.NewAnnotationService(repo)),
			cfg.AnnotationAPI.Token,
			metrics.Handler(reg),
		),
		close: pool.Close,
	}, nil
}
