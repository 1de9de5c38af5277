package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/JakeFAU/worldclock/internal/api"
	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/config"
	"github.com/JakeFAU/worldclock/internal/events"
	"github.com/JakeFAU/worldclock/internal/events/sinks"
	"github.com/JakeFAU/worldclock/internal/id/uuid"
	"github.com/JakeFAU/worldclock/internal/logging"
	"github.com/JakeFAU/worldclock/internal/metrics"
	memorypublisher "github.com/JakeFAU/worldclock/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/worldclock/internal/publisher/pubsub"
	"github.com/JakeFAU/worldclock/internal/refresh"
	"github.com/JakeFAU/worldclock/internal/render"
	"github.com/JakeFAU/worldclock/internal/state"
	memorystore "github.com/JakeFAU/worldclock/internal/state/memory"
	postgresstore "github.com/JakeFAU/worldclock/internal/state/postgres"
	"github.com/JakeFAU/worldclock/internal/tz"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("worldclock exited with error", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	metrics.Init()
	clock := quartz.NewReal()

	tzClock := tz.New(tz.NewSystemProvider(),
		tz.WithLogger(logger.Named("tz")),
		tz.WithFallbackHook(func(zone string, _ error) { metrics.ObserveTZFallback(zone) }),
	)

	cities, err := cfg.CityList()
	if err != nil {
		return fmt.Errorf("city list: %w", err)
	}
	catalog, err := city.NewCatalog(cities)
	if err != nil {
		return fmt.Errorf("city catalog: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	ctrl, err := state.NewController(state.Config{
		Cities:    catalog,
		Default:   state.ClockState{Language: cfg.DefaultLanguage(), CityID: cfg.Display.DefaultCity},
		Store:     store,
		Publisher: publisher,
		Topic:     cfg.PubSub.TopicName,
		Clock:     clock,
		Logger:    logger.Named("state"),
	})
	if err != nil {
		return fmt.Errorf("state controller: %w", err)
	}
	if err := ctrl.Restore(ctx); err != nil {
		logger.Warn("restore clock state failed; starting from defaults", zap.Error(err))
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("prometheus sink: %w", err)
	}
	broadcaster := sinks.NewBroadcaster(sinks.BroadcasterConfig{
		Buffer:  cfg.Stream.Buffer,
		IDs:     uuid.NewGenerator(),
		OnCount: metrics.SetStreamSubscribers,
		Logger:  logger.Named("stream"),
	})
	hub := events.NewHub(events.Config{
		Clock:  clock,
		Logger: logger.Named("events"),
	}, sinks.NewLogSink(logger.Named("events")), promSink, broadcaster)

	mode, err := refresh.ParseMode(cfg.Refresh.Mode)
	if err != nil {
		return fmt.Errorf("refresh mode: %w", err)
	}
	loop, err := refresh.New(refresh.Config{
		Clock:         clock,
		Renderer:      render.NewRenderer(tzClock, catalog),
		Source:        ctrl,
		Emitter:       hub,
		FrameInterval: cfg.FrameInterval(),
		Logger:        logger.Named("refresh"),
	})
	if err != nil {
		return fmt.Errorf("refresh loop: %w", err)
	}
	if err := loop.Start(ctx, mode); err != nil {
		return fmt.Errorf("start refresh loop: %w", err)
	}

	apiServer := api.NewServer(api.Dependencies{
		Controller: ctrl,
		Catalog:    catalog,
		TZ:         tzClock,
		Stream:     broadcaster,
		IDs:        uuid.NewGenerator(),
		Clock:      clock,
		Ready: func(context.Context) error {
			if _, ok := loop.Latest(); !ok {
				return errors.New("no frame rendered yet")
			}
			return nil
		},
	}, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	loop.Stop()
	// Closing the hub closes the broadcaster, which ends open streams before the server drains.
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("event hub close error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Int64("events_dropped", hub.Dropped()))
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (state.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		store, err := postgresstore.NewStore(ctx, postgresstore.Config{
			DSN:      cfg.Store.DSN,
			Table:    cfg.Store.Table,
			MaxConns: cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info("using postgres state store", zap.String("table", cfg.Store.Table))
		return store, store.Close, nil
	default:
		logger.Info("using in-memory state store")
		return memorystore.NewStore(), func() {}, nil
	}
}

// retainedNotifications bounds the in-process publisher used without a topic.
const retainedNotifications = 64

func openPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (state.Publisher, func(), error) {
	if cfg.PubSub.TopicName == "" {
		logger.Info("no pubsub topic configured; keeping recent state changes in memory",
			zap.Int("retained", retainedNotifications))
		return memorypublisher.New(memorypublisher.WithLimit(retainedNotifications)), func() {}, nil
	}
	pub, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{
		ProjectID: cfg.PubSub.ProjectID,
		TopicName: cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub publisher: %w", err)
	}
	logger.Info("publishing state changes to pubsub",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}, nil
}
