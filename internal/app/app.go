// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/matchwatch/internal/api"
	"github.com/JakeFAU/matchwatch/internal/client"
	"github.com/JakeFAU/matchwatch/internal/config"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/poller"
	"github.com/JakeFAU/matchwatch/internal/progress"
	"github.com/JakeFAU/matchwatch/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/matchwatch/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/matchwatch/internal/publisher/pubsub"
	"github.com/JakeFAU/matchwatch/internal/registry"
	"github.com/JakeFAU/matchwatch/internal/storage/gcs"
	"github.com/JakeFAU/matchwatch/internal/storage/local"
	"github.com/JakeFAU/matchwatch/internal/storage/memory"
	"github.com/JakeFAU/matchwatch/internal/storage/postgres"
	"github.com/JakeFAU/matchwatch/internal/store"
)

// Options carries overrides that are not part of the file configuration.
type Options struct {
	// Registerer receives the lifecycle collectors. Defaults to the
	// Prometheus default registerer.
	Registerer prometheus.Registerer
	// GCPOptions are passed to the Pub/Sub and Cloud Storage clients.
	GCPOptions []option.ClientOption
}

// App holds the shared, long-lived services for one process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	client    *client.Client
	poller    *poller.Poller
	registry  *registry.Registry
	hub       *progress.Hub
	history   store.HistoryRepository
	publisher dashboard.Publisher
	reports   dashboard.BlobStore

	closers []func(context.Context) error
}

// New builds every service from cfg. It fails fast when a configured backing
// service cannot be initialized and releases anything already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeAll(context.Background())
		}
	}()

	a.client, err = client.New(client.Config{
		BaseURL:   cfg.Backend.BaseURL,
		APIKey:    cfg.Backend.APIKey,
		Timeout:   cfg.BackendTimeout(),
		RateLimit: cfg.Backend.RateLimit,
		Burst:     cfg.Backend.Burst,
		Logger:    logger.Named("client"),
	})
	if err != nil {
		return nil, fmt.Errorf("init backend client: %w", err)
	}

	if err = a.initHistory(ctx); err != nil {
		return nil, err
	}
	if err = a.initPublisher(ctx, opts.GCPOptions); err != nil {
		return nil, err
	}
	if err = a.initReports(ctx, opts.GCPOptions); err != nil {
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Events.BufferSize,
		MaxBatchEvents: cfg.Events.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Events.MaxBatchWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(cfg.Events.SinkTimeoutMs) * time.Millisecond,
		Logger:         logger.Named("events"),
	},
		sinks.NewLogSink(logger.Named("jobs")),
		promSink,
		sinks.NewStoreSink(a.history, logger.Named("history")),
		sinks.NewPublisherSink(a.publisher, cfg.PubSub.TopicName, logger.Named("notify")),
	)

	a.poller = poller.New(a.client, poller.Config{
		Interval: cfg.PollInterval(),
		Timeout:  cfg.TrackTimeout(),
		Logger:   logger.Named("poller"),
	})
	a.registry = registry.New(a.poller, registry.Config{
		Interval:    cfg.PollInterval(),
		GracePeriod: cfg.GracePeriod(),
		Logger:      logger.Named("registry"),
		Events:      a.hub,
	})

	logger.Info("application services initialized",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("reports", cfg.Reports.Provider),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.ProjectID != ""),
	)
	return a, nil
}

func (a *App) initHistory(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory job history")
		a.history = memory.NewHistoryStore()
		return nil
	}
	pg, err := postgres.NewHistoryStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("init job history: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		pg.Close()
		return nil
	})
	if a.cfg.DB.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate job history: %w", err)
		}
	}
	a.history = pg
	return nil
}

func (a *App) initPublisher(ctx context.Context, gcpOpts []option.ClientOption) error {
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("using in-memory job notifications")
		a.publisher = memorypublisher.New()
		return nil
	}
	psClient, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID, gcpOpts...)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(psClient, a.cfg.PubSub.TopicName)
	if err != nil {
		_ = psClient.Close()
		return fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		pub.Close()
		if err := psClient.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
		return nil
	})
	a.publisher = pub
	return nil
}

func (a *App) initReports(ctx context.Context, gcpOpts []option.ClientOption) error {
	switch a.cfg.Reports.Provider {
	case "gcs":
		gcsClient, err := gstorage.NewClient(ctx, gcpOpts...)
		if err != nil {
			return fmt.Errorf("init storage client: %w", err)
		}
		blobs, err := gcs.New(gcsClient, gcs.Config{Bucket: a.cfg.Reports.GCSBucket})
		if err != nil {
			_ = gcsClient.Close()
			return fmt.Errorf("init gcs report store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			if err := gcsClient.Close(); err != nil {
				return fmt.Errorf("close storage client: %w", err)
			}
			return nil
		})
		a.reports = blobs
	case "local":
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Reports.LocalDir})
		if err != nil {
			return fmt.Errorf("init local report store: %w", err)
		}
		a.reports = blobs
	case "memory", "":
		a.reports = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown reports provider %q", a.cfg.Reports.Provider)
	}
	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Client returns the backend client.
func (a *App) Client() *client.Client { return a.client }

// Poller returns the shared job poller.
func (a *App) Poller() *poller.Poller { return a.poller }

// Registry returns the live job registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// History returns the job history repository.
func (a *App) History() store.HistoryRepository { return a.history }

// Publisher returns the settled-job publisher.
func (a *App) Publisher() dashboard.Publisher { return a.publisher }

// Reports returns the report blob store.
func (a *App) Reports() dashboard.BlobStore { return a.reports }

// Server builds the HTTP API over the App's services.
func (a *App) Server() *api.Server {
	return api.NewServer(api.Deps{
		Registry:     a.registry,
		Launcher:     a.client,
		Data:         a.client,
		Stats:        a.client,
		Curator:      a.client,
		History:      a.history,
		Reports:      a.reports,
		ReportPrefix: a.cfg.Reports.Prefix,
	}, a.cfg, a.logger.Named("api"))
}

// Close stops tracking, flushes pending events, and releases backing
// services. It returns the joined errors of every step.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.logger.Info("shutting down application services")
	return a.closeAll(ctx)
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	if a.registry != nil {
		if err := a.registry.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		a.registry = nil
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		a.hub = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
