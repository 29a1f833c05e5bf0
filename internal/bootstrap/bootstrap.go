package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/ride-progress/internal/config"
	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/core/ports"
	"github.com/kirillkom/ride-progress/internal/core/usecase"
	"github.com/kirillkom/ride-progress/internal/infrastructure/imagemeta"
	"github.com/kirillkom/ride-progress/internal/infrastructure/llm/gateway"
	"github.com/kirillkom/ride-progress/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ride-progress/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/ride-progress/internal/infrastructure/resilience"
	"github.com/kirillkom/ride-progress/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/ride-progress/internal/infrastructure/tts/elevenlabs"
)

// Options selects the optional collaborators of a process.
type Options struct {
	// Events connects to NATS so saved and deleted snapshots are announced.
	Events bool
	// Upstream receives retry and circuit breaker transitions of external calls.
	Upstream resilience.Observer
	// Imports receives per-item import outcomes.
	Imports usecase.ImportObserver
}

type App struct {
	Config config.Config

	DB      *sql.DB
	Repo    *sqlstore.SnapshotRepository
	Storage *localfs.Storage
	Signer  *localfs.URLSigner
	Bus     *nats.Bus

	Importer *usecase.ImportUseCase
	Batches  *usecase.BatchImporter
	Timeline *usecase.TimelineUseCase
	Compare  *usecase.CompareUseCase
	Trends   *usecase.TrendUseCase
	Archive  *usecase.ArchiveUseCase
	Reviews  *usecase.ReviewUseCase
	Seed     *usecase.SeedUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	dialect, err := sqlstore.DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	dsn, err := dataSource(cfg, dialect)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.OpenDB(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	repo := sqlstore.NewSnapshotRepository(db, dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	rules, err := config.LoadDeltaRules(cfg.DeltaRulesFile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	signer, err := localfs.NewURLSigner(localfs.SignerConfig{
		Secret:     cfg.SigningSecret,
		BaseURL:    cfg.PublicBaseURL,
		TTL:        cfg.SignedURLTTL,
		CacheBytes: cfg.SignedURLCacheMB * 1024 * 1024,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init url signer: %w", err)
	}

	executor := resilience.NewExecutor(ResilienceConfig(cfg)).WithObserver(opts.Upstream)

	var (
		bus    *nats.Bus
		events ports.EventPublisher
	)
	if opts.Events {
		bus, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			HandlerTimeout:     cfg.WorkerHandlerTimeout,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		events = bus
	}

	gatewayClient := gateway.NewWithExecutor(gateway.Config{
		BaseURL:           cfg.GatewayURL,
		APIKey:            cfg.GatewayAPIKey,
		VisionModel:       cfg.VisionModel,
		ReviewModel:       cfg.ReviewModel,
		ExtractionTimeout: cfg.ExtractionTimeout,
		ReviewTimeout:     cfg.ReviewTimeout,
	}, executor)
	speech := elevenlabs.New(elevenlabs.Config{
		BaseURL: cfg.ElevenLabsURL,
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
		Timeout: cfg.TTSTimeout,
	}, executor)

	importer := usecase.NewImportUseCase(repo, storage, imagemeta.New(), gateway.NewVisionExtractor(gatewayClient), events)
	timeline := usecase.NewTimelineUseCase(repo, signer, storage, events)

	app := &App{
		Config:  cfg,
		DB:      db,
		Repo:    repo,
		Storage: storage,
		Signer:  signer,
		Bus:     bus,

		Importer: importer,
		Batches:  usecase.NewBatchImporter(importer, cfg.ImportQueueSize, opts.Imports),
		Timeline: timeline,
		Compare:  usecase.NewCompareUseCase(timeline, rules),
		Trends:   usecase.NewTrendUseCase(timeline),
		Archive:  usecase.NewArchiveUseCase(repo, timeline),
		Reviews:  usecase.NewReviewUseCase(timeline, gateway.NewReviewWriter(gatewayClient), speech, storage),
		Seed:     usecase.NewSeedUseCase(repo, importer),

		closeFn: func() {
			if bus != nil {
				bus.Close()
			}
			_ = db.Close()
		},
	}

	if cfg.SeedDemoData {
		seeded, err := app.Seed.SeedIfEmpty(ctx, domain.NewSession("", ""))
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		if seeded {
			slog.Info("demo_snapshot_seeded")
		}
	}

	slog.Info("app_initialized",
		"database", dialect.Name,
		"events", opts.Events,
		"delta_rules", len(rules),
	)
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// ResilienceConfig maps the retry and breaker settings onto the executor policy.
func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
			Multiplier:     cfg.RetryMultiplier,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:         cfg.BreakerEnabled,
			MinRequests:     uint32(max(cfg.BreakerMinRequests, 0)),
			FailureRatio:    cfg.BreakerFailureRatio,
			OpenTimeout:     cfg.BreakerOpenTimeout,
			HalfOpenMaxCall: uint32(max(cfg.BreakerHalfOpenMaxReq, 0)),
		},
	}
}

func dataSource(cfg config.Config, dialect sqlstore.Dialect) (string, error) {
	if dialect.Name != sqlstore.SQLite.Name {
		return cfg.PostgresDSN, nil
	}
	path := cfg.SQLitePath
	if path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	return path, nil
}
