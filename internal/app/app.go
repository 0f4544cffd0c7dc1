package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"AppealScanner/internal/config"
	"AppealScanner/internal/domain"
	"AppealScanner/internal/infrastructure/blob"
	"AppealScanner/internal/infrastructure/fetch"
	"AppealScanner/internal/infrastructure/gemini"
	"AppealScanner/internal/infrastructure/scheduler"
	"AppealScanner/internal/infrastructure/scrapers"
	"AppealScanner/internal/infrastructure/storage"
	"AppealScanner/internal/logging"
	"AppealScanner/internal/scraper"
	"AppealScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
}

// New connects storage, migrates and seeds the schema, and assembles the
// fetch pipeline.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Connect(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	sourceRepo := storage.NewSourceRepository(db)
	if err := seedSources(ctx, sourceRepo, cfg.Sources); err != nil {
		db.Close()
		return nil, err
	}

	client := fetch.NewClient(cfg.HTTP.Timeout())

	registry := scraper.NewRegistry()
	registry.Register("berkeley", func(sc scraper.Config) scraper.Scraper {
		return scrapers.NewBerkeley(sc, client, baseLogger.With("component", "scraper.berkeley"))
	})
	registry.Register("san_francisco", func(sc scraper.Config) scraper.Scraper {
		return scrapers.NewSanFrancisco(sc, client, baseLogger.With("component", "scraper.sf"))
	})

	blobs, err := blob.NewFileStore(cfg.Blob.Dir)
	if err != nil {
		db.Close()
		return nil, err
	}

	extractor := gemini.NewExtractor(
		gemini.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model),
		baseLogger.With("component", "extractor"),
	)

	meetingRepo := storage.NewMeetingRepository(db)
	appealRepo := storage.NewAppealRepository(db)

	reconciler := usecase.NewReconciler(
		storage.NewAgendaItemRepository(db),
		appealRepo,
		storage.NewHearingRepository(db),
		baseLogger.With("component", "reconciler"),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Registry:   registry,
		Fetch:      client,
		Sources:    sourceRepo,
		Meetings:   meetingRepo,
		Appeals:    appealRepo,
		Blobs:      blobs,
		Extractor:  extractor,
		Reconciler: reconciler,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline),
	}, nil
}

// RunOnce executes a single fetch cycle for every active source.
func (a *Application) RunOnce(ctx context.Context) error {
	return a.pipeline.RunAll(ctx)
}

// Start begins recurring fetch cycles and blocks until the context ends.
func (a *Application) Start(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// Close releases the database pool.
func (a *Application) Close() error {
	return a.db.Close()
}

// seedSources upserts config-declared cities and sources so fetch cycles have
// rows to work from on a fresh database.
func seedSources(ctx context.Context, repo *storage.SourceRepository, sources []config.SourceConfig) error {
	for _, sc := range sources {
		city, err := repo.EnsureCity(ctx, domain.City{
			Name:      sc.City,
			Slug:      sc.Slug,
			County:    sc.County,
			StateCode: sc.StateCode,
		})
		if err != nil {
			return fmt.Errorf("seed city %s: %w", sc.Slug, err)
		}

		if _, err := repo.EnsureSource(ctx, domain.Source{
			CityID:         city.ID,
			City:           city,
			Fetcher:        sc.Fetcher,
			BaseURL:        sc.BaseURL,
			ListingPath:    sc.ListingPath,
			MaxPages:       sc.MaxPages,
			LookbackMonths: sc.LookbackMonths,
		}); err != nil {
			return fmt.Errorf("seed source %s: %w", sc.Slug, err)
		}
	}
	return nil
}
