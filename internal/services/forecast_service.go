package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dgirardi/thawcast-go/internal/cache"
	"github.com/dgirardi/thawcast-go/internal/config"
	"github.com/dgirardi/thawcast-go/internal/database"
	"github.com/dgirardi/thawcast-go/internal/ingest"
	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/pipeline"
	"github.com/dgirardi/thawcast-go/internal/telemetry"
)

// ForecastService is the application face of the pipeline: it parses sales
// exports, fans products out through the orchestrator, and handles the
// surrounding caching and persistence. Cache and repository are optional so
// the CLI can run the same service without infrastructure attached.
type ForecastService struct {
	orchestrator *pipeline.Orchestrator
	loader       *ingest.Loader
	cache        *cache.ForecastCache
	repo         *database.ForecastRepository
	cfg          config.ForecastConfig
	strategyName string
	logger       *logrus.Logger
}

// NewForecastService wires the service. cache and repo may be nil.
func NewForecastService(
	orchestrator *pipeline.Orchestrator,
	loader *ingest.Loader,
	forecastCache *cache.ForecastCache,
	repo *database.ForecastRepository,
	cfg config.ForecastConfig,
	strategyName string,
	logger *logrus.Logger,
) *ForecastService {
	return &ForecastService{
		orchestrator: orchestrator,
		loader:       loader,
		cache:        forecastCache,
		repo:         repo,
		cfg:          cfg,
		strategyName: strategyName,
		logger:       logger,
	}
}

// historyDigest fingerprints a sales export so cached forecasts are tied to
// the exact history they were trained on.
func historyDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func (s *ForecastService) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := s.cfg.BatchTimeoutDuration(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// cacheResult replaces any cached forecasts for the product with this run's
// entry. Invalidation first keeps stale entries from earlier uploads from
// outliving the product's newest history.
func (s *ForecastService) cacheResult(ctx context.Context, digest string, entry models.BatchEntry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, entry.SKU); err != nil {
		s.logger.WithError(err).WithField("product_id", entry.SKU).Warn("Forecast cache invalidation failed")
	}
	s.cache.Set(ctx, s.strategyName, s.cfg.HorizonDays, digest, entry)
}

func (s *ForecastService) persistRun(ctx context.Context, result *models.ProductResult) {
	if s.repo == nil {
		return
	}
	if _, err := s.repo.SaveRun(ctx, result, s.cfg.HorizonDays); err != nil {
		s.logger.WithError(err).WithField("product_id", result.SKU).Warn("Failed to persist forecast run")
	}
}

// BatchFromCSV runs the batch pipeline over every product in a sales export
// and returns the presentation-shaped entries, sorted by product id. Failed
// products are omitted; cache writes and run persistence are best-effort.
func (s *ForecastService) BatchFromCSV(ctx context.Context, r io.Reader) ([]models.BatchEntry, ingest.LoadStats, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "forecast.batch")
	defer span.End()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ingest.LoadStats{}, err
	}
	digest := historyDigest(data)

	records, stats, err := s.loader.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, stats, err
	}
	span.SetAttributes(attribute.Int("sales.rows", stats.TotalRows))

	ctx, cancel := s.batchContext(ctx)
	defer cancel()

	results := s.orchestrator.RunBatch(ctx, records, pipeline.ProductIDs(records), pipeline.Options{
		HorizonDays: s.cfg.HorizonDays,
		Workers:     s.cfg.Workers,
	})

	entries := make([]models.BatchEntry, 0, len(results))
	for _, result := range results {
		entry := result.ToBatchEntry(s.cfg.HorizonDays)
		entries = append(entries, entry)

		s.cacheResult(ctx, digest, entry)
		s.persistRun(ctx, result)
	}

	if s.cache != nil {
		cacheStats := s.cache.Stats()
		s.logger.WithFields(logrus.Fields{
			"hits":   cacheStats.Hits,
			"misses": cacheStats.Misses,
			"sets":   cacheStats.Sets,
		}).Debug("Forecast cache counters")
	}
	return entries, stats, nil
}

// Report runs the single-product pipeline against a sales export and
// reconciles the forecast into a retrieval report for queryDate. The wider
// report horizon lets the query date reach further into the future than the
// routine batch horizon allows.
func (s *ForecastService) Report(ctx context.Context, r io.Reader, sku int64, queryDate time.Time) (*models.RetrievalReport, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "forecast.report")
	span.SetAttributes(attribute.Int64("product.id", sku))
	defer span.End()

	records, _, err := s.loader.ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.RunSingle(ctx, records, sku, queryDate, pipeline.Options{
		HorizonDays: s.cfg.ReportHorizonDays,
	})
}

// ForecastOne runs the single-product pipeline and returns the
// presentation-shaped entry, consulting the cache first and filling it on a
// miss. The cache key includes the history digest, so a changed export for
// the same product always retrains.
func (s *ForecastService) ForecastOne(ctx context.Context, r io.Reader, sku int64) (models.BatchEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.BatchEntry{}, err
	}
	digest := historyDigest(data)

	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, sku, s.strategyName, s.cfg.HorizonDays, digest); ok {
			return entry, nil
		}
	}

	records, _, err := s.loader.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return models.BatchEntry{}, err
	}

	result, err := s.orchestrator.RunForecast(ctx, records, sku, pipeline.Options{
		HorizonDays: s.cfg.HorizonDays,
	})
	if err != nil {
		return models.BatchEntry{}, err
	}

	entry := result.ToBatchEntry(s.cfg.HorizonDays)
	s.cacheResult(ctx, digest, entry)
	s.persistRun(ctx, result)
	return entry, nil
}

// History returns recent persisted runs for a product. Requires a repository.
func (s *ForecastService) History(ctx context.Context, sku int64, limit int) ([]database.ForecastRun, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.RecentRuns(ctx, sku, limit)
}

// LatestRun returns the most recent persisted run for a product, or nil when
// none exists or no repository is attached.
func (s *ForecastService) LatestRun(ctx context.Context, sku int64) (*database.ForecastRun, error) {
	if s.repo == nil {
		return nil, nil
	}
	run, err := s.repo.LatestRun(ctx, sku)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}
