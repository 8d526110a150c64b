package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/forecast"
	"github.com/dgirardi/thawcast-go/internal/logging"
	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/schedule"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// Options carries the per-run knobs of the pipeline.
type Options struct {
	HorizonDays int
	Workers     int
}

// Orchestrator runs the prepare → train → predict → evaluate chain. Each
// product's run is stateless and shares only the read-only holiday calendar,
// so batches fan out across a bounded worker pool without locking.
type Orchestrator struct {
	preparer  *timeseries.SeriesPreparer
	strategy  forecast.Strategy
	scheduler *schedule.Scheduler
	calendar  *timeseries.HolidayCalendar
	logger    *logrus.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	preparer *timeseries.SeriesPreparer,
	strategy forecast.Strategy,
	scheduler *schedule.Scheduler,
	calendar *timeseries.HolidayCalendar,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		preparer:  preparer,
		strategy:  strategy,
		scheduler: scheduler,
		calendar:  calendar,
		logger:    logger,
	}
}

// processProduct runs the full chain for one product. The context is checked
// between stages so a cancelled batch abandons in-flight products instead of
// finishing their fits.
func (o *Orchestrator) processProduct(ctx context.Context, records []models.SalesRecord, productID int64, horizonDays int) (*models.ProductResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	series, err := o.preparer.Prepare(records, productID)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := o.strategy.Train(series, o.calendar)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points, err := model.Predict(horizonDays)
	if err != nil {
		return nil, err
	}

	return &models.ProductResult{
		SKU:      productID,
		Model:    o.strategy.Name(),
		Metrics:  forecast.Evaluate(series, points),
		Forecast: points,
	}, nil
}

// skippable reports whether a per-product failure should drop the product
// from a batch rather than abort the run.
func skippable(err error) bool {
	var insufficient *utils.InsufficientDataError
	var training *utils.ModelTrainingError
	return errors.As(err, &insufficient) || errors.As(err, &training)
}

// RunBatch processes every product independently and returns one result per
// success, sorted by product id for reproducible output. Products that fail
// with insufficient history or a failed fit are logged and omitted; they
// never abort the batch. Cancelling the context abandons not-yet-started
// products but keeps completed results.
func (o *Orchestrator) RunBatch(ctx context.Context, records []models.SalesRecord, productIDs []int64, opts Options) []*models.ProductResult {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, workers)
	)
	results := make([]*models.ProductResult, 0, len(productIDs))
	started := time.Now()

	for _, productID := range productIDs {
		if ctx.Err() != nil {
			logging.WithProduct(o.logger, productID).Warn("Batch cancelled, skipping remaining products")
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(productID int64) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := o.processProduct(ctx, records, productID, opts.HorizonDays)
			if err != nil {
				switch {
				case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
					logging.WithProduct(o.logger, productID).Warn("Batch cancelled, abandoning product mid-run")
				case skippable(err):
					logging.WithProduct(o.logger, productID).WithField("reason", err.Error()).Info("Skipping product")
				default:
					logging.WithProduct(o.logger, productID).WithError(err).Error("Product processing failed")
				}
				return
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(productID)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].SKU < results[j].SKU })

	o.logger.WithFields(logrus.Fields{
		"requested": len(productIDs),
		"succeeded": len(results),
		"elapsed":   time.Since(started).String(),
	}).Info("Batch forecast completed")

	return results
}

// RunSingle runs the chain for one product and reconciles the forecast into a
// retrieval report for queryDate. Unlike RunBatch it surfaces every failure.
func (o *Orchestrator) RunSingle(ctx context.Context, records []models.SalesRecord, productID int64, queryDate time.Time, opts Options) (*models.RetrievalReport, error) {
	result, err := o.processProduct(ctx, records, productID, opts.HorizonDays)
	if err != nil {
		return nil, err
	}

	report := o.scheduler.Schedule(result.Forecast, productID, queryDate)
	return &report, nil
}

// RunForecast runs the chain for one product and returns the full result,
// surfacing failures. Used by callers that need the forecast itself rather
// than a retrieval report.
func (o *Orchestrator) RunForecast(ctx context.Context, records []models.SalesRecord, productID int64, opts Options) (*models.ProductResult, error) {
	return o.processProduct(ctx, records, productID, opts.HorizonDays)
}

// ProductIDs extracts the distinct product ids present in a record set, in
// ascending order.
func ProductIDs(records []models.SalesRecord) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, r := range records {
		if !seen[r.ProductID] {
			seen[r.ProductID] = true
			ids = append(ids, r.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
