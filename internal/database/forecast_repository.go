package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
)

// PgxIface is the subset of pgxpool.Pool the repository needs; tests satisfy
// it with a pgxmock pool.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ForecastRun is one persisted forecast execution. Runs are an audit trail:
// the pipeline itself stays stateless and retrains from raw history on every
// invocation.
type ForecastRun struct {
	ID           uuid.UUID              `json:"id"`
	SKU          int64                  `json:"sku"`
	Model        string                 `json:"model"`
	HorizonDays  int                    `json:"horizon_days"`
	RMSE         float64                `json:"rmse"`
	MAPE         float64                `json:"mape"`
	OverlapCount int                    `json:"overlap_count"`
	Points       []models.ForecastEntry `json:"points"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ForecastRepository stores and retrieves forecast runs.
type ForecastRepository struct {
	db     PgxIface
	logger *logrus.Logger
}

// NewForecastRepository creates a repository over the given pool.
func NewForecastRepository(db PgxIface, logger *logrus.Logger) *ForecastRepository {
	return &ForecastRepository{db: db, logger: logger}
}

// SaveRun persists one product's forecast result and returns the run id.
func (r *ForecastRepository) SaveRun(ctx context.Context, result *models.ProductResult, horizonDays int) (uuid.UUID, error) {
	entry := result.ToBatchEntry(horizonDays)
	points, err := json.Marshal(entry.Previsoes)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode forecast points: %w", err)
	}

	id := uuid.New()
	_, err = r.db.Exec(ctx,
		`INSERT INTO forecast_runs (id, sku, model, horizon_days, rmse, mape, overlap_count, points, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		id, result.SKU, result.Model, horizonDays,
		result.Metrics.RMSE, result.Metrics.MAPE, result.Metrics.OverlapCount, points,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert forecast run: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"run_id":     id,
		"product_id": result.SKU,
		"model":      result.Model,
	}).Debug("Forecast run persisted")
	return id, nil
}

// RecentRuns returns the latest runs for one product, newest first.
func (r *ForecastRepository) RecentRuns(ctx context.Context, sku int64, limit int) ([]ForecastRun, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sku, model, horizon_days, rmse, mape, overlap_count, points, created_at
		 FROM forecast_runs WHERE sku = $1 ORDER BY created_at DESC LIMIT $2`,
		sku, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast runs: %w", err)
	}
	defer rows.Close()

	var runs []ForecastRun
	for rows.Next() {
		var (
			run    ForecastRun
			points []byte
		)
		if err := rows.Scan(&run.ID, &run.SKU, &run.Model, &run.HorizonDays,
			&run.RMSE, &run.MAPE, &run.OverlapCount, &points, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan forecast run: %w", err)
		}
		if err := json.Unmarshal(points, &run.Points); err != nil {
			return nil, fmt.Errorf("failed to decode forecast points: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run for one product, or pgx.ErrNoRows.
func (r *ForecastRepository) LatestRun(ctx context.Context, sku int64) (*ForecastRun, error) {
	var (
		run    ForecastRun
		points []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, sku, model, horizon_days, rmse, mape, overlap_count, points, created_at
		 FROM forecast_runs WHERE sku = $1 ORDER BY created_at DESC LIMIT 1`,
		sku,
	).Scan(&run.ID, &run.SKU, &run.Model, &run.HorizonDays,
		&run.RMSE, &run.MAPE, &run.OverlapCount, &points, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(points, &run.Points); err != nil {
		return nil, fmt.Errorf("failed to decode forecast points: %w", err)
	}
	return &run, nil
}
