package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgirardi/thawcast-go/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleResult() *models.ProductResult {
	return &models.ProductResult{
		SKU:   7,
		Model: "seasonal",
		Metrics: models.EvaluationMetrics{
			RMSE:         1.2,
			MAPE:         9.8,
			OverlapCount: 28,
		},
		Forecast: []models.ForecastPoint{
			{Date: time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), Yhat: 6.0, YhatLower: 4.5, YhatUpper: 7.5, HasBounds: true},
			{Date: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), Yhat: 7.0, YhatLower: 5.5, YhatUpper: 8.5, HasBounds: true},
		},
	}
}

func TestSaveRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO forecast_runs").
		WithArgs(pgxmock.AnyArg(), int64(7), "seasonal", 7, 1.2, 9.8, 28, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewForecastRepository(mock, quietLogger())
	id, err := repo.SaveRun(context.Background(), sampleResult(), 7)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	points, err := json.Marshal([]models.ForecastEntry{
		{DS: "2025-06-08", Yhat: 6.0, YhatLower: 4.5, YhatUpper: 7.5},
	})
	require.NoError(t, err)

	runID := uuid.New()
	created := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, sku, model").
		WithArgs(int64(7), 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "sku", "model", "horizon_days", "rmse", "mape", "overlap_count", "points", "created_at",
		}).AddRow(runID, int64(7), "seasonal", 7, 1.2, 9.8, 28, points, created))

	repo := NewForecastRepository(mock, quietLogger())
	runs, err := repo.RecentRuns(context.Background(), 7, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, int64(7), runs[0].SKU)
	assert.Equal(t, "seasonal", runs[0].Model)
	require.Len(t, runs[0].Points, 1)
	assert.Equal(t, "2025-06-08", runs[0].Points[0].DS)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	points, err := json.Marshal([]models.ForecastEntry{{DS: "2025-06-08", Yhat: 6.0}})
	require.NoError(t, err)

	runID := uuid.New()
	created := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, sku, model").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "sku", "model", "horizon_days", "rmse", "mape", "overlap_count", "points", "created_at",
		}).AddRow(runID, int64(7), "seasonal", 7, 1.2, 9.8, 28, points, created))

	repo := NewForecastRepository(mock, quietLogger())
	run, err := repo.LatestRun(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
