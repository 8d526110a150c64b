package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ForecastPoint is a single-day demand estimate with its prediction interval.
// Yhat may be negative internally; clamping happens only at the presentation
// boundary so accuracy metrics see the raw model output.
type ForecastPoint struct {
	Date      time.Time `json:"ds"`
	Yhat      float64   `json:"yhat"`
	YhatLower float64   `json:"yhat_lower"`
	YhatUpper float64   `json:"yhat_upper"`
	// HasBounds is false for strategies that produce no interval; in that
	// case the bounds mirror Yhat instead of fabricating an interval.
	HasBounds bool `json:"has_bounds"`
}

// EvaluationMetrics holds backtest accuracy figures for one product run.
// OverlapCount of zero is a valid degenerate result: the metrics are zero and
// callers must check the count before trusting them.
type EvaluationMetrics struct {
	RMSE         float64 `json:"rmse"`
	MAPE         float64 `json:"mape"`
	OverlapCount int     `json:"overlap_count"`
}

// ProductResult is the per-product output of a pipeline run.
type ProductResult struct {
	SKU      int64             `json:"sku"`
	Model    string            `json:"model"`
	Metrics  EvaluationMetrics `json:"metrics"`
	Forecast []ForecastPoint   `json:"forecast"`
}

// ForecastEntry is one day of the external batch payload.
type ForecastEntry struct {
	DS        string  `json:"ds"`
	Yhat      float64 `json:"yhat"`
	YhatLower float64 `json:"yhat_lower"`
	YhatUpper float64 `json:"yhat_upper"`
}

// BatchEntry is the external batch payload for one product. Field names
// follow the established wire contract of the upstream consumers.
type BatchEntry struct {
	SKU       int64           `json:"sku"`
	RMSE      float64         `json:"rmse"`
	MAPE      float64         `json:"mape"`
	Previsoes []ForecastEntry `json:"previsoes"`
}

// ToBatchEntry converts a ProductResult to its external representation,
// keeping only the trailing horizon days and clamping negative estimates to
// zero. This is the only place forecasts are clamped.
func (r *ProductResult) ToBatchEntry(horizonDays int) BatchEntry {
	points := r.Forecast
	if horizonDays > 0 && len(points) > horizonDays {
		points = points[len(points)-horizonDays:]
	}

	previsoes := make([]ForecastEntry, len(points))
	for i, p := range points {
		previsoes[i] = ForecastEntry{
			DS:        p.Date.Format("2006-01-02"),
			Yhat:      clampRound(p.Yhat),
			YhatLower: clampRound(p.YhatLower),
			YhatUpper: clampRound(p.YhatUpper),
		}
	}

	return BatchEntry{
		SKU:       r.SKU,
		RMSE:      Round2(r.Metrics.RMSE),
		MAPE:      Round2(r.Metrics.MAPE),
		Previsoes: previsoes,
	}
}

func clampRound(v float64) float64 {
	if v < 0 {
		return 0
	}
	return Round2(v)
}

// Round2 rounds to two decimal places using decimal arithmetic so quantities
// like 7.0/0.85 land on 8.24 instead of a float artifact.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
