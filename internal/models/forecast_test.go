package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func point(day int, yhat float64) ForecastPoint {
	return ForecastPoint{
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Yhat:      yhat,
		YhatLower: yhat - 1,
		YhatUpper: yhat + 1,
		HasBounds: true,
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 8.24, Round2(7.0/0.85))
	assert.Equal(t, 8.24, Round2(8.235294117))
	assert.Equal(t, 10.0, Round2(9.999999999))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, -1.5, Round2(-1.499999999))
}

func TestToBatchEntryKeepsTrailingHorizon(t *testing.T) {
	result := &ProductResult{
		SKU:     7,
		Model:   "seasonal",
		Metrics: EvaluationMetrics{RMSE: 1.23456, MAPE: 9.87654, OverlapCount: 10},
		Forecast: []ForecastPoint{
			point(0, 4), point(1, 5), point(2, 6), point(3, 7), point(4, 8),
		},
	}

	entry := result.ToBatchEntry(2)
	assert.Equal(t, int64(7), entry.SKU)
	assert.Equal(t, 1.23, entry.RMSE)
	assert.Equal(t, 9.88, entry.MAPE)
	assert.Len(t, entry.Previsoes, 2)
	assert.Equal(t, "2025-06-04", entry.Previsoes[0].DS)
	assert.Equal(t, 7.0, entry.Previsoes[0].Yhat)
	assert.Equal(t, "2025-06-05", entry.Previsoes[1].DS)
}

func TestToBatchEntryShorterThanHorizon(t *testing.T) {
	result := &ProductResult{
		SKU:      1,
		Forecast: []ForecastPoint{point(0, 4), point(1, 5)},
	}

	entry := result.ToBatchEntry(7)
	assert.Len(t, entry.Previsoes, 2)
}

func TestToBatchEntryClampsNegativeEstimates(t *testing.T) {
	result := &ProductResult{
		SKU:      1,
		Forecast: []ForecastPoint{point(0, -2.5), point(1, 0.5)},
	}

	entry := result.ToBatchEntry(2)
	assert.Equal(t, 0.0, entry.Previsoes[0].Yhat)
	assert.Equal(t, 0.0, entry.Previsoes[0].YhatLower)
	assert.Equal(t, 0.5, entry.Previsoes[1].Yhat)
	// The lower bound of a near-zero estimate clamps independently.
	assert.Equal(t, 0.0, entry.Previsoes[1].YhatLower)
	assert.Equal(t, 1.5, entry.Previsoes[1].YhatUpper)
}

func TestDayIndexIgnoresClockAndZone(t *testing.T) {
	saoPaulo := time.FixedZone("America/Sao_Paulo", -3*3600)

	utcMidnight := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	utcEvening := time.Date(2025, 6, 8, 22, 15, 0, 0, time.UTC)
	localAfternoon := time.Date(2025, 6, 8, 18, 0, 0, 0, saoPaulo)

	assert.Equal(t, DayIndex(utcMidnight), DayIndex(utcEvening))
	assert.Equal(t, DayIndex(utcMidnight), DayIndex(localAfternoon))

	assert.Equal(t, DayIndex(utcMidnight)+1, DayIndex(utcMidnight.AddDate(0, 0, 1)))
}

func TestDayIndexRoundTrip(t *testing.T) {
	d := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, d, DayIndexDate(DayIndex(d)))
}
