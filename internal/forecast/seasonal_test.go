package forecast

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// weeklySeries builds days of a repeating 7-day demand pattern.
func weeklySeries(start string, weeks int, pattern [7]float64) *models.DailySeries {
	values := make([]float64, 0, weeks*7)
	for w := 0; w < weeks; w++ {
		values = append(values, pattern[:]...)
	}
	return seriesFrom(start, values...)
}

func TestSeasonalRegressionLearnsWeeklyPattern(t *testing.T) {
	pattern := [7]float64{4, 6, 5, 7, 9, 14, 12}
	series := weeklySeries("2025-03-03", 6, pattern) // starts on a Monday

	strategy := NewSeasonalRegression(testLogger())
	model, err := strategy.Train(series, timeseries.DefaultHolidayCalendar(1))
	require.NoError(t, err)

	points, err := model.Predict(7)
	require.NoError(t, err)
	require.Len(t, points, series.Len()+7)

	// A purely periodic series with no trend must be reproduced almost
	// exactly, both in sample and for the following week.
	for i, p := range points {
		assert.InDelta(t, pattern[i%7], p.Yhat, 1e-6, "day %d", i)
	}
}

func TestSeasonalRegressionDatesAreContiguous(t *testing.T) {
	series := weeklySeries("2025-03-03", 4, [7]float64{4, 6, 5, 7, 9, 14, 12})

	model, err := NewSeasonalRegression(testLogger()).Train(series, nil)
	require.NoError(t, err)

	points, err := model.Predict(5)
	require.NoError(t, err)

	assert.True(t, points[0].Date.Equal(series.Start()))
	for i := 1; i < len(points); i++ {
		assert.Equal(t, int64(1), models.DayIndex(points[i].Date)-models.DayIndex(points[i-1].Date))
	}
}

func TestSeasonalRegressionBoundsBracketEstimate(t *testing.T) {
	series := weeklySeries("2025-03-03", 5, [7]float64{4, 6, 5, 7, 9, 14, 12})

	model, err := NewSeasonalRegression(testLogger()).Train(series, nil)
	require.NoError(t, err)

	points, err := model.Predict(7)
	require.NoError(t, err)
	for _, p := range points {
		assert.True(t, p.HasBounds)
		assert.LessOrEqual(t, p.YhatLower, p.Yhat)
		assert.GreaterOrEqual(t, p.YhatUpper, p.Yhat)
	}
}

func TestSeasonalRegressionRejectsConstantSeries(t *testing.T) {
	series := seriesFrom("2025-03-03", 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5)

	_, err := NewSeasonalRegression(testLogger()).Train(series, nil)
	require.Error(t, err)

	var trainingErr *utils.ModelTrainingError
	assert.ErrorAs(t, err, &trainingErr)
	assert.Equal(t, StrategySeasonal, trainingErr.Strategy)
}

func TestSeasonalRegressionHolidayLift(t *testing.T) {
	pattern := [7]float64{5, 5, 5, 5, 5, 5, 5}
	series := weeklySeries("2025-04-28", 4, pattern) // spans 2025-05-01

	// Inject a holiday spike so the series has variance and the holiday
	// coefficient has signal to fit.
	calendar := timeseries.NewHolidayCalendar([]timeseries.HolidayEffect{
		{Date: day("2025-05-01"), WindowDays: 1},
	})
	for i := range series.Points {
		if calendar.IsAffected(series.Points[i].Date) {
			series.Points[i].Value = 9
		}
	}

	model, err := NewSeasonalRegression(testLogger()).Train(series, calendar)
	require.NoError(t, err)

	points, err := model.Predict(0)
	require.NoError(t, err)
	for i, p := range points {
		want := 5.0
		if calendar.IsAffected(p.Date) {
			want = 9.0
		}
		assert.InDelta(t, want, p.Yhat, 1e-6, "day %d", i)
	}
}
