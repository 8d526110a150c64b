package forecast

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// SeasonalRegression fits an additive model: linear trend, weekly
// seasonality (day-of-week terms), and an additive holiday regressor covering
// each holiday date plus its trailing window. Yearly seasonality is
// deliberately absent; the histories this runs on rarely span a full year.
type SeasonalRegression struct {
	logger *logrus.Logger
}

// NewSeasonalRegression creates the seasonal regression strategy.
func NewSeasonalRegression(logger *logrus.Logger) *SeasonalRegression {
	return &SeasonalRegression{logger: logger}
}

// Name returns the configuration name of the strategy.
func (sr *SeasonalRegression) Name() string {
	return StrategySeasonal
}

// seasonalModel is a fitted seasonal regression.
type seasonalModel struct {
	coefs      []float64
	startIndex int64
	trainDays  int
	sigma      float64
	calendar   *timeseries.HolidayCalendar
	useHoliday bool
}

// Feature layout: intercept, trend, six day-of-week dummies (Sunday is the
// baseline), then the holiday indicator when the training span contains at
// least one affected day. An all-zero holiday column would make the normal
// equations singular, so it is dropped instead of fitted.
const seasonalBaseFeatures = 8

func seasonalRow(dayIndex int64, offset int, calendar *timeseries.HolidayCalendar, useHoliday bool) []float64 {
	width := seasonalBaseFeatures
	if useHoliday {
		width++
	}
	row := make([]float64, width)
	row[0] = 1
	row[1] = float64(offset)

	dow := int(models.DayIndexDate(dayIndex).Weekday())
	if dow > 0 {
		row[1+dow] = 1
	}

	if useHoliday && calendar.IsAffected(models.DayIndexDate(dayIndex)) {
		row[seasonalBaseFeatures] = 1
	}
	return row
}

// Train fits the model by ordinary least squares on the normal equations.
// It fails with ModelTrainingError when the series has no variance or the
// system is singular.
func (sr *SeasonalRegression) Train(series *models.DailySeries, calendar *timeseries.HolidayCalendar) (Model, error) {
	values := series.Values()
	n := len(values)

	if !hasVariance(values) {
		return nil, utils.NewModelTrainingErrorf(sr.Name(), "series for product %d has no variance", series.ProductID)
	}

	startIndex := models.DayIndex(series.Start())

	useHoliday := false
	if calendar != nil {
		for t := 0; t < n; t++ {
			if calendar.IsAffected(models.DayIndexDate(startIndex + int64(t))) {
				useHoliday = true
				break
			}
		}
	}
	features := seasonalBaseFeatures
	if useHoliday {
		features++
	}

	// Accumulate X'X and X'y directly; the design matrix never materializes.
	xtx := make([][]float64, features)
	for i := range xtx {
		xtx[i] = make([]float64, features)
	}
	xty := make([]float64, features)

	for t := 0; t < n; t++ {
		row := seasonalRow(startIndex+int64(t), t, calendar, useHoliday)
		for i := 0; i < features; i++ {
			for j := 0; j < features; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * values[t]
		}
	}

	coefs, ok := solveLinearSystem(xtx, xty)
	if !ok {
		return nil, utils.NewModelTrainingErrorf(sr.Name(), "normal equations are singular for product %d", series.ProductID)
	}

	// Residual spread drives the 95% prediction interval.
	var sse float64
	for t := 0; t < n; t++ {
		row := seasonalRow(startIndex+int64(t), t, calendar, useHoliday)
		sse += square(values[t] - dot(row, coefs))
	}
	dof := n - features
	if dof < 1 {
		dof = 1
	}
	sigma := math.Sqrt(sse / float64(dof))

	sr.logger.WithFields(logrus.Fields{
		"product_id": series.ProductID,
		"points":     n,
		"sigma":      sigma,
	}).Debug("Seasonal regression fitted")

	return &seasonalModel{
		coefs:      coefs,
		startIndex: startIndex,
		trainDays:  n,
		sigma:      sigma,
		calendar:   calendar,
		useHoliday: useHoliday,
	}, nil
}

// Predict produces estimates for the full training span plus horizonDays
// future days. Bounds are the central estimate ± 1.96 residual deviations.
func (m *seasonalModel) Predict(horizonDays int) ([]models.ForecastPoint, error) {
	total := m.trainDays + horizonDays
	points := make([]models.ForecastPoint, 0, total)

	for t := 0; t < total; t++ {
		idx := m.startIndex + int64(t)
		yhat := dot(seasonalRow(idx, t, m.calendar, m.useHoliday), m.coefs)
		margin := 1.96 * m.sigma
		points = append(points, models.ForecastPoint{
			Date:      models.DayIndexDate(idx),
			Yhat:      yhat,
			YhatLower: yhat - margin,
			YhatUpper: yhat + margin,
			HasBounds: true,
		})
	}
	return points, nil
}

func hasVariance(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return true
		}
	}
	return false
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func square(v float64) float64 {
	return v * v
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. Returns ok=false when a pivot collapses, which signals a
// singular (non-identifiable) fit.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64{}, a[i]...), b[i])
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-10 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = m[i][n] / m[i][i]
	}
	return x, true
}
