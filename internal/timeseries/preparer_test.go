package timeseries

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestPrepareFillsGapsWithZeros(t *testing.T) {
	records := []models.SalesRecord{
		{Date: day("2025-01-01"), ProductID: 7, QuantityKg: 5},
		{Date: day("2025-01-03"), ProductID: 7, QuantityKg: 3},
	}

	series, err := NewSeriesPreparer(2, quietLogger()).Prepare(records, 7)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	assert.Equal(t, []float64{5, 0, 3}, series.Values())
	assert.True(t, series.Points[1].Date.Equal(day("2025-01-02")))
}

func TestPrepareSumsDuplicateDates(t *testing.T) {
	records := []models.SalesRecord{
		{Date: day("2025-01-01"), ProductID: 7, QuantityKg: 5},
		{Date: day("2025-01-01"), ProductID: 7, QuantityKg: 2.5},
		{Date: day("2025-01-02"), ProductID: 7, QuantityKg: 1},
	}

	series, err := NewSeriesPreparer(2, quietLogger()).Prepare(records, 7)
	require.NoError(t, err)
	assert.Equal(t, []float64{7.5, 1}, series.Values())
}

func TestPrepareIgnoresOtherProducts(t *testing.T) {
	records := []models.SalesRecord{
		{Date: day("2025-01-01"), ProductID: 7, QuantityKg: 5},
		{Date: day("2025-01-02"), ProductID: 8, QuantityKg: 100},
		{Date: day("2025-01-02"), ProductID: 7, QuantityKg: 3},
	}

	series, err := NewSeriesPreparer(2, quietLogger()).Prepare(records, 7)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 3}, series.Values())
}

func TestPrepareDropsInvalidRows(t *testing.T) {
	records := []models.SalesRecord{
		{Date: day("2025-01-01"), ProductID: 7, QuantityKg: 5},
		{Date: time.Time{}, ProductID: 7, QuantityKg: 4},
		{Date: day("2025-01-02"), ProductID: 7, QuantityKg: -1},
		{Date: day("2025-01-02"), ProductID: 7, QuantityKg: 3},
	}

	series, err := NewSeriesPreparer(2, quietLogger()).Prepare(records, 7)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 3}, series.Values())
}

func TestPrepareMinimumHistoryGate(t *testing.T) {
	base := day("2025-01-01")
	records := make([]models.SalesRecord, 0, 10)
	for i := 0; i < 9; i++ {
		records = append(records, models.SalesRecord{
			Date: base.AddDate(0, 0, i), ProductID: 7, QuantityKg: 1,
		})
	}

	preparer := NewSeriesPreparer(10, quietLogger())

	_, err := preparer.Prepare(records, 7)
	require.Error(t, err)
	var insufficient *utils.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 9, insufficient.Observed)
	assert.Equal(t, 10, insufficient.Required)

	records = append(records, models.SalesRecord{
		Date: base.AddDate(0, 0, 9), ProductID: 7, QuantityKg: 1,
	})
	_, err = preparer.Prepare(records, 7)
	assert.NoError(t, err)
}

func TestPrepareZeroQuantityDaysDoNotCountTowardMinimum(t *testing.T) {
	base := day("2025-01-01")
	records := []models.SalesRecord{
		{Date: base, ProductID: 7, QuantityKg: 2},
	}
	// Nine explicit zero-demand days are recorded activity rows but carry no
	// demand signal, so they must not satisfy the history gate.
	for i := 1; i < 10; i++ {
		records = append(records, models.SalesRecord{
			Date: base.AddDate(0, 0, i), ProductID: 7, QuantityKg: 0,
		})
	}

	_, err := NewSeriesPreparer(10, quietLogger()).Prepare(records, 7)
	require.Error(t, err)
	var insufficient *utils.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Observed)
}
