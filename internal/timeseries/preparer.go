package timeseries

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// SeriesPreparer cleans a raw per-product sales history into a gap-free daily
// series: same-date rows are summed, negative quantities and zero dates are
// discarded, and every missing calendar day inside the observed span becomes
// an explicit zero (no sale means zero demand, not missing data).
type SeriesPreparer struct {
	minHistoryPoints int
	logger           *logrus.Logger
}

// NewSeriesPreparer creates a preparer that requires at least
// minHistoryPoints distinct dates with recorded activity before gap-filling.
func NewSeriesPreparer(minHistoryPoints int, logger *logrus.Logger) *SeriesPreparer {
	return &SeriesPreparer{
		minHistoryPoints: minHistoryPoints,
		logger:           logger,
	}
}

// Prepare builds the daily series for one product. It returns
// InsufficientDataError when fewer than the configured minimum of active
// dates survive cleaning; injected gap-fill zeros never count toward the
// minimum.
func (sp *SeriesPreparer) Prepare(records []models.SalesRecord, productID int64) (*models.DailySeries, error) {
	byDay := make(map[int64]float64)
	dropped := 0

	for _, rec := range records {
		if rec.ProductID != productID {
			continue
		}
		if rec.Date.IsZero() || rec.QuantityKg < 0 {
			dropped++
			continue
		}
		byDay[models.DayIndex(rec.Date)] += rec.QuantityKg
	}

	if dropped > 0 {
		sp.logger.WithFields(logrus.Fields{
			"product_id": productID,
			"dropped":    dropped,
		}).Debug("Discarded invalid sales rows")
	}

	active := 0
	for _, v := range byDay {
		if v > 0 {
			active++
		}
	}
	if active < sp.minHistoryPoints {
		return nil, utils.NewInsufficientDataError(productID, active, sp.minHistoryPoints)
	}

	indexes := make([]int64, 0, len(byDay))
	for idx := range byDay {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	first, last := indexes[0], indexes[len(indexes)-1]
	points := make([]models.SeriesPoint, 0, last-first+1)
	for idx := first; idx <= last; idx++ {
		points = append(points, models.SeriesPoint{
			Date:  models.DayIndexDate(idx),
			Value: byDay[idx],
		})
	}

	return &models.DailySeries{ProductID: productID, Points: points}, nil
}
