package schedule

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// ThawLeadDays is the fixed gap between retrieval and sale: stock pulled on
// day R sells on day R+2, the third day of the cycle counting R as day 1.
const ThawLeadDays = 2

// Lot stage labels, matching the floor operation's stage names.
const (
	StageToRetrieve = "ToRetrieve"
	StageDay1       = "Day1(Left)"
	StageDay2       = "Day2(Central)"
	StageDay3       = "Day3(Sale)"
)

// Scheduler converts a forecast series into daily retrieval amounts,
// inflating each sale-day demand by the thaw weight loss so the net quantity
// leaving the cycle matches the forecast.
type Scheduler struct {
	lossFraction float64
	logger       *logrus.Logger
}

// NewScheduler creates a scheduler. The loss fraction must lie in [0, 1);
// anything else is a configuration error, not a runtime condition.
func NewScheduler(lossFraction float64, logger *logrus.Logger) (*Scheduler, error) {
	if lossFraction < 0 || lossFraction >= 1 {
		return nil, utils.NewDataFormatErrorf("loss fraction %.4f outside [0, 1)", lossFraction)
	}
	return &Scheduler{lossFraction: lossFraction, logger: logger}, nil
}

// Compensate inflates a net sale-day demand to the gross frozen weight that
// must be retrieved. Absent or non-positive demand yields the unavailable
// sentinel; callers must not read that as zero demand.
func (s *Scheduler) Compensate(demand models.Quantity) models.Quantity {
	if !demand.Available || demand.Kg <= 0 {
		return models.Unavailable
	}
	return models.AvailableKg(models.Round2(demand.Kg / (1 - s.lossFraction)))
}

// LotStage classifies a lot retrieved on retrievalDate as seen from
// queryDate.
func LotStage(retrievalDate, queryDate time.Time) string {
	elapsed := models.DayIndex(queryDate) - models.DayIndex(retrievalDate)
	switch {
	case elapsed < 0:
		return StageToRetrieve
	case elapsed == 0:
		return StageDay1
	case elapsed == 1:
		return StageDay2
	case elapsed == 2:
		return StageDay3
	default:
		return fmt.Sprintf("OutOfCycle(%d days)", elapsed)
	}
}

// demandByRetrievalDate maps each forecast point's sale date S back to its
// retrieval date R = S - ThawLeadDays, keyed by day index for unambiguous
// date arithmetic.
func demandByRetrievalDate(forecast []models.ForecastPoint) map[int64]float64 {
	demand := make(map[int64]float64, len(forecast))
	for _, p := range forecast {
		demand[models.DayIndex(p.Date)-ThawLeadDays] = models.Round2(p.Yhat)
	}
	return demand
}

func lookup(demand map[int64]float64, dayIdx int64) models.Quantity {
	kg, ok := demand[dayIdx]
	if !ok {
		return models.Unavailable
	}
	return models.AvailableKg(kg)
}

// Schedule reconciles the forecast against the thaw cycle for one query date:
// what to pull from frozen storage today, what is mid-thaw from yesterday,
// and what finishes the cycle and sells today.
func (s *Scheduler) Schedule(forecast []models.ForecastPoint, productID int64, queryDate time.Time) models.RetrievalReport {
	demand := demandByRetrievalDate(forecast)
	today := models.DayIndex(queryDate)

	retrieveToday := s.Compensate(lookup(demand, today))
	inThaw := s.Compensate(lookup(demand, today-1))

	// Ready-for-sale is net of loss already; the compensation applied at
	// retrieval time two days ago covers the shrinkage.
	readyForSale := models.Unavailable
	if net := lookup(demand, today-2); net.Available {
		readyForSale = models.AvailableKg(models.Round2(net.Kg))
	}

	// The report describes the lot that matters most on the query date: the
	// one completing its cycle today, falling back to the lot entering the
	// cycle today, and ToRetrieve when neither exists yet.
	stage := StageToRetrieve
	switch {
	case readyForSale.Available:
		stage = LotStage(models.DayIndexDate(today-ThawLeadDays), queryDate)
	case retrieveToday.Available:
		stage = LotStage(queryDate, queryDate)
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"query_date": queryDate.Format("2006-01-02"),
		"lot_stage":  stage,
	}).Debug("Retrieval schedule computed")

	return models.RetrievalReport{
		QueryDate:         queryDate,
		ProductID:         productID,
		KgToRetrieveToday: retrieveToday.Ptr(),
		KgInThaw:          inThaw.Ptr(),
		KgReadyForSale:    readyForSale.Ptr(),
		LotStage:          stage,
	}
}
