package forecast

import (
	"math"

	"github.com/dgirardi/thawcast-go/internal/models"
)

// Evaluate scores forecast points against the observed series by joining on
// calendar day; forecast days with no observation and observed days with no
// forecast are ignored. RMSE runs over every joined day. MAPE runs only over
// joined days with a non-zero actual, since a zero actual makes the
// percentage term undefined, and is expressed in percent. No overlap yields
// zeroed metrics rather than an error so evaluation never blocks a forecast.
func Evaluate(actual *models.DailySeries, forecast []models.ForecastPoint) models.EvaluationMetrics {
	predicted := make(map[int64]float64, len(forecast))
	for _, p := range forecast {
		predicted[models.DayIndex(p.Date)] = p.Yhat
	}

	var (
		sqErr   float64
		apeSum  float64
		overlap int
		apeN    int
	)
	for _, pt := range actual.Points {
		yhat, ok := predicted[models.DayIndex(pt.Date)]
		if !ok {
			continue
		}
		overlap++
		diff := pt.Value - yhat
		sqErr += diff * diff
		if pt.Value != 0 {
			apeSum += math.Abs(diff / pt.Value)
			apeN++
		}
	}

	if overlap == 0 {
		return models.EvaluationMetrics{}
	}

	metrics := models.EvaluationMetrics{
		RMSE:         math.Sqrt(sqErr / float64(overlap)),
		OverlapCount: overlap,
	}
	if apeN > 0 {
		metrics.MAPE = apeSum / float64(apeN) * 100
	}
	return metrics
}
