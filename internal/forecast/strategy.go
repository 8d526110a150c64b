package forecast

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
)

// Strategy identifiers accepted in configuration.
const (
	StrategySeasonal = "seasonal"
	StrategyBoosted  = "boosted"
)

// Model is a fitted forecasting model. Predict produces one point per day of
// the training span plus horizonDays future days, in chronological order.
type Model interface {
	Predict(horizonDays int) ([]models.ForecastPoint, error)
}

// Strategy trains a demand model on a prepared daily series. Implementations
// must be deterministic: identical input and configuration always yield an
// identical model.
type Strategy interface {
	Name() string
	Train(series *models.DailySeries, calendar *timeseries.HolidayCalendar) (Model, error)
}

// NewStrategy resolves a strategy by its configuration name.
func NewStrategy(name string, logger *logrus.Logger) (Strategy, error) {
	switch name {
	case StrategySeasonal:
		return NewSeasonalRegression(logger), nil
	case StrategyBoosted:
		return NewGradientBoosted(logger), nil
	default:
		return nil, fmt.Errorf("unknown forecast strategy %q", name)
	}
}
