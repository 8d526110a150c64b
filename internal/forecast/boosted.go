package forecast

import (
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// Boosting hyperparameters. Fixed rather than configurable: the training sets
// here are small daily histories and these settings are stable across them.
const (
	boostedRounds       = 100
	boostedLearningRate = 0.1
	boostedLagWarmup    = 7
	boostedRollWindow   = 7
)

// GradientBoosted fits an autoregressive gradient-boosted ensemble of shallow
// regression trees. Features combine calendar position (day of week, month,
// day of month) with recent demand (one- and two-day lags plus a seven-day
// rolling mean), so forecasts beyond the first day feed on their own earlier
// predictions.
type GradientBoosted struct {
	logger *logrus.Logger
}

// NewGradientBoosted creates the boosted-tree strategy.
func NewGradientBoosted(logger *logrus.Logger) *GradientBoosted {
	return &GradientBoosted{logger: logger}
}

// Name returns the configuration name of the strategy.
func (gb *GradientBoosted) Name() string {
	return StrategyBoosted
}

// Feature vector layout for one day.
const (
	featDayOfWeek = iota
	featMonth
	featDayOfMonth
	featLag1
	featLag2
	featRoll7
	boostedFeatures
)

type boostedModel struct {
	base       float64
	trees      []*regressionTree
	values     []float64
	startIndex int64
}

// rollingMeans returns the trailing seven-day mean for each index, aligned so
// out[i] averages values[i-7 .. i-1]. Indexes below the warmup have no value.
func rollingMeans(values []float64) []float64 {
	sma := trend.NewSmaWithPeriod[float64](boostedRollWindow)
	windows := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	out := make([]float64, len(values))
	for i := boostedLagWarmup; i < len(values); i++ {
		out[i] = windows[i-boostedRollWindow]
	}
	return out
}

func featureRow(dayIndex int64, i int, values, roll []float64) []float64 {
	date := models.DayIndexDate(dayIndex)
	return []float64{
		featDayOfWeek:  float64(date.Weekday()),
		featMonth:      float64(date.Month()),
		featDayOfMonth: float64(date.Day()),
		featLag1:       values[i-1],
		featLag2:       values[i-2],
		featRoll7:      roll[i],
	}
}

// Train fits the ensemble on the full prepared series. The first seven days
// only seed lag and rolling features and never become training rows.
func (gb *GradientBoosted) Train(series *models.DailySeries, _ *timeseries.HolidayCalendar) (Model, error) {
	values := series.Values()
	n := len(values)

	if n <= boostedLagWarmup {
		return nil, utils.NewModelTrainingErrorf(gb.Name(),
			"series for product %d has %d days, need more than %d to derive lag features",
			series.ProductID, n, boostedLagWarmup)
	}
	if !hasVariance(values) {
		return nil, utils.NewModelTrainingErrorf(gb.Name(), "series for product %d has no variance", series.ProductID)
	}

	startIndex := models.DayIndex(series.Start())
	roll := rollingMeans(values)

	rows := make([][]float64, 0, n-boostedLagWarmup)
	targets := make([]float64, 0, n-boostedLagWarmup)
	for i := boostedLagWarmup; i < n; i++ {
		rows = append(rows, featureRow(startIndex+int64(i), i, values, roll))
		targets = append(targets, values[i])
	}

	// Chronological 80/20 split, never shuffled: the trailing fifth of the
	// history stays out of the fit so backtest metrics measure genuine
	// out-of-sample error instead of memorization.
	cut := len(rows) * 4 / 5
	if cut < 1 {
		cut = len(rows)
	}
	rows = rows[:cut]
	targets = targets[:cut]

	base := mean(targets)
	preds := make([]float64, len(targets))
	for i := range preds {
		preds[i] = base
	}

	trees := make([]*regressionTree, 0, boostedRounds)
	residuals := make([]float64, len(targets))
	for round := 0; round < boostedRounds; round++ {
		for i := range targets {
			residuals[i] = targets[i] - preds[i]
		}
		tree := fitTree(rows, residuals)
		if tree == nil {
			break
		}
		trees = append(trees, tree)
		for i, row := range rows {
			preds[i] += boostedLearningRate * tree.predict(row)
		}
	}

	gb.logger.WithFields(logrus.Fields{
		"product_id": series.ProductID,
		"rows":       len(rows),
		"trees":      len(trees),
	}).Debug("Gradient boosting fitted")

	return &boostedModel{
		base:       base,
		trees:      trees,
		values:     values,
		startIndex: startIndex,
	}, nil
}

func (m *boostedModel) score(row []float64) float64 {
	y := m.base
	for _, t := range m.trees {
		y += boostedLearningRate * t.predict(row)
	}
	return y
}

// Predict covers the training span plus horizonDays future days. Historical
// days are scored against the true lagged demand; future days extend the
// series with their own predictions so each day feeds the next, which forces
// strictly sequential evaluation. Tree ensembles carry no distributional
// estimate, so bounds collapse to the central value.
func (m *boostedModel) Predict(horizonDays int) ([]models.ForecastPoint, error) {
	extended := make([]float64, len(m.values), len(m.values)+horizonDays)
	copy(extended, m.values)
	for h := 0; h < horizonDays; h++ {
		i := len(extended)
		date := models.DayIndexDate(m.startIndex + int64(i))
		row := []float64{
			featDayOfWeek:  float64(date.Weekday()),
			featMonth:      float64(date.Month()),
			featDayOfMonth: float64(date.Day()),
			featLag1:       extended[i-1],
			featLag2:       extended[i-2],
			featRoll7:      windowMean(extended, boostedRollWindow),
		}
		extended = append(extended, m.score(row))
	}

	roll := rollingMeans(extended)
	points := make([]models.ForecastPoint, 0, len(extended))
	for i := 0; i < len(extended); i++ {
		idx := m.startIndex + int64(i)
		var yhat float64
		switch {
		case i < boostedLagWarmup:
			yhat = m.base
		case i < len(m.values):
			yhat = m.score(featureRow(idx, i, m.values, roll))
		default:
			yhat = extended[i]
		}
		points = append(points, models.ForecastPoint{
			Date:      models.DayIndexDate(idx),
			Yhat:      yhat,
			YhatLower: yhat,
			YhatUpper: yhat,
			HasBounds: false,
		})
	}
	return points, nil
}

func windowMean(values []float64, window int) float64 {
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	return mean(values[start:])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var s float64
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

// regressionTree is a depth-2 tree: one root split, each side optionally
// split once more, leaves predicting the mean residual of their rows.
type regressionTree struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

type treeNode struct {
	feature   int
	threshold float64
	hasSplit  bool
	leftVal   float64
	rightVal  float64
	value     float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	found     bool
}

// bestSplit scans every feature and every midpoint between adjacent distinct
// feature values, picking the split with the largest SSE reduction. Ties are
// broken by feature order then threshold, keeping fits deterministic.
func bestSplit(rows [][]float64, targets []float64) split {
	best := split{}
	total := sse(targets)

	order := make([]int, len(rows))
	for f := 0; f < boostedFeatures; f++ {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return rows[order[a]][f] < rows[order[b]][f] })

		sorted := make([]float64, len(order))
		for i, idx := range order {
			sorted[i] = targets[idx]
		}

		var leftSum, leftSq float64
		rightSum, rightSq := sum(sorted), sumSq(sorted)
		for i := 0; i < len(order)-1; i++ {
			y := sorted[i]
			leftSum += y
			leftSq += y * y
			rightSum -= y
			rightSq -= y * y

			a, b := rows[order[i]][f], rows[order[i+1]][f]
			if a == b {
				continue
			}
			nl, nr := float64(i+1), float64(len(order)-i-1)
			gain := total - (leftSq - leftSum*leftSum/nl) - (rightSq - rightSum*rightSum/nr)
			if gain > best.gain+1e-12 {
				best = split{feature: f, threshold: (a + b) / 2, gain: gain, found: true}
			}
		}
	}
	return best
}

func fitTree(rows [][]float64, targets []float64) *regressionTree {
	root := bestSplit(rows, targets)
	if !root.found {
		return nil
	}

	var lRows, rRows [][]float64
	var lTargets, rTargets []float64
	for i, row := range rows {
		if row[root.feature] <= root.threshold {
			lRows = append(lRows, row)
			lTargets = append(lTargets, targets[i])
		} else {
			rRows = append(rRows, row)
			rTargets = append(rTargets, targets[i])
		}
	}

	return &regressionTree{
		feature:   root.feature,
		threshold: root.threshold,
		left:      fitNode(lRows, lTargets),
		right:     fitNode(rRows, rTargets),
	}
}

func fitNode(rows [][]float64, targets []float64) *treeNode {
	node := &treeNode{value: mean(targets)}
	s := bestSplit(rows, targets)
	if !s.found {
		return node
	}

	var lTargets, rTargets []float64
	for i, row := range rows {
		if row[s.feature] <= s.threshold {
			lTargets = append(lTargets, targets[i])
		} else {
			rTargets = append(rTargets, targets[i])
		}
	}
	node.hasSplit = true
	node.feature = s.feature
	node.threshold = s.threshold
	node.leftVal = mean(lTargets)
	node.rightVal = mean(rTargets)
	return node
}

func (t *regressionTree) predict(row []float64) float64 {
	node := t.left
	if row[t.feature] > t.threshold {
		node = t.right
	}
	if !node.hasSplit {
		return node.value
	}
	if row[node.feature] <= node.threshold {
		return node.leftVal
	}
	return node.rightVal
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func sumSq(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v * v
	}
	return s
}

func sse(values []float64) float64 {
	m := mean(values)
	var s float64
	for _, v := range values {
		s += square(v - m)
	}
	return s
}
