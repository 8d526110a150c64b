package models

import "time"

// SalesRecord is one raw observation from a sales history export.
// Records arrive unvalidated: the same product may have several rows for the
// same day, and quantities are only expected (not guaranteed) to be >= 0.
type SalesRecord struct {
	Date       time.Time `json:"data_dia"`
	ProductID  int64     `json:"id_produto"`
	QuantityKg float64   `json:"total_venda_dia_kg"`
}

// SeriesPoint is a single day in a prepared series.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DailySeries is a gap-free daily demand series for one product: dates
// strictly increase by exactly one calendar day, values are >= 0.
// Built by the series preparer and treated as immutable afterwards.
type DailySeries struct {
	ProductID int64         `json:"product_id"`
	Points    []SeriesPoint `json:"points"`
}

// Len returns the number of days in the series.
func (s *DailySeries) Len() int {
	return len(s.Points)
}

// Start returns the first date of the series.
func (s *DailySeries) Start() time.Time {
	return s.Points[0].Date
}

// End returns the last date of the series.
func (s *DailySeries) End() time.Time {
	return s.Points[len(s.Points)-1].Date
}

// Values returns the series values in chronological order.
func (s *DailySeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// DayIndex converts a timestamp to a whole-day index (days since the Unix
// epoch, evaluated in UTC). All calendar arithmetic in the pipeline runs on
// these indexes so date lookups stay unambiguous regardless of time zone or
// clock components on the input timestamps.
func DayIndex(t time.Time) int64 {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Unix() / 86400
}

// DayIndexDate converts a day index back to its UTC midnight timestamp.
func DayIndexDate(idx int64) time.Time {
	return time.Unix(idx*86400, 0).UTC()
}
