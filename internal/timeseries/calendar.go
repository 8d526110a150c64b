package timeseries

import (
	"time"

	"github.com/dgirardi/thawcast-go/internal/models"
)

// HolidayEffect marks a calendar date that perturbs demand. The holiday date
// and WindowDays following days all receive the additive adjustment during
// model fitting.
type HolidayEffect struct {
	Date       time.Time `json:"date"`
	WindowDays int       `json:"window_days"`
}

// HolidayCalendar is a static lookup of demand-perturbing dates. It is loaded
// once and shared read-only across all products, so concurrent reads need no
// locking.
type HolidayCalendar struct {
	affected map[int64]bool
}

// NewHolidayCalendar builds a calendar from explicit holiday effects.
func NewHolidayCalendar(effects []HolidayEffect) *HolidayCalendar {
	affected := make(map[int64]bool)
	for _, e := range effects {
		idx := models.DayIndex(e.Date)
		for d := 0; d <= e.WindowDays; d++ {
			affected[idx+int64(d)] = true
		}
	}
	return &HolidayCalendar{affected: affected}
}

// IsAffected reports whether a date falls on a holiday or inside its trailing
// effect window.
func (c *HolidayCalendar) IsAffected(date time.Time) bool {
	return c.affected[models.DayIndex(date)]
}

// defaultHolidays are the municipal, state and national holidays observed in
// São Luís - MA for 2025, matching the calendar the sales history comes from.
var defaultHolidays = []string{
	"2025-01-01", "2025-03-29", "2025-04-21", "2025-05-01",
	"2025-06-29", "2025-07-28", "2025-09-07", "2025-09-08",
	"2025-10-12", "2025-11-02", "2025-11-15", "2025-12-08", "2025-12-25",
}

// DefaultHolidayCalendar returns the built-in holiday set with the given
// trailing effect window applied to every date.
func DefaultHolidayCalendar(windowDays int) *HolidayCalendar {
	effects := make([]HolidayEffect, 0, len(defaultHolidays))
	for _, s := range defaultHolidays {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			continue
		}
		effects = append(effects, HolidayEffect{Date: d, WindowDays: windowDays})
	}
	return NewHolidayCalendar(effects)
}
