package models

import "time"

// Quantity is a kilogram amount that may be unavailable. Absence is distinct
// from zero demand: an unavailable quantity means no forecast covers the
// corresponding retrieval date.
type Quantity struct {
	Kg        float64
	Available bool
}

// AvailableKg builds a present quantity.
func AvailableKg(kg float64) Quantity {
	return Quantity{Kg: kg, Available: true}
}

// Unavailable is the sentinel for a quantity with no covering forecast.
var Unavailable = Quantity{}

// RetrievalReport is the thaw-cycle schedule for one product on one query
// date, derived entirely from a forecast series. It is recomputed on every
// query and never cached.
type RetrievalReport struct {
	QueryDate         time.Time `json:"query_date"`
	ProductID         int64     `json:"product_id"`
	KgToRetrieveToday *float64  `json:"kg_to_retrieve_today"`
	KgInThaw          *float64  `json:"kg_in_thaw"`
	KgReadyForSale    *float64  `json:"kg_ready_for_sale"`
	LotStage          string    `json:"lot_stage"`
}

// Ptr returns a pointer to the quantity's value, or nil when unavailable.
// Used for the JSON report, where unavailable fields serialize as null.
func (q Quantity) Ptr() *float64 {
	if !q.Available {
		return nil
	}
	kg := q.Kg
	return &kg
}
