package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/schedule"
)

// ScheduleHandler exposes the thaw-cycle arithmetic as standalone endpoints
// for the floor tools that track physical lots. Field names in the responses
// follow the established Portuguese wire contract.
type ScheduleHandler struct {
	scheduler *schedule.Scheduler
	logger    *logrus.Logger
}

// NewScheduleHandler creates the handler.
func NewScheduleHandler(scheduler *schedule.Scheduler, logger *logrus.Logger) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler, logger: logger}
}

type CompensationRequest struct {
	QuantityKg float64 `json:"quantity_kg"`
}

type LotDatesRequest struct {
	RetrievalDate string `json:"retrieval_date" binding:"required"`
	QueryDate     string `json:"query_date" binding:"required"`
}

func parseLotDates(c *gin.Context) (retrieval, query time.Time, ok bool) {
	var req LotDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return time.Time{}, time.Time{}, false
	}

	retrieval, err := time.Parse("2006-01-02", req.RetrievalDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retrieval_date must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	query, err = time.Parse("2006-01-02", req.QueryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query_date must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	return retrieval, query, true
}

// Compensation handles POST /api/v1/schedule/compensation: gross up a net
// demand by the configured thaw loss. Returns null when the demand is absent
// or non-positive, never zero.
func (h *ScheduleHandler) Compensation(c *gin.Context) {
	var req CompensationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result := h.scheduler.Compensate(models.AvailableKg(req.QuantityKg))
	c.JSON(http.StatusOK, gin.H{"retirada_kg": result.Ptr()})
}

// LotAge handles POST /api/v1/schedule/lot-age: whole days elapsed since
// retrieval.
func (h *ScheduleHandler) LotAge(c *gin.Context) {
	retrieval, query, ok := parseLotDates(c)
	if !ok {
		return
	}

	age := models.DayIndex(query) - models.DayIndex(retrieval)
	c.JSON(http.StatusOK, gin.H{"idade_lote": age})
}

// LotStage handles POST /api/v1/schedule/lot-stage: the thaw-cycle stage of a
// lot retrieved on one date as seen from another.
func (h *ScheduleHandler) LotStage(c *gin.Context) {
	retrieval, query, ok := parseLotDates(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"estagio_lote": schedule.LotStage(retrieval, query)})
}
