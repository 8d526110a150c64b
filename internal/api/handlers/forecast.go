package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dgirardi/thawcast-go/internal/services"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// ForecastHandler exposes the forecasting pipeline over HTTP. Sales exports
// travel in the request body: the pipeline is stateless and retrains from the
// submitted history on every call.
type ForecastHandler struct {
	service *services.ForecastService
	monitor *services.ResourceMonitor
	logger  *logrus.Logger
}

// NewForecastHandler creates the handler.
func NewForecastHandler(service *services.ForecastService, monitor *services.ResourceMonitor, logger *logrus.Logger) *ForecastHandler {
	return &ForecastHandler{service: service, monitor: monitor, logger: logger}
}

type BatchForecastRequest struct {
	CSVData string `json:"csv_data" binding:"required"`
}

type ReportRequest struct {
	CSVData    string `json:"csv_data" binding:"required"`
	SKU        int64  `json:"sku" binding:"required"`
	TargetDate string `json:"target_date" binding:"required"`
}

type SingleForecastRequest struct {
	CSVData string `json:"csv_data" binding:"required"`
	SKU     int64  `json:"sku" binding:"required"`
}

// statusFor maps pipeline failures onto HTTP codes: caller mistakes are 4xx,
// everything else is a 500.
func statusFor(err error) int {
	var formatErr *utils.DataFormatError
	var insufficient *utils.InsufficientDataError
	var training *utils.ModelTrainingError
	switch {
	case errors.As(err, &formatErr):
		return http.StatusBadRequest
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	case errors.As(err, &training):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// BatchForecast handles POST /api/v1/forecast.
func (h *ForecastHandler) BatchForecast(c *gin.Context) {
	var req BatchForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	before := h.monitor.Snapshot(c.Request.Context())
	entries, stats, err := h.service.BatchFromCSV(c.Request.Context(), strings.NewReader(req.CSVData))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	h.monitor.LogBatchResources(before, h.monitor.Snapshot(c.Request.Context()), len(entries))

	c.JSON(http.StatusOK, gin.H{
		"results": entries,
		"stats":   stats,
	})
}

// Report handles POST /api/v1/forecast/report: a retrieval report for one
// product on one target date.
func (h *ForecastHandler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	targetDate, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_date must be YYYY-MM-DD"})
		return
	}

	report, err := h.service.Report(c.Request.Context(), strings.NewReader(req.CSVData), req.SKU, targetDate)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ForecastOne handles POST /api/v1/forecast/single: the forecast entry for
// one product. Served from the cache when the same history was already
// processed within the TTL.
func (h *ForecastHandler) ForecastOne(c *gin.Context) {
	var req SingleForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	entry, err := h.service.ForecastOne(c.Request.Context(), strings.NewReader(req.CSVData), req.SKU)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Latest handles GET /api/v1/forecast/:sku/latest: the most recent persisted
// run for one product.
func (h *ForecastHandler) Latest(c *gin.Context) {
	sku, err := strconv.ParseInt(c.Param("sku"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku must be an integer"})
		return
	}

	run, err := h.service.LatestRun(c.Request.Context(), sku)
	if err != nil {
		h.logger.WithError(err).WithField("product_id", sku).Error("Latest run query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load latest run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No runs recorded for product"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// History handles GET /api/v1/forecast/:sku/history.
func (h *ForecastHandler) History(c *gin.Context) {
	sku, err := strconv.ParseInt(c.Param("sku"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku must be an integer"})
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := h.service.History(c.Request.Context(), sku, limit)
	if err != nil {
		h.logger.WithError(err).WithField("product_id", sku).Error("Run history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sku": sku, "runs": runs})
}
