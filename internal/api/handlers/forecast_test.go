package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgirardi/thawcast-go/internal/config"
	"github.com/dgirardi/thawcast-go/internal/forecast"
	"github.com/dgirardi/thawcast-go/internal/ingest"
	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/pipeline"
	"github.com/dgirardi/thawcast-go/internal/schedule"
	"github.com/dgirardi/thawcast-go/internal/services"
	"github.com/dgirardi/thawcast-go/internal/timeseries"
)

// salesCSV renders a semicolon export with 4 weeks of history per product.
func salesCSV(productIDs ...int64) string {
	pattern := []float64{4, 6, 5, 7, 9, 14, 12}
	var b strings.Builder
	b.WriteString("data_dia;id_produto;total_venda_dia_kg\n")
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for _, id := range productIDs {
		for i := 0; i < 28; i++ {
			d := start.AddDate(0, 0, i)
			fmt.Fprintf(&b, "%s;%d;%.2f\n", d.Format("02/01/2006"), id, pattern[i%7])
		}
	}
	return b.String()
}

func newForecastRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := quietLogger()

	cfg := config.ForecastConfig{
		Strategy:          forecast.StrategySeasonal,
		HorizonDays:       7,
		ReportHorizonDays: 30,
		MinHistoryPoints:  10,
		Workers:           2,
	}
	scheduler, err := schedule.NewScheduler(0.15, logger)
	require.NoError(t, err)
	orchestrator := pipeline.NewOrchestrator(
		timeseries.NewSeriesPreparer(cfg.MinHistoryPoints, logger),
		forecast.NewSeasonalRegression(logger),
		scheduler,
		timeseries.DefaultHolidayCalendar(1),
		logger,
	)
	svc := services.NewForecastService(orchestrator, ingest.NewLoader(logger), nil, nil,
		cfg, forecast.StrategySeasonal, logger)
	h := NewForecastHandler(svc, services.NewResourceMonitor(logger), logger)

	router := gin.New()
	router.POST("/forecast", h.BatchForecast)
	router.POST("/forecast/single", h.ForecastOne)
	router.POST("/forecast/report", h.Report)
	router.GET("/forecast/:sku/history", h.History)
	router.GET("/forecast/:sku/latest", h.Latest)
	return router
}

func TestBatchForecastEndpoint(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast", gin.H{"csv_data": salesCSV(2, 1)})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []models.BatchEntry `json:"results"`
		Stats   ingest.LoadStats    `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(1), resp.Results[0].SKU)
	assert.Equal(t, int64(2), resp.Results[1].SKU)
	assert.Equal(t, 56, resp.Stats.TotalRows)
	assert.Len(t, resp.Results[0].Previsoes, 7)
}

func TestBatchForecastEndpointBadBody(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast", gin.H{"wrong": "field"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchForecastEndpointBadCSV(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast", gin.H{"csv_data": "id_produto;x\n1;2\n"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchForecastEndpointEmptyCSV(t *testing.T) {
	router := newForecastRouter(t)

	// A header-less export is the caller's mistake, not a server failure.
	w := postJSON(t, router, "/forecast", gin.H{"csv_data": "\n"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSingleForecastEndpoint(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast/single", gin.H{"csv_data": salesCSV(1), "sku": 1})
	require.Equal(t, http.StatusOK, w.Code)

	var entry models.BatchEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, int64(1), entry.SKU)
	assert.Len(t, entry.Previsoes, 7)
}

func TestSingleForecastEndpointUnknownProduct(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast/single", gin.H{"csv_data": salesCSV(1), "sku": 99})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLatestEndpointWithoutRuns(t *testing.T) {
	router := newForecastRouter(t)

	w := getPath(t, router, "/forecast/1/latest")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportEndpoint(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast/report", gin.H{
		"csv_data":    salesCSV(1),
		"sku":         1,
		"target_date": "2025-04-02",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var report models.RetrievalReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, int64(1), report.ProductID)
	assert.NotNil(t, report.KgToRetrieveToday)
	assert.NotNil(t, report.KgReadyForSale)
}

func TestReportEndpointShortHistory(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast/report", gin.H{
		"csv_data":    salesCSV(1),
		"sku":         99,
		"target_date": "2025-04-02",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestReportEndpointBadDate(t *testing.T) {
	router := newForecastRouter(t)

	w := postJSON(t, router, "/forecast/report", gin.H{
		"csv_data":    salesCSV(1),
		"sku":         1,
		"target_date": "02/04/2025",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryEndpointWithoutRepository(t *testing.T) {
	router := newForecastRouter(t)

	w := getPath(t, router, "/forecast/1/history")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SKU  int64             `json:"sku"`
		Runs []json.RawMessage `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.SKU)
	assert.Empty(t, resp.Runs)
}

func TestHistoryEndpointBadSKU(t *testing.T) {
	router := newForecastRouter(t)

	w := getPath(t, router, "/forecast/abc/history")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
