package ingest

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/dgirardi/thawcast-go/internal/models"
	"github.com/dgirardi/thawcast-go/internal/utils"
)

// Required column headers in a sales export.
const (
	columnDate     = "data_dia"
	columnProduct  = "id_produto"
	columnQuantity = "total_venda_dia_kg"
)

// LoadStats summarizes one parse: how many rows arrived and how many were
// dropped for unparseable fields. Dropped rows are a data-quality signal, not
// an error.
type LoadStats struct {
	TotalRows   int `json:"total_rows"`
	DroppedRows int `json:"dropped_rows"`
}

// Loader parses point-of-sale exports into raw sales records. The exports
// come from a legacy system: Latin-1 encoded, semicolon delimited, day-first
// dates and comma decimal separators.
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a loader.
func NewLoader(logger *logrus.Logger) *Loader {
	return &Loader{logger: logger}
}

// ParseCSV reads a sales export from r. It fails with DataFormatError when a
// required column is missing; rows with unparseable dates or quantities are
// dropped and counted instead of failing the whole file.
func (l *Loader) ParseCSV(r io.Reader) ([]models.SalesRecord, LoadStats, error) {
	reader := csv.NewReader(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, LoadStats{}, utils.NewDataFormatErrorf("empty sales export: missing header row")
	}
	if err != nil {
		return nil, LoadStats{}, utils.NewIOBoundaryError("read csv header", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{columnDate, columnProduct, columnQuantity} {
		if _, ok := columns[required]; !ok {
			return nil, LoadStats{}, utils.NewDataFormatErrorf("missing required column %q", required)
		}
	}

	var (
		records []models.SalesRecord
		stats   LoadStats
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, utils.NewIOBoundaryError("read csv row", err)
		}
		stats.TotalRows++

		record, ok := l.parseRow(row, columns)
		if !ok {
			stats.DroppedRows++
			continue
		}
		records = append(records, record)
	}

	if stats.DroppedRows > 0 {
		l.logger.WithFields(logrus.Fields{
			"total":   stats.TotalRows,
			"dropped": stats.DroppedRows,
		}).Warn("Sales export contained unparseable rows")
	}
	return records, stats, nil
}

func (l *Loader) parseRow(row []string, columns map[string]int) (models.SalesRecord, bool) {
	date, ok := field(row, columns[columnDate])
	if !ok {
		return models.SalesRecord{}, false
	}
	product, ok := field(row, columns[columnProduct])
	if !ok {
		return models.SalesRecord{}, false
	}
	quantity, ok := field(row, columns[columnQuantity])
	if !ok {
		return models.SalesRecord{}, false
	}

	parsedDate, err := parseDate(date)
	if err != nil {
		return models.SalesRecord{}, false
	}
	productID, err := strconv.ParseInt(product, 10, 64)
	if err != nil {
		return models.SalesRecord{}, false
	}
	kg, err := parseDecimal(quantity)
	if err != nil {
		return models.SalesRecord{}, false
	}

	return models.SalesRecord{Date: parsedDate, ProductID: productID, QuantityKg: kg}, true
}

func field(row []string, idx int) (string, bool) {
	if idx >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[idx])
	return v, v != ""
}

// parseDate accepts day-first dates as exported (31/12/2025) and ISO dates
// (2025-12-31), with or without a time component.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	layouts := []string{"02/01/2006", "2006-01-02"}
	var err error
	for _, layout := range layouts {
		var d time.Time
		if d, err = time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, err
}

// parseDecimal accepts both comma and dot decimal separators.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
