package feed

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/domain/entities"
)

// Column aliases accepted in feed headers, compared after normalizeHeader
var (
	stockCodeAliases       = []string{"stockcode", "sku", "itemcode"}
	locationKeyAliases     = []string{"ubinid", "locationkey", "location", "binkey"}
	locationBarcodeAliases = []string{"locationbarcode", "podbarcode", "barcode"}
)

// Loader reads spreadsheet feeds and seed files
type Loader struct{}

// NewLoader creates a new feed loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFeed reads a feed file, choosing the format from its extension
func (l *Loader) LoadFeed(filename string) ([]dto.FeedRow, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file %s: %w", filename, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return l.ReadFeedXLSX(file)
	case ".csv", "":
		return l.ReadFeedCSV(file)
	default:
		return nil, fmt.Errorf("unsupported feed format %q (expected .csv or .xlsx)", filepath.Ext(filename))
	}
}

// ReadFeedCSV parses a CSV feed. Rows may be ragged.
func (l *Loader) ReadFeedCSV(r io.Reader) ([]dto.FeedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read feed CSV: %w", err)
	}
	return parseFeed(records)
}

// ReadFeedXLSX parses the first sheet of an XLSX workbook
func (l *Loader) ReadFeedXLSX(r io.Reader) ([]dto.FeedRow, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("feed workbook has no sheets")
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseFeed(rows)
}

func parseFeed(records [][]string) ([]dto.FeedRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("feed must have a header row")
	}

	header := records[0]
	stockCol := findColumn(header, stockCodeAliases)
	if stockCol < 0 {
		return nil, fmt.Errorf("feed header has no stock code column: %v", header)
	}
	keyCol := findColumn(header, locationKeyAliases)
	if keyCol < 0 {
		return nil, fmt.Errorf("feed header has no location key column: %v", header)
	}
	barcodeCol := findColumn(header, locationBarcodeAliases)

	rows := make([]dto.FeedRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		rows = append(rows, dto.FeedRow{
			Line:               i + 2,
			StockCode:          cell(record, stockCol),
			LocationKeyRaw:     cell(record, keyCol),
			LocationBarcodeRaw: cell(record, barcodeCol),
		})
	}
	return rows, nil
}

// LoadItems loads a seed item file with a fixed header
func (l *Loader) LoadItems(filename string) ([]*entities.Item, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file %s: %w", filename, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read items CSV: %w", err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("items CSV must have a header row")
	}

	expectedHeader := []string{"stock_code", "u_bin_id", "status", "quantity"}
	if !validateHeader(records[0], expectedHeader) {
		return nil, fmt.Errorf("items CSV header mismatch. Expected: %v, Got: %v", expectedHeader, records[0])
	}

	items := make([]*entities.Item, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("items CSV row %d: expected %d columns, got %d", i+2, len(expectedHeader), len(record))
		}

		item, err := parseItem(record)
		if err != nil {
			return nil, fmt.Errorf("items CSV row %d: %w", i+2, err)
		}
		items = append(items, item)
	}

	return items, nil
}

// LoadPods loads pod documents from a JSON array
func (l *Loader) LoadPods(filename string) ([]*entities.Pod, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read pods file %s: %w", filename, err)
	}

	var pods []*entities.Pod
	if err := json.Unmarshal(data, &pods); err != nil {
		return nil, fmt.Errorf("failed to parse pods JSON: %w", err)
	}
	return pods, nil
}

func parseItem(record []string) (*entities.Item, error) {
	status, err := entities.ParseItemStatus(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, err
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[3])
	}

	item := &entities.Item{
		StockCode: strings.TrimSpace(record[0]),
		UBinID:    strings.TrimSpace(record[1]),
		Status:    status,
		Quantity:  quantity,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

// normalizeHeader lowercases and drops separators so "Stock Code",
// "stock_code" and "stockCode" compare equal
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		name := normalizeHeader(h)
		for _, alias := range aliases {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

func cell(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return record[col]
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
