package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

func TestReadFeedCSV(t *testing.T) {
	input := "SKU,Location Barcode,u_bin_id\n" +
		"SKU1,HB12345678901 extra,P-6-R326Q053\n" +
		",,\n" +
		"SKU2,,none\n" +
		"SKU3\n"

	rows, err := NewLoader().ReadFeedCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	first := rows[0]
	if first.Line != 2 || first.StockCode != "SKU1" || first.LocationKeyRaw != "P-6-R326Q053" || first.LocationBarcodeRaw != "HB12345678901 extra" {
		t.Errorf("Unexpected first row %+v", first)
	}
	if rows[1].Line != 4 || rows[1].LocationKeyRaw != "none" {
		t.Errorf("Expected raw values to be kept for line 4, got %+v", rows[1])
	}
	if rows[2].StockCode != "SKU3" || rows[2].LocationKeyRaw != "" {
		t.Errorf("Expected ragged row to yield empty key, got %+v", rows[2])
	}
}

func TestReadFeedCSVMissingColumn(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no stock code", "location,barcode\nLOC-1,HB1\n"},
		{"no location key", "stock_code,barcode\nS1,HB1\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLoader().ReadFeedCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected error for malformed header")
			}
		})
	}
}

func TestReadFeedXLSX(t *testing.T) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := workbook.GetSheetList()[0]
	rows := [][]interface{}{
		{"Stock Code", "Location Key", "Pod Barcode"},
		{"SKU1", "P-6-R326Q053", "HB12345678901"},
		{"SKU2", "U-0002-A_BIN_1A"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to build cell name: %v", err)
		}
		if err := workbook.SetSheetRow(sheet, cellName, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}

	parsed, err := NewLoader().ReadFeedXLSX(buf)
	if err != nil {
		t.Fatalf("Failed to read feed: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(parsed))
	}
	if parsed[0].LocationBarcodeRaw != "HB12345678901" {
		t.Errorf("Expected barcode HB12345678901, got %q", parsed[0].LocationBarcodeRaw)
	}
	if parsed[1].StockCode != "SKU2" || parsed[1].LocationBarcodeRaw != "" {
		t.Errorf("Unexpected second row %+v", parsed[1])
	}
}

func TestLoadFeedRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.txt")
	if err := os.WriteFile(path, []byte("sku,location\n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := NewLoader().LoadFeed(path); err == nil {
		t.Error("Expected error for .txt feed")
	}
}

func TestLoadItems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.csv")
	content := "stock_code,u_bin_id,status,quantity\n" +
		"STK-001,U-0001-A_BIN_1A,available,1\n" +
		"STK-002,,Hunting,3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	items, err := NewLoader().LoadItems(path)
	if err != nil {
		t.Fatalf("Failed to load items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[1].Status != entities.StatusHunting || items[1].Quantity != 3 {
		t.Errorf("Unexpected second item %+v", items[1])
	}

	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("stock_code,u_bin_id,status,quantity\nSTK-1,U-1,lost,1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := NewLoader().LoadItems(bad); err == nil {
		t.Error("Expected error for invalid status")
	}
}

func TestLoadPods(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pods.json")
	content := `[{"podBarcode":"HB10000000001","podType":"H8","faces":[{"face":"A","bins":[{"binId":"a_bin_1a","uBinId":"U-1","items":[]}]}]}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	pods, err := NewLoader().LoadPods(path)
	if err != nil {
		t.Fatalf("Failed to load pods: %v", err)
	}
	if len(pods) != 1 || pods[0].Faces[0].Bins[0].UBinID != "U-1" {
		t.Errorf("Unexpected pods %+v", pods)
	}
}
