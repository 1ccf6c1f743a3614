package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/services"
)

func TestLayoutText(t *testing.T) {
	specs, err := services.GenerateLayout("H8", "B")
	if err != nil {
		t.Fatalf("Failed to generate layout: %v", err)
	}

	var buf bytes.Buffer
	if err := Layout("H8", "B", specs, Config{Format: "text", Out: &buf}); err != nil {
		t.Fatalf("Failed to render layout: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "8 bins") || !strings.Contains(out, "b_bin_1h") {
		t.Errorf("Unexpected layout output:\n%s", out)
	}
}

func TestReconcileJSONToDirectory(t *testing.T) {
	dir := t.TempDir()
	result := &dto.ReconcileResult{
		Processed: 2,
		Skipped:   1,
		Inserted:  1,
		Unchanged: 1,
		Failures:  []entities.UnitError{{Unit: "row 3 (X)", Error: "boom"}},
	}

	var buf bytes.Buffer
	if err := Reconcile(result, Config{Format: "json", OutputDir: dir, Verbose: true, Out: &buf}); err != nil {
		t.Fatalf("Failed to render result: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "reconcile_results.json"))
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	var decoded dto.ReconcileResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if decoded.Processed != 2 || len(decoded.Failures) != 1 {
		t.Errorf("Unexpected decoded result %+v", decoded)
	}
	if !strings.Contains(buf.String(), "saved to") {
		t.Errorf("Expected save notice, got %q", buf.String())
	}
}

func TestLocatedTextShowsUnplaced(t *testing.T) {
	located := []dto.LocatedItem{
		{
			Item:     entities.Item{StockCode: "STK-001", UBinID: "U-1", Status: entities.StatusAvailable},
			Location: &entities.BinLocation{PodBarcode: "HB10000000001", FaceLetter: "A", BinID: "a_bin_1a"},
		},
		{Item: entities.Item{StockCode: "STK-900", UBinID: "U-ORPHAN", Status: entities.StatusMissing}},
	}

	var buf bytes.Buffer
	if err := Located(located, Config{Out: &buf}); err != nil {
		t.Fatalf("Failed to render located items: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[4], "STK-900") || !strings.Contains(lines[4], " - ") {
		t.Errorf("Expected unplaced row with dashes, got %q", lines[4])
	}
}

func TestIntegrityText(t *testing.T) {
	var buf bytes.Buffer
	report := &services.IntegrityReport{PodsChecked: 1, UnplacedItems: []string{"STK-900"}}
	if err := Integrity(report, Config{Out: &buf}); err != nil {
		t.Fatalf("Failed to render report: %v", err)
	}
	if !strings.Contains(buf.String(), "item STK-900 has no matching bin") {
		t.Errorf("Expected unplaced issue, got:\n%s", buf.String())
	}
}

func TestUnsupportedFormat(t *testing.T) {
	err := SyncAll(&dto.SyncAllResult{}, Config{Format: "gantt"})
	if err == nil {
		t.Error("Expected error for unsupported format")
	}
}
