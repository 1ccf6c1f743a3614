package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/services"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Out       io.Writer
}

func (c Config) writer() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Layout prints the bins generated for one pod type and face
func Layout(podType entities.PodType, face string, specs []services.BinSpec, config Config) error {
	return generate(config, "layout.json", specs, func(w io.Writer) {
		fmt.Fprintf(w, "📐 Layout %s face %s (%d bins)\n", podType, face, len(specs))
		fmt.Fprintf(w, "%-14s %-8s %-4s %-6s\n", "Bin ID", "Display", "Row", "Column")
		fmt.Fprintf(w, "%-14s %-8s %-4s %-6s\n", "--------------", "--------", "----", "------")
		for _, spec := range specs {
			fmt.Fprintf(w, "%-14s %-8s %-4s %-6d\n", spec.BinID, spec.Display, spec.Row, spec.Column)
		}
	})
}

// SyncAll prints the summary of a full synchronization pass
func SyncAll(result *dto.SyncAllResult, config Config) error {
	return generate(config, "sync_results.json", result, func(w io.Writer) {
		fmt.Fprintf(w, "🔄 Sync Results Summary\n")
		fmt.Fprintf(w, "=======================\n\n")
		fmt.Fprintf(w, "Run ID: %s\n", result.RunID)
		fmt.Fprintf(w, "Pods: %d\n", result.TotalPods)
		fmt.Fprintf(w, "Items Synced: %d\n", result.TotalItemsSynced)
		fmt.Fprintf(w, "Errors: %d\n", result.TotalErrors)
		fmt.Fprintf(w, "Duration: %v\n\n", result.Duration)

		if config.Verbose && len(result.Pods) > 0 {
			writePodTable(w, result.Pods)
		}
		writeFailures(w, "⚠️  Failed Pods:", result.ErrorDetails)
	})
}

// PodSync prints the outcome of synchronizing one pod
func PodSync(result *dto.PodSyncResult, config Config) error {
	return generate(config, "sync_results.json", result, func(w io.Writer) {
		writePodTable(w, []dto.PodSyncResult{*result})
	})
}

// Reconcile prints the outcome of a feed batch
func Reconcile(result *dto.ReconcileResult, config Config) error {
	return generate(config, "reconcile_results.json", result, func(w io.Writer) {
		fmt.Fprintf(w, "📥 Feed Reconciliation Summary\n")
		fmt.Fprintf(w, "==============================\n\n")
		fmt.Fprintf(w, "Processed: %d\n", result.Processed)
		fmt.Fprintf(w, "Skipped: %d\n", result.Skipped)
		fmt.Fprintf(w, "Inserted: %d\n", result.Inserted)
		fmt.Fprintf(w, "Updated: %d\n", result.Updated)
		fmt.Fprintf(w, "Unchanged: %d\n\n", result.Unchanged)
		writeFailures(w, "⚠️  Failed Rows:", result.Failures)
	})
}

// Located prints resolved items with their bin locations
func Located(located []dto.LocatedItem, config Config) error {
	return generate(config, "located_items.json", located, func(w io.Writer) {
		fmt.Fprintf(w, "📍 Located Items: %d\n", len(located))
		if len(located) == 0 {
			return
		}
		fmt.Fprintf(w, "%-15s %-10s %-18s %-15s %-5s %-14s\n",
			"Stock Code", "Status", "UBinID", "Pod", "Face", "Bin")
		fmt.Fprintf(w, "%-15s %-10s %-18s %-15s %-5s %-14s\n",
			"---------------", "----------", "------------------", "---------------", "-----", "--------------")
		for _, l := range located {
			pod, face, bin := "-", "-", "-"
			if l.Location != nil {
				pod, face, bin = l.Location.PodBarcode, l.Location.FaceLetter, l.Location.BinID
			}
			fmt.Fprintf(w, "%-15s %-10s %-18s %-15s %-5s %-14s\n",
				l.StockCode, l.Status, l.UBinID, pod, face, bin)
		}
	})
}

// Integrity prints an integrity report
func Integrity(report *services.IntegrityReport, config Config) error {
	return generate(config, "integrity_report.json", report, func(w io.Writer) {
		fmt.Fprintf(w, "🔍 Integrity Report\n")
		fmt.Fprintf(w, "===================\n\n")
		fmt.Fprintf(w, "Pods Checked: %d\n", report.PodsChecked)
		fmt.Fprintf(w, "Items Checked: %d\n\n", report.ItemsChecked)

		if report.Clean() {
			fmt.Fprintf(w, "✅ No divergence found\n")
			return
		}

		issues := report.Issues()
		fmt.Fprintf(w, "⚠️  Issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	})
}

func generate(config Config, filename string, result interface{}, text func(io.Writer)) error {
	switch strings.ToLower(config.Format) {
	case "", "text":
		text(config.writer())
		return nil
	case "json":
		return generateJSONOutput(result, filename, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateJSONOutput writes JSON to the output directory, or to Out when none is set
func generateJSONOutput(result interface{}, filename string, config Config) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.writer(), string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(config.OutputDir, filename)
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 JSON results saved to: %s\n", path)
	}
	return nil
}

func writePodTable(w io.Writer, pods []dto.PodSyncResult) {
	fmt.Fprintf(w, "%-15s %-8s %-8s %-8s %-8s %-8s\n",
		"Pod", "Items", "Bins", "Faces", "Written", "Attempts")
	fmt.Fprintf(w, "%-15s %-8s %-8s %-8s %-8s %-8s\n",
		"---------------", "--------", "--------", "--------", "--------", "--------")
	for _, p := range pods {
		fmt.Fprintf(w, "%-15s %-8d %-8d %-8d %-8t %-8d\n",
			p.Barcode, p.ItemsSynced, p.BinsProcessed, p.FacesProcessed, p.Written, p.Attempts)
	}
	fmt.Fprintln(w)
}

func writeFailures(w io.Writer, title string, failures []entities.UnitError) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, f := range failures {
		fmt.Fprintf(w, "  %s: %s\n", f.Unit, f.Error)
	}
	fmt.Fprintln(w)
}
