package dto

import (
	"encoding/json"
	"time"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

// PodSyncResult contains the outcome of synchronizing one pod
type PodSyncResult struct {
	Barcode        string `json:"podBarcode"`
	ItemsSynced    int    `json:"itemsSynced"`
	BinsProcessed  int    `json:"binsProcessed"`
	FacesProcessed int    `json:"facesProcessed"`
	Written        bool   `json:"written"`
	Attempts       int    `json:"attempts"`
}

// SyncAllResult aggregates a synchronization pass over every pod
type SyncAllResult struct {
	RunID            string               `json:"runId"`
	TotalPods        int                  `json:"totalPods"`
	TotalItemsSynced int                  `json:"totalItemsSynced"`
	TotalErrors      int                  `json:"totalErrors"`
	ErrorDetails     []entities.UnitError `json:"errorDetails"`
	Pods             []PodSyncResult      `json:"pods"`
	StartedAt        time.Time            `json:"startedAt"`
	Duration         time.Duration        `json:"duration"`
}

// Err returns a *entities.PartialFailure when at least one pod failed
func (r *SyncAllResult) Err() error {
	if len(r.ErrorDetails) == 0 {
		return nil
	}
	return &entities.PartialFailure{Op: "sync all", Failures: r.ErrorDetails}
}

// LocatedItem is a flat item with its structural location attached. Location
// is nil when no bin carries the item's UBinID.
type LocatedItem struct {
	entities.Item `bson:",inline"`
	Location      *entities.BinLocation `json:"location"`
}

// FeedRow is one raw row of a bulk inventory feed
type FeedRow struct {
	Line               int    `json:"line,omitempty"`
	StockCode          string `json:"stockCode"`
	LocationKeyRaw     string `json:"locationKeyRaw"`
	LocationBarcodeRaw string `json:"locationBarcodeRaw"`
}

// UnmarshalJSON also accepts the column names used by feed exports:
// uBinId/locationKey for the location key and podBarcode/locationBarcode
// for the location barcode
func (r *FeedRow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Line               int    `json:"line"`
		StockCode          string `json:"stockCode"`
		LocationKeyRaw     string `json:"locationKeyRaw"`
		LocationBarcodeRaw string `json:"locationBarcodeRaw"`
		UBinID             string `json:"uBinId"`
		LocationKey        string `json:"locationKey"`
		PodBarcode         string `json:"podBarcode"`
		LocationBarcode    string `json:"locationBarcode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = FeedRow{
		Line:               raw.Line,
		StockCode:          raw.StockCode,
		LocationKeyRaw:     firstNonEmpty(raw.LocationKeyRaw, raw.UBinID, raw.LocationKey),
		LocationBarcodeRaw: firstNonEmpty(raw.LocationBarcodeRaw, raw.PodBarcode, raw.LocationBarcode),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ReconcileResult contains the outcome of reconciling a feed batch.
// Processed + Skipped always equals the number of input rows.
type ReconcileResult struct {
	Processed int                  `json:"processed"`
	Skipped   int                  `json:"skipped"`
	Inserted  int                  `json:"inserted"`
	Updated   int                  `json:"updated"`
	Unchanged int                  `json:"unchanged"`
	Failures  []entities.UnitError `json:"failures"`
}

// Err returns a *entities.PartialFailure when at least one row failed
func (r *ReconcileResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &entities.PartialFailure{Op: "reconcile", Failures: r.Failures}
}
