package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

// IntegrityChecker compares the pod structures against the flat item store
// and reports divergence. It never repairs anything.
type IntegrityChecker struct{}

// NewIntegrityChecker creates a new integrity checker
func NewIntegrityChecker() *IntegrityChecker {
	return &IntegrityChecker{}
}

// BinRef identifies a bin inside a pod
type BinRef struct {
	PodBarcode string `json:"podBarcode"`
	FaceLetter string `json:"face"`
	BinID      string `json:"binId"`
}

func (b BinRef) String() string {
	return fmt.Sprintf("%s/%s/%s", b.PodBarcode, b.FaceLetter, b.BinID)
}

// DuplicateLocation is a location key carried by more than one bin
type DuplicateLocation struct {
	UBinID string   `json:"uBinId"`
	Bins   []BinRef `json:"bins"`
}

// StaleBin is a bin whose embedded items differ from the item store
type StaleBin struct {
	Bin      BinRef   `json:"bin"`
	UBinID   string   `json:"uBinId"`
	Embedded []entities.BinItem `json:"embedded"`
	Expected []entities.BinItem `json:"expected"`
}

// IntegrityReport contains the results of an integrity check
type IntegrityReport struct {
	PodsChecked      int                 `json:"podsChecked"`
	ItemsChecked     int                 `json:"itemsChecked"`
	DuplicateUBinIDs []DuplicateLocation `json:"duplicateUBinIds"`
	StaleBins        []StaleBin          `json:"staleBins"`
	UnplacedItems    []string            `json:"unplacedItems"`
	CountMismatches  []string            `json:"countMismatches"`
	StructuralErrors []string            `json:"structuralErrors"`
}

// Clean reports whether no divergence was found
func (r *IntegrityReport) Clean() bool {
	return len(r.DuplicateUBinIDs) == 0 &&
		len(r.StaleBins) == 0 &&
		len(r.UnplacedItems) == 0 &&
		len(r.CountMismatches) == 0 &&
		len(r.StructuralErrors) == 0
}

// Issues returns a flat, human-readable list of findings
func (r *IntegrityReport) Issues() []string {
	issues := make([]string, 0)
	for _, d := range r.DuplicateUBinIDs {
		issues = append(issues, fmt.Sprintf("uBinId %s is carried by %d bins: %v", d.UBinID, len(d.Bins), d.Bins))
	}
	for _, s := range r.StaleBins {
		issues = append(issues, fmt.Sprintf("bin %s embeds %s, item store has %s", s.Bin, formatBinItems(s.Embedded), formatBinItems(s.Expected)))
	}
	for _, code := range r.UnplacedItems {
		issues = append(issues, fmt.Sprintf("item %s has no matching bin", code))
	}
	issues = append(issues, r.CountMismatches...)
	issues = append(issues, r.StructuralErrors...)
	return issues
}

// Check builds the report from full snapshots of both stores
func (c *IntegrityChecker) Check(pods []*entities.Pod, items []*entities.Item) *IntegrityReport {
	report := &IntegrityReport{
		PodsChecked:      len(pods),
		ItemsChecked:     len(items),
		DuplicateUBinIDs: make([]DuplicateLocation, 0),
		StaleBins:        make([]StaleBin, 0),
		UnplacedItems:    make([]string, 0),
		CountMismatches:  make([]string, 0),
		StructuralErrors: make([]string, 0),
	}

	expected := make(map[string][]entities.BinItem)
	for _, item := range items {
		if item.UBinID == "" {
			continue
		}
		expected[item.UBinID] = append(expected[item.UBinID], item.BinItem())
	}

	binsByLocation := make(map[string][]BinRef)
	for _, pod := range pods {
		if err := pod.ValidateStructure(); err != nil {
			report.StructuralErrors = append(report.StructuralErrors, err.Error())
			continue
		}
		for _, face := range pod.Faces {
			if err := face.CheckTotals(); err != nil {
				report.CountMismatches = append(report.CountMismatches, fmt.Sprintf("pod %s: %v", pod.Barcode, err))
			}
			for _, bin := range face.Bins {
				if bin.UBinID == "" {
					continue
				}
				ref := BinRef{PodBarcode: pod.Barcode, FaceLetter: face.Letter, BinID: bin.BinID}
				binsByLocation[bin.UBinID] = append(binsByLocation[bin.UBinID], ref)

				embedded := append([]entities.BinItem{}, bin.Items...)
				want := append([]entities.BinItem{}, expected[bin.UBinID]...)
				if !sameItems(embedded, want) {
					report.StaleBins = append(report.StaleBins, StaleBin{
						Bin:      ref,
						UBinID:   bin.UBinID,
						Embedded: embedded,
						Expected: want,
					})
				}
			}
		}
	}

	for uBinID, refs := range binsByLocation {
		if len(refs) > 1 {
			report.DuplicateUBinIDs = append(report.DuplicateUBinIDs, DuplicateLocation{UBinID: uBinID, Bins: refs})
		}
	}
	sort.Slice(report.DuplicateUBinIDs, func(i, j int) bool {
		return report.DuplicateUBinIDs[i].UBinID < report.DuplicateUBinIDs[j].UBinID
	})

	for _, item := range items {
		if item.UBinID == "" {
			continue
		}
		if _, ok := binsByLocation[item.UBinID]; !ok {
			report.UnplacedItems = append(report.UnplacedItems, item.StockCode)
		}
	}
	sort.Strings(report.UnplacedItems)

	return report
}

// sameItems compares (stock code, status) pairs ignoring order
func sameItems(a, b []entities.BinItem) bool {
	if len(a) != len(b) {
		return false
	}
	sa := sortedBinItems(a)
	sb := sortedBinItems(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sortedBinItems(items []entities.BinItem) []entities.BinItem {
	sorted := append([]entities.BinItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StockCode != sorted[j].StockCode {
			return sorted[i].StockCode < sorted[j].StockCode
		}
		return sorted[i].Status < sorted[j].Status
	})
	return sorted
}

func formatBinItems(items []entities.BinItem) string {
	parts := make([]string, 0, len(items))
	for _, bi := range items {
		parts = append(parts, bi.StockCode+"/"+string(bi.Status))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
