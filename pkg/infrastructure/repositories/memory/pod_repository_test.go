package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

func testPod(barcode string, uBinIDs ...string) *entities.Pod {
	bins := make([]entities.Bin, 0, len(uBinIDs))
	for i, id := range uBinIDs {
		bins = append(bins, entities.Bin{BinID: "a_bin_" + string(rune('1'+i)) + "a", UBinID: id, Items: []entities.BinItem{}})
	}
	return &entities.Pod{
		Barcode: barcode,
		Type:    "H10",
		Faces:   []entities.Face{{Letter: "A", CapacityUtilization: "0%", Bins: bins}},
	}
}

func TestPodRepository_CreateGetSave(t *testing.T) {
	repo := NewPodRepository()
	ctx := context.Background()

	pod := testPod("HB00000000001", "U-1", "U-2")
	if err := repo.Create(ctx, pod); err != nil {
		t.Fatalf("Failed to create pod: %v", err)
	}
	if pod.Version != 1 {
		t.Errorf("Expected version 1 after create, got %d", pod.Version)
	}

	if err := repo.Create(ctx, testPod("HB00000000001")); !errors.Is(err, entities.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	loaded, err := repo.Get(ctx, "HB00000000001")
	if err != nil {
		t.Fatalf("Failed to get pod: %v", err)
	}
	loaded.Name = "renamed"
	if err := repo.Save(ctx, loaded); err != nil {
		t.Fatalf("Failed to save pod: %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("Expected version 2 after save, got %d", loaded.Version)
	}

	// a writer holding the old version loses
	stale := pod.Clone()
	if err := repo.Save(ctx, stale); !errors.Is(err, entities.ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict, got %v", err)
	}

	if _, err := repo.Get(ctx, "HB99999999999"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPodRepository_CreateRejectsMalformed(t *testing.T) {
	repo := NewPodRepository()
	if err := repo.Create(context.Background(), &entities.Pod{Barcode: "bad"}); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestPodRepository_LocateBin(t *testing.T) {
	repo := NewPodRepository()
	ctx := context.Background()

	repo.LoadPods([]*entities.Pod{
		testPod("HB00000000002", "U-DUP", "U-3"),
		testPod("HB00000000001", "U-1", "U-DUP"),
		testPod("HB00000000003", "U-DUP"),
	})

	matches, err := repo.LocateBin(ctx, "U-3")
	if err != nil {
		t.Fatalf("Failed to locate bin: %v", err)
	}
	if len(matches) != 1 || matches[0].PodBarcode != "HB00000000002" || matches[0].BinID != "a_bin_2a" {
		t.Errorf("Expected single match in HB00000000002/a_bin_2a, got %v", matches)
	}

	dup, _ := repo.LocateBin(ctx, "U-DUP")
	if len(dup) != LocateBinLimit {
		t.Fatalf("Expected %d matches, got %d", LocateBinLimit, len(dup))
	}
	if dup[0].PodBarcode != "HB00000000001" {
		t.Errorf("Expected first structural match in HB00000000001, got %s", dup[0].PodBarcode)
	}

	none, _ := repo.LocateBin(ctx, "U-404")
	if len(none) != 0 {
		t.Errorf("Expected no matches, got %v", none)
	}

	barcodes, _ := repo.Barcodes(ctx)
	if len(barcodes) != 3 || barcodes[0] != "HB00000000001" {
		t.Errorf("Expected sorted barcodes, got %v", barcodes)
	}
}
