package entities

import (
	"errors"
	"fmt"
	"testing"
)

func validPod() *Pod {
	return &Pod{
		Barcode:        "HB10000000001",
		Name:           "Pod 1",
		Type:           "H10",
		Classification: ClassMedium,
		Status:         PodInProgress,
		Faces: []Face{
			{
				Letter:              "A",
				CapacityUtilization: "50%",
				FaceItemTotal:       1,
				Bins: []Bin{
					{BinID: "a_bin_1a", UBinID: "U-1", BinItemCount: 1, Items: []BinItem{{StockCode: "S1", Status: StatusAvailable}}},
					{BinID: "a_bin_2a", UBinID: "U-2", Items: []BinItem{}},
				},
			},
		},
	}
}

func TestValidBarcode(t *testing.T) {
	tests := []struct {
		barcode  string
		expected bool
	}{
		{"HB12345678901", true},
		{"HB1234567890", false},
		{"HB123456789012", false},
		{"hb12345678901", false},
		{"XB12345678901", false},
		{"HB1234567890A", false},
	}

	for _, tt := range tests {
		if got := ValidBarcode(tt.barcode); got != tt.expected {
			t.Errorf("ValidBarcode(%s) = %v, want %v", tt.barcode, got, tt.expected)
		}
	}
}

func TestPod_Validate(t *testing.T) {
	if err := validPod().Validate(); err != nil {
		t.Fatalf("Expected valid pod, got %v", err)
	}

	testCases := []struct {
		name   string
		mutate func(p *Pod)
	}{
		{"bad barcode", func(p *Pod) { p.Barcode = "HB1" }},
		{"bad classification", func(p *Pod) { p.Classification = "huge" }},
		{"bad status", func(p *Pod) { p.Status = "archived" }},
		{"bad face letter", func(p *Pod) { p.Faces[0].Letter = "E" }},
		{"duplicate face", func(p *Pod) { p.Faces = append(p.Faces, p.Faces[0]) }},
		{"too many faces", func(p *Pod) {
			p.Faces = []Face{{Letter: "A"}, {Letter: "B"}, {Letter: "C"}, {Letter: "D"}, {Letter: "A"}}
		}},
		{"duplicate bin", func(p *Pod) { p.Faces[0].Bins[1].BinID = "a_bin_1a" }},
		{"utilization suffix", func(p *Pod) { p.Faces[0].CapacityUtilization = "50" }},
		{"count mismatch", func(p *Pod) { p.Faces[0].Bins[0].BinItemCount = 2 }},
		{"total mismatch", func(p *Pod) { p.Faces[0].FaceItemTotal = 3 }},
		{"too many bins", func(p *Pod) {
			bins := make([]Bin, MaxBinsPerFace+1)
			for i := range bins {
				bins[i] = Bin{BinID: fmt.Sprintf("a_bin_%d", i)}
			}
			p.Faces[0].Bins = bins
			p.Faces[0].FaceItemTotal = 0
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pod := validPod()
			tc.mutate(pod)
			err := pod.Validate()
			if err == nil {
				t.Fatalf("Expected validation error for %s", tc.name)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestPod_ValidateStructureIgnoresStaleCounts(t *testing.T) {
	pod := validPod()
	pod.Faces[0].FaceItemTotal = 42
	pod.Faces[0].Bins[1].BinItemCount = 7

	if err := pod.ValidateStructure(); err != nil {
		t.Errorf("Expected stale derived counts to pass structural validation, got %v", err)
	}
	if err := pod.Validate(); err == nil {
		t.Error("Expected full validation to reject stale counts")
	}
}

func TestPod_CloneIsDeep(t *testing.T) {
	pod := validPod()
	clone := pod.Clone()

	clone.Faces[0].Bins[0].Items[0].StockCode = "CHANGED"
	clone.Faces[0].Bins[0].UBinID = "U-X"
	clone.Faces[0].Letter = "B"

	if pod.Faces[0].Bins[0].Items[0].StockCode != "S1" {
		t.Error("Expected clone item mutation not to affect original")
	}
	if pod.Faces[0].Bins[0].UBinID != "U-1" {
		t.Error("Expected clone bin mutation not to affect original")
	}
	if pod.Faces[0].Letter != "A" {
		t.Error("Expected clone face mutation not to affect original")
	}
}

func TestPod_FaceAndUBinIDs(t *testing.T) {
	pod := validPod()

	face, ok := pod.Face(" a ")
	if !ok || face.Letter != "A" {
		t.Fatalf("Expected to find face A")
	}
	if _, ok := pod.Face("D"); ok {
		t.Error("Expected face D to be absent")
	}

	ids := pod.UBinIDs()
	if len(ids) != 2 || ids[0] != "U-1" || ids[1] != "U-2" {
		t.Errorf("Expected [U-1 U-2], got %v", ids)
	}
}

func TestFace_RecomputeTotals(t *testing.T) {
	face := Face{
		Letter: "B",
		Bins: []Bin{
			{BinID: "b_bin_1a", BinItemCount: 2},
			{BinID: "b_bin_1b", BinItemCount: 0},
			{BinID: "b_bin_1c", BinItemCount: 1},
		},
	}

	face.RecomputeTotals()

	if face.FaceItemTotal != 3 {
		t.Errorf("Expected total 3, got %d", face.FaceItemTotal)
	}
	if face.CapacityUtilization != "66.7%" {
		t.Errorf("Expected utilization 66.7%%, got %s", face.CapacityUtilization)
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		occupied int
		capacity int
		expected string
	}{
		{0, 0, "0%"},
		{0, 8, "0%"},
		{3, 8, "37.5%"},
		{8, 8, "100%"},
		{1, 3, "33.3%"},
	}

	for _, tt := range tests {
		if got := Utilization(tt.occupied, tt.capacity); got != tt.expected {
			t.Errorf("Utilization(%d, %d) = %s, want %s", tt.occupied, tt.capacity, got, tt.expected)
		}
	}
}

func TestPartialFailure_Error(t *testing.T) {
	pf := &PartialFailure{
		Op: "sync all",
		Failures: []UnitError{
			{Unit: "HB00000000001", Error: "boom"},
			{Unit: "HB00000000002", Error: "bang"},
		},
	}

	expected := "sync all: 2 unit(s) failed: HB00000000001, HB00000000002"
	if pf.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, pf.Error())
	}

	var target *PartialFailure
	if !errors.As(fmt.Errorf("wrapped: %w", pf), &target) {
		t.Error("Expected errors.As to unwrap PartialFailure")
	}
}
