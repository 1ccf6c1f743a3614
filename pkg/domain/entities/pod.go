package entities

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// BarcodePrefix is the fixed prefix every pod barcode carries
	BarcodePrefix = "HB"
	// MaxFaces is the number of sides a pod can expose
	MaxFaces = 4
	// MaxBinsPerFace bounds the bin grid of a single face
	MaxBinsPerFace = 52
)

var barcodePattern = regexp.MustCompile(`^HB\d{11}$`)

// PodType is the layout key used by the bin layout generator
type PodType string

// Classification is the size tier of a pod
type Classification string

const (
	ClassSmall      Classification = "small"
	ClassMedium     Classification = "medium"
	ClassLarge      Classification = "large"
	ClassExtraLarge Classification = "x-large"
)

// Valid reports whether c belongs to the closed set of size tiers
func (c Classification) Valid() bool {
	switch c {
	case ClassSmall, ClassMedium, ClassLarge, ClassExtraLarge:
		return true
	default:
		return false
	}
}

// PodStatus is the lifecycle status of a pod
type PodStatus string

const (
	PodInProgress PodStatus = "in progress"
	PodCompleted  PodStatus = "completed"
)

// Valid reports whether s is a known lifecycle status
func (s PodStatus) Valid() bool {
	return s == PodInProgress || s == PodCompleted
}

// BinItem is the read-optimized projection of an item embedded in a bin
type BinItem struct {
	StockCode string     `json:"stockCode" bson:"stockCode"`
	Status    ItemStatus `json:"status" bson:"status"`
}

// Bin is an addressable slot within a face. Items is derived data written
// only by the synchronization engine.
type Bin struct {
	BinID        string    `json:"binId" bson:"binId"`
	UBinID       string    `json:"uBinId,omitempty" bson:"uBinId,omitempty"`
	BinItemCount int       `json:"binItemCount" bson:"binItemCount"`
	Validated    bool      `json:"validated" bson:"validated"`
	Items        []BinItem `json:"items" bson:"items"`
}

// Face is one side of a pod
type Face struct {
	Letter              string `json:"face" bson:"face"`
	CapacityUtilization string `json:"capacityUtilization" bson:"capacityUtilization"`
	FaceItemTotal       int    `json:"faceItemTotal" bson:"faceItemTotal"`
	Bins                []Bin  `json:"bins" bson:"bins"`
}

// Pod is the denormalized hierarchical snapshot of one storage unit
type Pod struct {
	Barcode        string         `json:"podBarcode" bson:"podBarcode"`
	Name           string         `json:"podName" bson:"podName"`
	Type           PodType        `json:"podType" bson:"podType"`
	Classification Classification `json:"classification" bson:"classification"`
	Status         PodStatus      `json:"status" bson:"status"`
	Faces          []Face         `json:"faces" bson:"faces"`
	Version        int64          `json:"version" bson:"version"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// BinLocation is the minimal pod/face/bin descriptor attached to resolved items
type BinLocation struct {
	PodBarcode   string `json:"podBarcode" bson:"podBarcode"`
	FaceLetter   string `json:"face" bson:"face"`
	BinID        string `json:"binId" bson:"binId"`
	UBinID       string `json:"uBinId" bson:"uBinId"`
	BinItemCount int    `json:"binItemCount" bson:"binItemCount"`
}

// ValidBarcode reports whether barcode has the HB prefix followed by 11 digits
func ValidBarcode(barcode string) bool {
	return barcodePattern.MatchString(barcode)
}

// NormalizeFaceLetter upper-cases and trims a face letter
func NormalizeFaceLetter(face string) string {
	return strings.ToUpper(strings.TrimSpace(face))
}

// Face returns the face with the given letter
func (p *Pod) Face(letter string) (*Face, bool) {
	letter = NormalizeFaceLetter(letter)
	for i := range p.Faces {
		if p.Faces[i].Letter == letter {
			return &p.Faces[i], true
		}
	}
	return nil, false
}

// UBinIDs returns every non-empty location key in face-then-bin order
func (p *Pod) UBinIDs() []string {
	var ids []string
	for _, face := range p.Faces {
		for _, bin := range face.Bins {
			if bin.UBinID != "" {
				ids = append(ids, bin.UBinID)
			}
		}
	}
	return ids
}

// Clone returns a deep copy so callers can mutate without touching stored state
func (p *Pod) Clone() *Pod {
	cp := *p
	cp.Faces = make([]Face, len(p.Faces))
	for i, face := range p.Faces {
		cp.Faces[i] = face
		cp.Faces[i].Bins = make([]Bin, len(face.Bins))
		for j, bin := range face.Bins {
			cp.Faces[i].Bins[j] = bin
			if bin.Items != nil {
				cp.Faces[i].Bins[j].Items = append([]BinItem(nil), bin.Items...)
			}
		}
	}
	return &cp
}

// Validate checks structural invariants plus the derived count invariants
// that hold after every synchronization pass.
func (p *Pod) Validate() error {
	if err := p.ValidateStructure(); err != nil {
		return err
	}
	for _, face := range p.Faces {
		if err := face.CheckTotals(); err != nil {
			return fmt.Errorf("pod %s: %w", p.Barcode, err)
		}
	}
	return nil
}

// ValidateStructure checks identifiers and bounds only. Derived counts are
// not checked because synchronization rewrites them.
func (p *Pod) ValidateStructure() error {
	if !ValidBarcode(p.Barcode) {
		return Validationf("invalid pod barcode %q", p.Barcode)
	}
	if p.Classification != "" && !p.Classification.Valid() {
		return Validationf("pod %s: invalid classification %q", p.Barcode, p.Classification)
	}
	if p.Status != "" && !p.Status.Valid() {
		return Validationf("pod %s: invalid status %q", p.Barcode, p.Status)
	}
	if len(p.Faces) > MaxFaces {
		return Validationf("pod %s: %d faces exceeds maximum of %d", p.Barcode, len(p.Faces), MaxFaces)
	}

	seenFaces := make(map[string]bool, len(p.Faces))
	for _, face := range p.Faces {
		if len(face.Letter) != 1 || face.Letter < "A" || face.Letter > "D" {
			return Validationf("pod %s: invalid face letter %q", p.Barcode, face.Letter)
		}
		if seenFaces[face.Letter] {
			return Validationf("pod %s: duplicate face %s", p.Barcode, face.Letter)
		}
		seenFaces[face.Letter] = true

		if err := face.ValidateStructure(); err != nil {
			return fmt.Errorf("pod %s: %w", p.Barcode, err)
		}
	}
	return nil
}

// ValidateStructure checks bin count bounds and bin id uniqueness
func (f *Face) ValidateStructure() error {
	if len(f.Bins) > MaxBinsPerFace {
		return Validationf("face %s: %d bins exceeds maximum of %d", f.Letter, len(f.Bins), MaxBinsPerFace)
	}
	if f.CapacityUtilization != "" && !strings.HasSuffix(f.CapacityUtilization, "%") {
		return Validationf("face %s: capacity utilization %q must end with %%", f.Letter, f.CapacityUtilization)
	}

	seenBins := make(map[string]bool, len(f.Bins))
	for _, bin := range f.Bins {
		if bin.BinID == "" {
			return Validationf("face %s: bin id cannot be empty", f.Letter)
		}
		if seenBins[bin.BinID] {
			return Validationf("face %s: duplicate bin %s", f.Letter, bin.BinID)
		}
		seenBins[bin.BinID] = true
	}
	return nil
}

// CheckTotals verifies binItemCount against embedded items and the face total
// against the bin sum
func (f *Face) CheckTotals() error {
	total := 0
	for _, bin := range f.Bins {
		if bin.BinItemCount < 0 {
			return Validationf("bin %s: item count cannot be negative, got %d", bin.BinID, bin.BinItemCount)
		}
		if bin.BinItemCount != len(bin.Items) {
			return Validationf("bin %s: item count %d does not match %d embedded items", bin.BinID, bin.BinItemCount, len(bin.Items))
		}
		total += bin.BinItemCount
	}
	if f.FaceItemTotal != total {
		return Validationf("face %s: total %d does not match bin sum %d", f.Letter, f.FaceItemTotal, total)
	}
	return nil
}

// RecomputeTotals derives FaceItemTotal and CapacityUtilization from the bins
func (f *Face) RecomputeTotals() {
	total := 0
	occupied := 0
	for _, bin := range f.Bins {
		total += bin.BinItemCount
		if bin.BinItemCount > 0 {
			occupied++
		}
	}
	f.FaceItemTotal = total
	f.CapacityUtilization = Utilization(occupied, len(f.Bins))
}

// Utilization formats occupied/capacity as a percentage with one decimal place
func Utilization(occupied, capacity int) string {
	if capacity <= 0 {
		return "0%"
	}
	pct := decimal.NewFromInt(int64(occupied)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(1)
	return pct.String() + "%"
}
