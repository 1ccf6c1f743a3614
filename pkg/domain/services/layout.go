package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

// BinSeparator joins the face letter and the column/row address of a bin id
const BinSeparator = "_bin_"

// BinSpec describes one generated bin slot
type BinSpec struct {
	BinID   string `json:"binId"`
	Display string `json:"display"`
	Row     string `json:"row"`
	Column  int    `json:"column"`
}

// Grid is the rows x columns shape of a face
type Grid struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Bins returns the number of slots in the grid
func (g Grid) Bins() int {
	return g.Rows * g.Columns
}

// layoutTable is the fixed (rows, columns) lookup per pod type and face
var layoutTable = map[entities.PodType]map[string]Grid{
	"H8": {
		"A": {Rows: 8, Columns: 4},
		"B": {Rows: 8, Columns: 1},
		"C": {Rows: 8, Columns: 4},
		"D": {Rows: 8, Columns: 1},
	},
	"H10": {
		"A": {Rows: 10, Columns: 4},
		"B": {Rows: 10, Columns: 2},
		"C": {Rows: 10, Columns: 4},
		"D": {Rows: 10, Columns: 2},
	},
	"H11": {
		"A": {Rows: 13, Columns: 4},
		"B": {Rows: 13, Columns: 2},
		"C": {Rows: 13, Columns: 4},
		"D": {Rows: 13, Columns: 2},
	},
	"H12": {
		"A": {Rows: 12, Columns: 3},
		"B": {Rows: 12, Columns: 3},
		"C": {Rows: 12, Columns: 3},
		"D": {Rows: 12, Columns: 3},
	},
}

// LookupGrid returns the grid for a pod type and face
func LookupGrid(podType entities.PodType, face string) (Grid, error) {
	faces, ok := layoutTable[normalizePodType(podType)]
	if !ok {
		return Grid{}, fmt.Errorf("pod type %q: %w", podType, entities.ErrInvalidLayout)
	}
	grid, ok := faces[entities.NormalizeFaceLetter(face)]
	if !ok {
		return Grid{}, fmt.Errorf("pod type %q face %q: %w", podType, face, entities.ErrInvalidLayout)
	}
	return grid, nil
}

// GenerateLayout returns the bin slots of a face. Rows are emitted last row
// first so the first physical row renders at the visual bottom; columns are
// ascending within a row. Use SortStructural when structural order matters.
func GenerateLayout(podType entities.PodType, face string) ([]BinSpec, error) {
	grid, err := LookupGrid(podType, face)
	if err != nil {
		return nil, err
	}

	faceLetter := strings.ToLower(entities.NormalizeFaceLetter(face))
	rows := RowLetters(grid.Rows)

	specs := make([]BinSpec, 0, grid.Bins())
	for r := len(rows) - 1; r >= 0; r-- {
		row := rows[r]
		for col := 1; col <= grid.Columns; col++ {
			specs = append(specs, BinSpec{
				BinID:   BinID(faceLetter, col, row),
				Display: strings.ToUpper(row) + strconv.Itoa(col),
				Row:     row,
				Column:  col,
			})
		}
	}
	return specs, nil
}

// BinID forms the canonical identifier, e.g. face "a", column 1, row "a" -> a_bin_1a
func BinID(face string, column int, row string) string {
	return strings.ToLower(face) + BinSeparator + strconv.Itoa(column) + strings.ToLower(row)
}

// RowLetters returns n lowercase row letters starting at "a"
func RowLetters(n int) []string {
	letters := make([]string, 0, n)
	for i := 0; i < n; i++ {
		letters = append(letters, string(rune('a'+i)))
	}
	return letters
}

// SortStructural orders specs by row ascending, then column ascending
func SortStructural(specs []BinSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Row != specs[j].Row {
			return specs[i].Row < specs[j].Row
		}
		return specs[i].Column < specs[j].Column
	})
}

// LayoutTypes returns the known pod types in sorted order
func LayoutTypes() []entities.PodType {
	types := make([]entities.PodType, 0, len(layoutTable))
	for t := range layoutTable {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// LayoutFaces returns the faces defined for a pod type in letter order
func LayoutFaces(podType entities.PodType) []string {
	faces := make([]string, 0, entities.MaxFaces)
	for f := range layoutTable[normalizePodType(podType)] {
		faces = append(faces, f)
	}
	sort.Strings(faces)
	return faces
}

func normalizePodType(podType entities.PodType) entities.PodType {
	return entities.PodType(strings.ToUpper(strings.TrimSpace(string(podType))))
}
