package testing

import (
	"fmt"
	"strings"

	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/services"
	"github.com/vsinha/podsync/pkg/infrastructure/repositories/memory"
)

// Barcodes of the pods in the warehouse scenario
const (
	PodAlpha = "HB10000000001"
	PodBravo = "HB10000000002"
)

// UBinID returns the location key the fixtures assign to a bin
func UBinID(barcode, binID string) string {
	return fmt.Sprintf("U-%s-%s", barcode[len(barcode)-4:], strings.ToUpper(binID))
}

// BuildLayoutPod builds a pod with the given faces generated from the layout
// table. Every bin gets a fixture location key and an empty item list.
func BuildLayoutPod(barcode string, podType entities.PodType, faces ...string) *entities.Pod {
	pod := &entities.Pod{
		Barcode:        barcode,
		Name:           "Pod " + barcode[len(barcode)-4:],
		Type:           podType,
		Classification: entities.ClassMedium,
		Status:         entities.PodInProgress,
		Faces:          make([]entities.Face, 0, len(faces)),
	}

	for _, letter := range faces {
		specs, err := services.GenerateLayout(podType, letter)
		if err != nil {
			panic(err)
		}
		services.SortStructural(specs)

		face := entities.Face{Letter: entities.NormalizeFaceLetter(letter), Bins: make([]entities.Bin, 0, len(specs))}
		for _, spec := range specs {
			face.Bins = append(face.Bins, entities.Bin{
				BinID:  spec.BinID,
				UBinID: UBinID(barcode, spec.BinID),
				Items:  []entities.BinItem{},
			})
		}
		face.RecomputeTotals()
		pod.Faces = append(pod.Faces, face)
	}
	return pod
}

// BuildWarehouseTestData builds two pods and a handful of items stowed in
// them, plus one item whose location key matches no bin
func BuildWarehouseTestData() (*memory.ItemRepository, *memory.PodRepository) {
	itemRepo := memory.NewItemRepository(10)
	podRepo := memory.NewPodRepository()

	podRepo.LoadPods([]*entities.Pod{
		BuildLayoutPod(PodAlpha, "H8", "A", "B"),
		BuildLayoutPod(PodBravo, "H10", "A", "C"),
	})

	items := []*entities.Item{
		{StockCode: "STK-001", UBinID: UBinID(PodAlpha, "a_bin_1a"), Status: entities.StatusAvailable, Quantity: 1},
		{StockCode: "STK-002", UBinID: UBinID(PodAlpha, "a_bin_2a"), Status: entities.StatusMissing, Quantity: 1},
		{StockCode: "STK-003", UBinID: UBinID(PodAlpha, "b_bin_1c"), Status: entities.StatusAvailable, Quantity: 2},
		{StockCode: "STK-004", UBinID: UBinID(PodBravo, "a_bin_4j"), Status: entities.StatusHunting, Quantity: 1},
		{StockCode: "STK-005", UBinID: UBinID(PodBravo, "c_bin_1a"), Status: entities.StatusAvailable, Quantity: 1},
		{StockCode: "STK-900", UBinID: "U-ORPHAN", Status: entities.StatusAvailable, Quantity: 1},
	}
	if err := itemRepo.LoadItems(items); err != nil {
		panic(err)
	}

	return itemRepo, podRepo
}
