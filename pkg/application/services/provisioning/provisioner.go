package provisioning

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
	"github.com/vsinha/podsync/pkg/domain/services"
	"github.com/vsinha/podsync/pkg/infrastructure/events"
)

// PodRequest describes a pod to provision from the layout table
type PodRequest struct {
	Barcode        string                  `json:"podBarcode"`
	Name           string                  `json:"podName"`
	Type           entities.PodType        `json:"podType"`
	Classification entities.Classification `json:"classification"`
	Faces          []string                `json:"faces"`
	// UBinIDs maps bin ids to caller-assigned location keys
	UBinIDs map[string]string `json:"uBinIds,omitempty"`
	// GenerateUBinIDs assigns a random location key to every bin the caller
	// left unassigned
	GenerateUBinIDs bool `json:"generateUBinIds,omitempty"`
}

// Provisioner creates pod documents whose bins follow the layout table
type Provisioner struct {
	podRepo   repositories.PodRepository
	publisher events.Publisher
	logger    *log.Logger

	newID func() string
}

// NewProvisioner creates a new pod provisioner
func NewProvisioner(podRepo repositories.PodRepository, publisher events.Publisher, logger *log.Logger) *Provisioner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Provisioner{
		podRepo:   podRepo,
		publisher: publisher,
		logger:    logger,
		newID:     func() string { return uuid.New().String() },
	}
}

// Build turns a request into a pod document without touching the store
func (p *Provisioner) Build(req PodRequest) (*entities.Pod, error) {
	if len(req.Faces) == 0 {
		req.Faces = services.LayoutFaces(entities.PodType(strings.ToUpper(string(req.Type))))
	}
	if len(req.Faces) == 0 {
		return nil, fmt.Errorf("pod type %q: %w", req.Type, entities.ErrInvalidLayout)
	}

	pod := &entities.Pod{
		Barcode:        strings.TrimSpace(req.Barcode),
		Name:           req.Name,
		Type:           entities.PodType(strings.ToUpper(strings.TrimSpace(string(req.Type)))),
		Classification: req.Classification,
		Status:         entities.PodInProgress,
		Faces:          make([]entities.Face, 0, len(req.Faces)),
	}

	used := make(map[string]bool)
	assigned := 0
	for _, letter := range req.Faces {
		specs, err := services.GenerateLayout(pod.Type, letter)
		if err != nil {
			return nil, err
		}
		services.SortStructural(specs)

		face := entities.Face{
			Letter: entities.NormalizeFaceLetter(letter),
			Bins:   make([]entities.Bin, 0, len(specs)),
		}
		for _, spec := range specs {
			uBinID := strings.TrimSpace(req.UBinIDs[spec.BinID])
			if uBinID == "" && req.GenerateUBinIDs {
				uBinID = p.newID()
			}
			if uBinID != "" {
				if used[uBinID] {
					return nil, fmt.Errorf("uBinId %s assigned twice in pod %s: %w", uBinID, pod.Barcode, entities.ErrDuplicateKey)
				}
				used[uBinID] = true
				assigned++
			}
			face.Bins = append(face.Bins, entities.Bin{
				BinID:  spec.BinID,
				UBinID: uBinID,
				Items:  []entities.BinItem{},
			})
		}
		face.RecomputeTotals()
		pod.Faces = append(pod.Faces, face)
	}

	if unknown := len(req.UBinIDs) - countKnown(pod, req.UBinIDs); unknown > 0 {
		return nil, entities.Validationf("%d uBinId assignment(s) name bins outside the layout", unknown)
	}

	if err := pod.Validate(); err != nil {
		return nil, err
	}
	return pod, nil
}

// Provision builds the pod, rejects location keys already carried by a stored
// bin, and inserts it
func (p *Provisioner) Provision(ctx context.Context, req PodRequest) (*entities.Pod, error) {
	pod, err := p.Build(req)
	if err != nil {
		return nil, err
	}

	for _, uBinID := range pod.UBinIDs() {
		matches, err := p.podRepo.LocateBin(ctx, uBinID)
		if err != nil {
			return nil, fmt.Errorf("failed to check uBinId %s: %w", uBinID, err)
		}
		if len(matches) > 0 {
			return nil, fmt.Errorf("uBinId %s already used by %s/%s: %w",
				uBinID, matches[0].PodBarcode, matches[0].BinID, entities.ErrDuplicateKey)
		}
	}

	if err := p.podRepo.Create(ctx, pod); err != nil {
		return nil, err
	}

	bins := 0
	for _, face := range pod.Faces {
		bins += len(face.Bins)
	}
	event := events.NewEvent(events.PodCreatedEvent, pod.Barcode, events.PodCreated{
		Barcode: pod.Barcode,
		PodType: string(pod.Type),
		Bins:    bins,
	})
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Printf("Warning: failed to publish pod created event: %v", err)
	}

	return pod, nil
}

func countKnown(pod *entities.Pod, assignments map[string]string) int {
	known := 0
	for _, face := range pod.Faces {
		for _, bin := range face.Bins {
			if _, ok := assignments[bin.BinID]; ok {
				known++
			}
		}
	}
	return known
}
