package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
)

// LocateBinLimit is the number of matches LocateBin stops at
const LocateBinLimit = 2

// PodRepository provides in-memory pod document storage
type PodRepository struct {
	pods  map[string]*entities.Pod
	mutex sync.RWMutex

	Now func() time.Time
}

// NewPodRepository creates a new in-memory pod repository
func NewPodRepository() *PodRepository {
	return &PodRepository{
		pods: make(map[string]*entities.Pod),
		Now:  time.Now,
	}
}

// Verify interface compliance
var _ repositories.PodRepository = (*PodRepository)(nil)

// LoadPods stores pod documents as-is, without validation, the way a shared
// document store can hold documents written by other systems
func (r *PodRepository) LoadPods(pods []*entities.Pod) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, pod := range pods {
		r.pods[pod.Barcode] = pod.Clone()
	}
}

func (r *PodRepository) Create(ctx context.Context, pod *entities.Pod) error {
	if err := pod.ValidateStructure(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.pods[pod.Barcode]; exists {
		return fmt.Errorf("pod %s: %w", pod.Barcode, entities.ErrDuplicateKey)
	}

	stored := pod.Clone()
	stored.Version = 1
	stored.UpdatedAt = r.Now()
	r.pods[pod.Barcode] = stored

	pod.Version = stored.Version
	pod.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *PodRepository) Get(ctx context.Context, barcode string) (*entities.Pod, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	pod, exists := r.pods[barcode]
	if !exists {
		return nil, fmt.Errorf("pod %s: %w", barcode, entities.ErrNotFound)
	}
	return pod.Clone(), nil
}

func (r *PodRepository) Save(ctx context.Context, pod *entities.Pod) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, exists := r.pods[pod.Barcode]
	if !exists {
		return fmt.Errorf("pod %s: %w", pod.Barcode, entities.ErrNotFound)
	}
	if current.Version != pod.Version {
		return fmt.Errorf("pod %s at version %d, stored %d: %w",
			pod.Barcode, pod.Version, current.Version, entities.ErrVersionConflict)
	}

	stored := pod.Clone()
	stored.Version = current.Version + 1
	stored.UpdatedAt = r.Now()
	r.pods[pod.Barcode] = stored

	pod.Version = stored.Version
	pod.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *PodRepository) Delete(ctx context.Context, barcode string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.pods[barcode]; !exists {
		return fmt.Errorf("pod %s: %w", barcode, entities.ErrNotFound)
	}
	delete(r.pods, barcode)
	return nil
}

func (r *PodRepository) Barcodes(ctx context.Context) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.barcodesLocked(), nil
}

func (r *PodRepository) LocateBin(ctx context.Context, uBinID string) ([]entities.BinLocation, error) {
	if uBinID == "" {
		return []entities.BinLocation{}, nil
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	matches := make([]entities.BinLocation, 0, LocateBinLimit)
	for _, barcode := range r.barcodesLocked() {
		pod := r.pods[barcode]
		for _, face := range pod.Faces {
			for _, bin := range face.Bins {
				if bin.UBinID != uBinID {
					continue
				}
				matches = append(matches, entities.BinLocation{
					PodBarcode:   pod.Barcode,
					FaceLetter:   face.Letter,
					BinID:        bin.BinID,
					UBinID:       bin.UBinID,
					BinItemCount: bin.BinItemCount,
				})
				if len(matches) == LocateBinLimit {
					return matches, nil
				}
			}
		}
	}
	return matches, nil
}

func (r *PodRepository) barcodesLocked() []string {
	barcodes := make([]string, 0, len(r.pods))
	for barcode := range r.pods {
		barcodes = append(barcodes, barcode)
	}
	sort.Strings(barcodes)
	return barcodes
}
