package synchronization

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
	"github.com/vsinha/podsync/pkg/infrastructure/events"
)

// EngineConfig controls retry behaviour of the synchronization engine
type EngineConfig struct {
	// MaxAttempts bounds how many times a pod pass is retried after a
	// version conflict
	MaxAttempts int
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{MaxAttempts: 3}
}

// Engine rebuilds the embedded bin item lists of pods from the item store
type Engine struct {
	config    EngineConfig
	itemRepo  repositories.ItemRepository
	podRepo   repositories.PodRepository
	publisher events.Publisher
	logger    *log.Logger

	now func() time.Time
}

// NewEngine creates a synchronization engine with the default configuration
func NewEngine(
	itemRepo repositories.ItemRepository,
	podRepo repositories.PodRepository,
	publisher events.Publisher,
	logger *log.Logger,
) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig(), itemRepo, podRepo, publisher, logger)
}

// NewEngineWithConfig creates a synchronization engine
func NewEngineWithConfig(
	config EngineConfig,
	itemRepo repositories.ItemRepository,
	podRepo repositories.PodRepository,
	publisher events.Publisher,
	logger *log.Logger,
) *Engine {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		config:    config,
		itemRepo:  itemRepo,
		podRepo:   podRepo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SyncPod refreshes every bin of one pod from the item store. A version
// conflict on write re-runs the whole pass against the fresh document.
func (e *Engine) SyncPod(ctx context.Context, barcode string) (*dto.PodSyncResult, error) {
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, pod, err := e.syncOnce(ctx, barcode)
		if err == nil {
			result.Attempts = attempt
			if result.Written {
				e.publishPodSynced(ctx, result, pod.Version)
			}
			return result, nil
		}
		if !errors.Is(err, entities.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		e.logger.Printf("Pod %s changed during sync (attempt %d/%d), retrying", barcode, attempt, e.config.MaxAttempts)
	}
	return nil, fmt.Errorf("sync pod %s gave up after %d attempts: %w", barcode, e.config.MaxAttempts, lastErr)
}

func (e *Engine) syncOnce(ctx context.Context, barcode string) (*dto.PodSyncResult, *entities.Pod, error) {
	pod, err := e.podRepo.Get(ctx, barcode)
	if err != nil {
		return nil, nil, err
	}
	if err := pod.ValidateStructure(); err != nil {
		return nil, nil, err
	}

	result := &dto.PodSyncResult{Barcode: pod.Barcode}
	changed := false

	for fi := range pod.Faces {
		face := &pod.Faces[fi]
		result.FacesProcessed++

		for bi := range face.Bins {
			bin := &face.Bins[bi]
			if bin.UBinID == "" {
				continue
			}

			items, err := e.itemRepo.Find(ctx, repositories.ItemFilter{UBinID: bin.UBinID})
			if err != nil {
				return nil, nil, fmt.Errorf("face %s bin %s: %w", face.Letter, bin.BinID, err)
			}

			projected := make([]entities.BinItem, 0, len(items))
			for _, item := range items {
				projected = append(projected, item.BinItem())
			}

			if !sameBinItems(bin.Items, projected) || bin.BinItemCount != len(projected) {
				changed = true
			}
			bin.Items = projected
			bin.BinItemCount = len(projected)

			result.BinsProcessed++
			result.ItemsSynced += len(projected)
		}
	}

	// totals only after every bin of every face is refreshed
	for fi := range pod.Faces {
		face := &pod.Faces[fi]
		total, utilization := face.FaceItemTotal, face.CapacityUtilization
		face.RecomputeTotals()
		if face.FaceItemTotal != total || face.CapacityUtilization != utilization {
			changed = true
		}
	}

	if result.ItemsSynced == 0 && !changed {
		return result, pod, nil
	}

	if err := e.podRepo.Save(ctx, pod); err != nil {
		return nil, nil, err
	}
	result.Written = true
	return result, pod, nil
}

// SyncAll synchronizes every pod sequentially. A failing pod is recorded
// and never stops the pass.
func (e *Engine) SyncAll(ctx context.Context) (*dto.SyncAllResult, error) {
	barcodes, err := e.podRepo.Barcodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	result := &dto.SyncAllResult{
		RunID:        uuid.New().String(),
		TotalPods:    len(barcodes),
		ErrorDetails: make([]entities.UnitError, 0),
		Pods:         make([]dto.PodSyncResult, 0, len(barcodes)),
		StartedAt:    e.now(),
	}

	for _, barcode := range barcodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		podResult, err := e.SyncPod(ctx, barcode)
		if err != nil {
			e.logger.Printf("Failed to sync pod %s: %v", barcode, err)
			result.TotalErrors++
			result.ErrorDetails = append(result.ErrorDetails, entities.UnitError{Unit: barcode, Error: err.Error()})
			continue
		}
		result.TotalItemsSynced += podResult.ItemsSynced
		result.Pods = append(result.Pods, *podResult)
	}
	result.Duration = e.now().Sub(result.StartedAt)

	event := events.NewEvent(events.SyncCompletedEvent, events.SyncStream, events.SyncCompleted{
		RunID:            result.RunID,
		TotalPods:        result.TotalPods,
		TotalItemsSynced: result.TotalItemsSynced,
		TotalErrors:      result.TotalErrors,
	})
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Printf("Warning: failed to publish sync completed event: %v", err)
	}

	return result, nil
}

func (e *Engine) publishPodSynced(ctx context.Context, result *dto.PodSyncResult, version int64) {
	event := events.NewEvent(events.PodSyncedEvent, result.Barcode, events.PodSynced{
		Barcode:        result.Barcode,
		ItemsSynced:    result.ItemsSynced,
		BinsProcessed:  result.BinsProcessed,
		FacesProcessed: result.FacesProcessed,
		Version:        version,
	})
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Printf("Warning: failed to publish pod synced event: %v", err)
	}
}

func sameBinItems(a, b []entities.BinItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
