package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
	"github.com/vsinha/podsync/pkg/domain/services"
	"github.com/vsinha/podsync/pkg/infrastructure/events"
)

// Outcome is the decision taken for one feed row
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeInserted
	OutcomeUpdated
	OutcomeUnchanged
	// OutcomeUntouched marks a known item whose row carried no usable location
	OutcomeUntouched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUntouched:
		return "untouched"
	default:
		return "skipped"
	}
}

// Reconciler merges bulk feed rows into the item store. Rows are applied
// independently; a failing row never aborts the batch.
type Reconciler struct {
	itemRepo  repositories.ItemRepository
	publisher events.Publisher
	logger    *log.Logger
}

// NewReconciler creates a new ingestion reconciler
func NewReconciler(itemRepo repositories.ItemRepository, publisher events.Publisher, logger *log.Logger) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		itemRepo:  itemRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// Reconcile applies every row and returns the counts. The returned error is
// non-nil only when the context is cancelled; per-row failures are in
// the result's Failures.
func (r *Reconciler) Reconcile(ctx context.Context, rows []dto.FeedRow) (*dto.ReconcileResult, error) {
	result := &dto.ReconcileResult{Failures: make([]entities.UnitError, 0)}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := r.ReconcileRow(ctx, row)
		if err != nil {
			unit := rowUnit(i, row)
			r.logger.Printf("Failed to reconcile %s: %v", unit, err)
			result.Skipped++
			result.Failures = append(result.Failures, entities.UnitError{Unit: unit, Error: err.Error()})
			continue
		}

		switch outcome {
		case OutcomeSkipped:
			result.Skipped++
			continue
		case OutcomeInserted:
			result.Inserted++
		case OutcomeUpdated:
			result.Updated++
		case OutcomeUnchanged, OutcomeUntouched:
			result.Unchanged++
		}
		result.Processed++
	}

	event := events.NewEvent(events.FeedReconciledEvent, "feed", events.FeedReconciled{
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Inserted:  result.Inserted,
		Updated:   result.Updated,
	})
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Printf("Warning: failed to publish feed reconciled event: %v", err)
	}

	return result, nil
}

// ReconcileRow applies a single row
func (r *Reconciler) ReconcileRow(ctx context.Context, row dto.FeedRow) (Outcome, error) {
	stockCode := services.CleanValue(row.StockCode)
	if stockCode == "" {
		return OutcomeSkipped, nil
	}

	hasLocation := services.IsValidLocationKey(row.LocationKeyRaw)
	existing, err := r.itemRepo.Get(ctx, stockCode)
	if err != nil && !errors.Is(err, entities.ErrNotFound) {
		return OutcomeSkipped, fmt.Errorf("lookup %s: %w", stockCode, err)
	}
	found := err == nil

	if !hasLocation {
		if found {
			return OutcomeUntouched, nil
		}
		// nothing to insert without a location
		return OutcomeSkipped, nil
	}

	uBinID := services.CleanLocationKey(row.LocationKeyRaw)
	podHint := services.ParseLocationBarcode(row.LocationBarcodeRaw)

	if found {
		if existing.UBinID == uBinID {
			return OutcomeUnchanged, nil
		}
		if err := r.itemRepo.UpdateLocation(ctx, stockCode, uBinID, podHint); err != nil {
			return OutcomeSkipped, fmt.Errorf("move %s to %s: %w", stockCode, uBinID, err)
		}
		return OutcomeUpdated, nil
	}

	item, err := entities.NewItem(stockCode, uBinID)
	if err != nil {
		return OutcomeSkipped, err
	}
	item.PodHint = podHint
	if err := r.itemRepo.Create(ctx, item); err != nil {
		return OutcomeSkipped, fmt.Errorf("insert %s: %w", stockCode, err)
	}
	return OutcomeInserted, nil
}

func rowUnit(index int, row dto.FeedRow) string {
	line := row.Line
	if line == 0 {
		line = index + 1
	}
	if code := services.CleanValue(row.StockCode); code != "" {
		return fmt.Sprintf("row %d (%s)", line, code)
	}
	return fmt.Sprintf("row %d", line)
}
