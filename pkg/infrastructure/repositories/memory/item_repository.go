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

// ItemRepository provides in-memory item storage with unique stock code and
// location key indexes
type ItemRepository struct {
	items      map[string]entities.Item
	byLocation map[string]string
	mutex      sync.RWMutex

	// Now stamps LastUpdated on every mutation
	Now func() time.Time
}

// NewItemRepository creates a new in-memory item repository
func NewItemRepository(expectedItems int) *ItemRepository {
	return &ItemRepository{
		items:      make(map[string]entities.Item, expectedItems),
		byLocation: make(map[string]string, expectedItems),
		Now:        time.Now,
	}
}

// Verify interface compliance
var _ repositories.ItemRepository = (*ItemRepository)(nil)

// LoadItems loads items into the repository, enforcing uniqueness
func (r *ItemRepository) LoadItems(items []*entities.Item) error {
	for _, item := range items {
		if err := r.Create(context.Background(), item); err != nil {
			return err
		}
	}
	return nil
}

func (r *ItemRepository) Create(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.items[item.StockCode]; exists {
		return fmt.Errorf("item %s: %w", item.StockCode, entities.ErrDuplicateKey)
	}
	if err := r.checkLocationLocked(item.StockCode, item.UBinID); err != nil {
		return err
	}

	stored := *item
	stored.LastUpdated = r.Now()
	r.putLocked(stored)
	item.LastUpdated = stored.LastUpdated
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, stockCode string) (*entities.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	item, exists := r.items[stockCode]
	if !exists {
		return nil, fmt.Errorf("item %s: %w", stockCode, entities.ErrNotFound)
	}
	return &item, nil
}

func (r *ItemRepository) Update(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.items[item.StockCode]; !exists {
		return fmt.Errorf("item %s: %w", item.StockCode, entities.ErrNotFound)
	}
	if err := r.checkLocationLocked(item.StockCode, item.UBinID); err != nil {
		return err
	}

	stored := *item
	stored.LastUpdated = r.Now()
	r.putLocked(stored)
	item.LastUpdated = stored.LastUpdated
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, stockCode string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.items[stockCode]; !exists {
		return fmt.Errorf("item %s: %w", stockCode, entities.ErrNotFound)
	}
	r.removeLocked(stockCode)
	return nil
}

func (r *ItemRepository) UpsertByStockCode(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.checkLocationLocked(item.StockCode, item.UBinID); err != nil {
		return err
	}

	stored := *item
	stored.LastUpdated = r.Now()
	r.putLocked(stored)
	item.LastUpdated = stored.LastUpdated
	return nil
}

func (r *ItemRepository) FindByLocation(ctx context.Context, uBinID string) (*entities.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stockCode, exists := r.byLocation[uBinID]
	if !exists || uBinID == "" {
		return nil, fmt.Errorf("location %s: %w", uBinID, entities.ErrNotFound)
	}
	item := r.items[stockCode]
	return &item, nil
}

func (r *ItemRepository) Find(ctx context.Context, filter repositories.ItemFilter) ([]*entities.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if filter.StockCode != "" {
		item, exists := r.items[filter.StockCode]
		if !exists || !filter.Matches(&item) {
			return []*entities.Item{}, nil
		}
		return []*entities.Item{&item}, nil
	}
	if filter.UBinID != "" {
		stockCode, exists := r.byLocation[filter.UBinID]
		if !exists {
			return []*entities.Item{}, nil
		}
		item := r.items[stockCode]
		if !filter.Matches(&item) {
			return []*entities.Item{}, nil
		}
		return []*entities.Item{&item}, nil
	}

	result := make([]*entities.Item, 0)
	for _, item := range r.items {
		if filter.Matches(&item) {
			item := item
			result = append(result, &item)
		}
	}
	sortItems(result)
	return result, nil
}

func (r *ItemRepository) FindByLocations(ctx context.Context, uBinIDs []string, filter repositories.ItemFilter) ([]*entities.Item, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*entities.Item, 0, len(uBinIDs))
	seen := make(map[string]bool, len(uBinIDs))
	for _, uBinID := range uBinIDs {
		if uBinID == "" || seen[uBinID] {
			continue
		}
		seen[uBinID] = true

		stockCode, exists := r.byLocation[uBinID]
		if !exists {
			continue
		}
		item := r.items[stockCode]
		if filter.Matches(&item) {
			result = append(result, &item)
		}
	}
	sortItems(result)
	return result, nil
}

func (r *ItemRepository) UpdateLocation(ctx context.Context, stockCode, uBinID, podHint string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	item, exists := r.items[stockCode]
	if !exists {
		return fmt.Errorf("item %s: %w", stockCode, entities.ErrNotFound)
	}
	if err := r.checkLocationLocked(stockCode, uBinID); err != nil {
		return err
	}

	item.UBinID = uBinID
	item.PodHint = podHint
	item.LastUpdated = r.Now()
	r.putLocked(item)
	return nil
}

func (r *ItemRepository) UpdateStatus(ctx context.Context, stockCode string, status entities.ItemStatus) error {
	if !status.Valid() {
		return entities.Validationf("invalid status %q for %s", status, stockCode)
	}
	return r.mutate(stockCode, func(item *entities.Item) {
		item.Status = status
	})
}

func (r *ItemRepository) UpdateQuantity(ctx context.Context, stockCode string, quantity int) error {
	if quantity < 0 {
		return entities.Validationf("quantity cannot be negative, got %d", quantity)
	}
	return r.mutate(stockCode, func(item *entities.Item) {
		item.Quantity = quantity
	})
}

func (r *ItemRepository) Count(ctx context.Context, filter repositories.ItemFilter) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := 0
	for _, item := range r.items {
		if filter.Matches(&item) {
			count++
		}
	}
	return count, nil
}

func (r *ItemRepository) mutate(stockCode string, apply func(item *entities.Item)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	item, exists := r.items[stockCode]
	if !exists {
		return fmt.Errorf("item %s: %w", stockCode, entities.ErrNotFound)
	}
	apply(&item)
	item.LastUpdated = r.Now()
	r.items[stockCode] = item
	return nil
}

// checkLocationLocked fails when uBinID is held by a different stock code
func (r *ItemRepository) checkLocationLocked(stockCode, uBinID string) error {
	if uBinID == "" {
		return nil
	}
	if owner, exists := r.byLocation[uBinID]; exists && owner != stockCode {
		return fmt.Errorf("location %s already holds %s: %w", uBinID, owner, entities.ErrDuplicateKey)
	}
	return nil
}

func (r *ItemRepository) putLocked(item entities.Item) {
	r.removeLocked(item.StockCode)
	r.items[item.StockCode] = item
	if item.UBinID != "" {
		r.byLocation[item.UBinID] = item.StockCode
	}
}

func (r *ItemRepository) removeLocked(stockCode string) {
	if old, exists := r.items[stockCode]; exists {
		if old.UBinID != "" && r.byLocation[old.UBinID] == stockCode {
			delete(r.byLocation, old.UBinID)
		}
		delete(r.items, stockCode)
	}
}

func sortItems(items []*entities.Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].StockCode < items[j].StockCode
	})
}
