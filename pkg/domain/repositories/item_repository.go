package repositories

import (
	"context"
	"strings"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

// ItemFilter selects flat item records. Empty fields do not constrain.
type ItemFilter struct {
	StockCode       string
	StockCodePrefix string
	Status          entities.ItemStatus
	UBinID          string
	UBinIDPrefix    string
}

// Matches applies the filter to a single item
func (f ItemFilter) Matches(item *entities.Item) bool {
	if f.StockCode != "" && item.StockCode != f.StockCode {
		return false
	}
	if f.StockCodePrefix != "" && !strings.HasPrefix(item.StockCode, f.StockCodePrefix) {
		return false
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.UBinID != "" && item.UBinID != f.UBinID {
		return false
	}
	if f.UBinIDPrefix != "" && !strings.HasPrefix(item.UBinID, f.UBinIDPrefix) {
		return false
	}
	return true
}

// ItemRepository provides access to the authoritative flat item store.
// Stock code and UBinID are unique; every mutation stamps LastUpdated.
type ItemRepository interface {
	Create(ctx context.Context, item *entities.Item) error
	Get(ctx context.Context, stockCode string) (*entities.Item, error)
	Update(ctx context.Context, item *entities.Item) error
	Delete(ctx context.Context, stockCode string) error

	// UpsertByStockCode inserts or replaces the record for item.StockCode.
	// Fails with entities.ErrDuplicateKey when item.UBinID belongs to a
	// different stock code.
	UpsertByStockCode(ctx context.Context, item *entities.Item) error

	// FindByLocation returns the single record stowed at uBinID or
	// entities.ErrNotFound.
	FindByLocation(ctx context.Context, uBinID string) (*entities.Item, error)

	Find(ctx context.Context, filter ItemFilter) ([]*entities.Item, error)

	// FindByLocations is an IN query over uBinIDs, narrowed by filter.
	FindByLocations(ctx context.Context, uBinIDs []string, filter ItemFilter) ([]*entities.Item, error)

	// UpdateLocation changes only the location key, pod hint and timestamp.
	UpdateLocation(ctx context.Context, stockCode, uBinID, podHint string) error
	UpdateStatus(ctx context.Context, stockCode string, status entities.ItemStatus) error
	UpdateQuantity(ctx context.Context, stockCode string, quantity int) error

	Count(ctx context.Context, filter ItemFilter) (int, error)
}
