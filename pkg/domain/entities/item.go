package entities

import (
	"strings"
	"time"
)

// ItemStatus represents the operational status of a stowed item
type ItemStatus string

const (
	StatusAvailable ItemStatus = "available"
	StatusMissing   ItemStatus = "missing"
	StatusHunting   ItemStatus = "hunting"
)

// Valid reports whether s is one of the known statuses
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusMissing, StatusHunting:
		return true
	default:
		return false
	}
}

// ParseItemStatus parses a status case-insensitively
func ParseItemStatus(s string) (ItemStatus, error) {
	status := ItemStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", Validationf("invalid status: %q (expected: available, missing, or hunting)", s)
	}
	return status, nil
}

// Item is the authoritative flat inventory record, keyed by stock code and
// carrying the unique location key (UBinID) of the bin it is stowed in.
type Item struct {
	StockCode   string     `json:"stockCode" bson:"stockCode" db:"stock_code"`
	UBinID      string     `json:"uBinId" bson:"uBinId" db:"u_bin_id"`
	Status      ItemStatus `json:"status" bson:"status" db:"status"`
	Quantity    int        `json:"quantity" bson:"quantity" db:"quantity"`
	CatalogCode string     `json:"catalogCode,omitempty" bson:"catalogCode,omitempty" db:"catalog_code"`
	PodHint     string     `json:"podHint,omitempty" bson:"podHint,omitempty" db:"pod_hint"`
	Owner       string     `json:"owner,omitempty" bson:"owner,omitempty" db:"owner"`
	LastUpdated time.Time  `json:"lastUpdated" bson:"lastUpdated" db:"last_updated"`
}

// NewItem creates a validated Item with the default status and quantity
func NewItem(stockCode, uBinID string) (*Item, error) {
	item := &Item{
		StockCode: strings.TrimSpace(stockCode),
		UBinID:    strings.TrimSpace(uBinID),
		Status:    StatusAvailable,
		Quantity:  1,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the record-level invariants of an item
func (i *Item) Validate() error {
	if i.StockCode == "" {
		return Validationf("stock code cannot be empty")
	}
	if !i.Status.Valid() {
		return Validationf("invalid status %q for %s", i.Status, i.StockCode)
	}
	if i.Quantity < 0 {
		return Validationf("quantity cannot be negative, got %d", i.Quantity)
	}
	return nil
}

// BinItem projects an item into the lightweight tuple embedded in a bin
func (i *Item) BinItem() BinItem {
	return BinItem{StockCode: i.StockCode, Status: i.Status}
}
