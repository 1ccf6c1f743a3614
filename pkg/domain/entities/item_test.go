package entities

import (
	"errors"
	"strings"
	"testing"
)

func TestItem_Validation(t *testing.T) {
	validItem, err := NewItem(" STK-001 ", "U-1001")
	if err != nil {
		t.Fatalf("Expected valid item creation to succeed: %v", err)
	}
	if validItem.StockCode != "STK-001" {
		t.Errorf("Expected stock code STK-001, got %s", validItem.StockCode)
	}
	if validItem.Status != StatusAvailable {
		t.Errorf("Expected default status available, got %s", validItem.Status)
	}
	if validItem.Quantity != 1 {
		t.Errorf("Expected default quantity 1, got %d", validItem.Quantity)
	}

	testCases := []struct {
		name        string
		item        Item
		expectError string
	}{
		{"empty stock code", Item{Status: StatusAvailable, Quantity: 1}, "stock code cannot be empty"},
		{"bad status", Item{StockCode: "S", Status: "lost", Quantity: 1}, `invalid status "lost" for S`},
		{"negative quantity", Item{StockCode: "S", Status: StatusMissing, Quantity: -1}, "quantity cannot be negative, got -1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if err == nil {
				t.Fatalf("Expected error for %s", tc.name)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.expectError) {
				t.Errorf("Expected error containing '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestParseItemStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected ItemStatus
		wantErr  bool
	}{
		{"available", StatusAvailable, false},
		{" MISSING ", StatusMissing, false},
		{"Hunting", StatusHunting, false},
		{"gone", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		status, err := ParseItemStatus(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Expected error parsing %q", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Failed to parse %q: %v", tt.input, err)
			continue
		}
		if status != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, status)
		}
	}
}

func TestItem_BinItem(t *testing.T) {
	item := &Item{StockCode: "S1", UBinID: "U-1", Status: StatusHunting, Quantity: 3}
	bi := item.BinItem()
	if bi.StockCode != "S1" || bi.Status != StatusHunting {
		t.Errorf("Expected projection {S1 hunting}, got %+v", bi)
	}
}
