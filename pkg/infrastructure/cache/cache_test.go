package cache

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/vsinha/podsync/pkg/infrastructure/events"
)

func TestResponseCache_TTL(t *testing.T) {
	c := NewResponseCache(20*time.Millisecond, 10)

	c.Set("/pods/HB10000000001", []byte("cached"))

	value, ok := c.Get("/pods/HB10000000001")
	if !ok || string(value) != "cached" {
		t.Fatalf("Expected cached value, got %q (%v)", value, ok)
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("/pods/HB10000000001"); ok {
		t.Error("Expected entry to expire after TTL")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", hits, misses)
	}
}

func TestResponseCache_HitDoesNotExtendTTL(t *testing.T) {
	c := NewResponseCache(50*time.Millisecond, 10)
	c.Set("key", []byte("v"))

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("key"); !ok {
		t.Fatal("Expected entry before TTL")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("Expected entry to expire at its original deadline")
	}
}

func TestResponseCache_InvalidateTag(t *testing.T) {
	c := NewResponseCache(time.Minute, 10)

	c.Set("a", []byte("1"), PodTag("HB10000000001"))
	c.Set("b", []byte("2"), PodTag("HB10000000002"))
	c.Set("c", []byte("3"), StoreTag)

	if dropped := c.InvalidateTag(PodTag("HB10000000001")); dropped != 1 {
		t.Errorf("Expected 1 dropped entry, got %d", dropped)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected a to be invalidated")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Expected b to survive")
	}
	if dropped := c.InvalidateTag(PodTag("HB10000000001")); dropped != 0 {
		t.Errorf("Expected nothing left to drop, got %d", dropped)
	}
}

func TestResponseCache_InvalidateMultiTagEntry(t *testing.T) {
	c := NewResponseCache(time.Minute, 10)

	c.Set("/pods/HB10000000001/items", []byte("1"), PodTag("HB10000000001"), StoreTag)
	c.Set("/items/locate", []byte("2"), StoreTag)

	if dropped := c.InvalidateTag(StoreTag); dropped != 2 {
		t.Errorf("Expected 2 dropped entries, got %d", dropped)
	}
	if dropped := c.InvalidateTag(PodTag("HB10000000001")); dropped != 0 {
		t.Errorf("Expected entry already gone, got %d dropped", dropped)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", c.Len())
	}
}

func TestResponseCache_MaxEntries(t *testing.T) {
	c := NewResponseCache(time.Minute, 2)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	if c.Len() > 2 {
		t.Errorf("Expected at most 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("Expected newest entry to be stored")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected least recently used entry to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Expected b to survive a single eviction")
	}
}

func TestInvalidator_OnSyncEvents(t *testing.T) {
	c := NewResponseCache(time.Minute, 10)
	store := events.NewInMemoryEventStore(log.New(io.Discard, "", 0))
	if err := NewInvalidator(c).Register(store); err != nil {
		t.Fatalf("Failed to register invalidator: %v", err)
	}
	ctx := context.Background()

	c.Set("/pods/HB10000000001/items", []byte("x"), PodTag("HB10000000001"))
	c.Set("/pods/HB10000000002/items", []byte("y"), PodTag("HB10000000002"))
	c.Set("/items/locate", []byte("z"), StoreTag)

	if err := store.Publish(ctx, events.NewEvent(events.PodSyncedEvent, "HB10000000001", nil)); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	if _, ok := c.Get("/pods/HB10000000001/items"); ok {
		t.Error("Expected synced pod entry to be invalidated")
	}
	if _, ok := c.Get("/items/locate"); ok {
		t.Error("Expected store-wide entry to be invalidated")
	}
	if _, ok := c.Get("/pods/HB10000000002/items"); !ok {
		t.Error("Expected other pod entry to survive")
	}

	_ = store.Publish(ctx, events.NewEvent(events.SyncCompletedEvent, events.SyncStream, nil))
	if c.Len() != 0 {
		t.Errorf("Expected cache cleared after sync completed, %d left", c.Len())
	}
}
