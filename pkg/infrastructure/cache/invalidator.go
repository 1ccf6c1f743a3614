package cache

import (
	"github.com/vsinha/podsync/pkg/infrastructure/events"
)

// Invalidator drops cached responses when synchronization rewrites pods or
// ingestion changes the item store
type Invalidator struct {
	cache *ResponseCache
}

var _ events.EventHandler = (*Invalidator)(nil)

// InvalidationEvents lists the event types an Invalidator reacts to
var InvalidationEvents = []string{
	events.PodSyncedEvent,
	events.SyncCompletedEvent,
	events.PodCreatedEvent,
	events.FeedReconciledEvent,
}

func NewInvalidator(cache *ResponseCache) *Invalidator {
	return &Invalidator{cache: cache}
}

// Register subscribes the invalidator to the event store
func (i *Invalidator) Register(store events.EventStore) error {
	return store.Subscribe(InvalidationEvents, i)
}

func (i *Invalidator) CanHandle(eventType string) bool {
	for _, t := range InvalidationEvents {
		if t == eventType {
			return true
		}
	}
	return false
}

func (i *Invalidator) Handle(event events.Event) error {
	switch event.Type() {
	case events.PodSyncedEvent, events.PodCreatedEvent:
		i.cache.InvalidateTag(PodTag(event.StreamID()))
		i.cache.InvalidateTag(StoreTag)
	default:
		i.cache.Clear()
	}
	return nil
}
