package events

import (
	"context"
	"log"
	"sync"
)

// DefaultRetention is how many events an InMemoryEventStore keeps overall
// and per stream
const DefaultRetention = 10000

// InMemoryEventStore keeps the most recent events per stream and overall, and
// notifies subscribers synchronously, so handlers have run by the time
// AppendEvent returns. Positions and stream versions keep counting after old
// events are dropped.
type InMemoryEventStore struct {
	streams        map[string][]Event
	streamVersions map[string]int
	subscribers    map[string][]EventHandler
	mutex          sync.RWMutex
	position       int
	allEvents      []Event
	retention      int
	logger         *log.Logger
}

func NewInMemoryEventStore(logger *log.Logger) *InMemoryEventStore {
	return NewInMemoryEventStoreWithRetention(logger, DefaultRetention)
}

// NewInMemoryEventStoreWithRetention creates a store keeping at most retention
// events overall and per stream; zero or less selects DefaultRetention
func NewInMemoryEventStoreWithRetention(logger *log.Logger, retention int) *InMemoryEventStore {
	if logger == nil {
		logger = log.Default()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &InMemoryEventStore{
		streams:        make(map[string][]Event),
		streamVersions: make(map[string]int),
		subscribers:    make(map[string][]EventHandler),
		allEvents:      make([]Event, 0),
		retention:      retention,
		logger:         logger,
	}
}

var (
	_ EventStore = (*InMemoryEventStore)(nil)
	_ Publisher  = (*InMemoryEventStore)(nil)
)

// Publish appends the event to its own stream
func (s *InMemoryEventStore) Publish(ctx context.Context, event Event) error {
	return s.AppendEvent(event.StreamID(), event)
}

func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	s.mutex.Lock()
	s.streamVersions[streamID]++

	eventWithVersion := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: s.streamVersions[streamID],
	}

	// advancing the slice start lets append reallocate without the dropped prefix
	stream := append(s.streams[streamID], eventWithVersion)
	if len(stream) > s.retention {
		stream = stream[len(stream)-s.retention:]
	}
	s.streams[streamID] = stream

	s.allEvents = append(s.allEvents, eventWithVersion)
	if len(s.allEvents) > s.retention {
		s.allEvents = s.allEvents[len(s.allEvents)-s.retention:]
	}
	s.position++
	s.mutex.Unlock()

	s.notifySubscribers(eventWithVersion)

	return nil
}

// ReadEvents returns the retained events of a stream from fromVersion on
func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[streamID]
	if !exists || len(events) == 0 {
		return []Event{}, nil
	}

	first := events[0].Version()
	if fromVersion < first {
		fromVersion = first
	}

	index := fromVersion - first
	if index >= len(events) {
		return []Event{}, nil
	}

	return append([]Event(nil), events[index:]...), nil
}

// ReadAllEvents returns the retained events from fromPosition on
func (s *InMemoryEventStore) ReadAllEvents(fromPosition int) ([]Event, error) {
	events, _ := s.ReadAllEventsSince(fromPosition)
	return events, nil
}

// ReadAllEventsSince returns the retained events from fromPosition on and the
// position to read from next. Positions count every event ever appended.
func (s *InMemoryEventStore) ReadAllEventsSince(fromPosition int) ([]Event, int) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	oldest := s.position - len(s.allEvents)
	if fromPosition < oldest {
		fromPosition = oldest
	}

	if fromPosition >= s.position {
		return []Event{}, s.position
	}

	return append([]Event(nil), s.allEvents[fromPosition-oldest:]...), s.position
}

func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		if s.subscribers[eventType] == nil {
			s.subscribers[eventType] = make([]EventHandler, 0)
		}
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}

	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for eventType, handlers := range s.subscribers {
		newHandlers := make([]EventHandler, 0)
		for _, h := range handlers {
			if h != handler {
				newHandlers = append(newHandlers, h)
			}
		}
		s.subscribers[eventType] = newHandlers
	}

	return nil
}

func (s *InMemoryEventStore) notifySubscribers(event Event) {
	s.mutex.RLock()
	handlers := s.subscribers[event.Type()]
	s.mutex.RUnlock()

	for _, handler := range handlers {
		if handler.CanHandle(event.Type()) {
			if err := handler.Handle(event); err != nil {
				s.logger.Printf("Error handling event %s: %v", event.Type(), err)
			}
		}
	}
}
