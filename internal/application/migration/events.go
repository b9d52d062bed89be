// Package migration contains the application services that drive workspace
// imports: the per-board importer, the orchestrator that fans a parent job
// out over its children, and the event hub feeding progress streams.
package migration

import (
	"sync"
	"time"

	"github.com/agencyboard/backend/internal/domain/migration"
	"github.com/google/uuid"
)

// EventType classifies progress events
type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event is one progress update for a job tree. Events for a child job carry
// the child's ID and are also published under the parent's ID so a single
// stream covers the whole migration.
type Event struct {
	Type       EventType           `json:"type"`
	JobID      uuid.UUID           `json:"job_id"`
	BoardIndex int                 `json:"board_index"`
	Status     migration.JobStatus `json:"status"`
	Progress   migration.Progress  `json:"progress"`
	Report     migration.Report    `json:"report"`
	Error      string              `json:"error,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// eventBufferSize is the per-subscriber channel depth; slow consumers drop
// intermediate progress events rather than block the importer
const eventBufferSize = 64

// Hub fans job events out to stream subscribers
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID]map[int]chan Event
}

// NewHub creates an event hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[int]chan Event)}
}

// Subscribe registers a listener for the job's events. The returned cancel
// function must be called when the listener goes away.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, eventBufferSize)
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[int]chan Event)
	}
	h.subs[jobID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subs[jobID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.subs, jobID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers the event to the job's subscribers. Full subscriber
// buffers are skipped so a slow stream cannot stall the importer.
func (h *Hub) Publish(jobID uuid.UUID, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[jobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports how many listeners a job currently has
func (h *Hub) SubscriberCount(jobID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}
