// Package events carries typed view-state change events between the
// components of a view. Delivery is synchronous and in publish order.
package events

import "sync"

// Kind identifies an event type.
type Kind string

const (
	PageChanged    Kind = "page-changed"
	StatusChanged  Kind = "status-changed"
	FiltersChanged Kind = "filters-changed"
	TaskMutated    Kind = "task-mutated"
)

// Event is a single state change notification.
type Event struct {
	Kind Kind
	// Page is the requested page for PageChanged.
	Page int
	// Status is the new status filter for StatusChanged.
	Status string
	// TaskID identifies the task for TaskMutated.
	TaskID string
	// Action names the lifecycle action for TaskMutated.
	Action string
}

// Handler reacts to an event.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus is a minimal publish/subscribe hub. The zero value is ready to use.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Kind][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of kind and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(kind Kind, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[Kind][]subscription)
	}
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus) remove(kind Kind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[kind]
	for i, s := range subs {
		if s.id == id {
			b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every current subscriber of its kind. Handlers run
// on the caller's goroutine, outside the bus lock.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[ev.Kind]...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
