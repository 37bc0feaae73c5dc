package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(PageChanged, func(ev Event) { got = append(got, "a") })
	bus.Subscribe(PageChanged, func(ev Event) { got = append(got, "b") })
	bus.Subscribe(StatusChanged, func(ev Event) { got = append(got, "status") })

	bus.Publish(Event{Kind: PageChanged, Page: 2})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	var bus Bus
	calls := 0
	unsub := bus.Subscribe(StatusChanged, func(Event) { calls++ })
	bus.Publish(Event{Kind: StatusChanged, Status: "failed"})
	unsub()
	unsub()
	bus.Publish(Event{Kind: StatusChanged, Status: "all"})
	assert.Equal(t, 1, calls)
}

func TestBus_HandlerMaySubscribe(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TaskMutated, func(Event) {
		bus.Subscribe(TaskMutated, func(Event) {})
	})
	assert.NotPanics(t, func() { bus.Publish(Event{Kind: TaskMutated, TaskID: "t1"}) })
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(Event{Kind: PageChanged}) })
}
