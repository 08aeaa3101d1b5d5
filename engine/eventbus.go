package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"civicrank/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

// Handler consumes a published event.
type Handler func(context.Context, core.Event)

type subscription struct {
	id  int64
	all bool
	fn  Handler
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
// Handlers registered with SubscribeAll see every event type.
type EventBus struct {
	mode    DispatchMode
	mu      sync.RWMutex
	subs    map[core.EventType]map[int64]subscription
	any     map[int64]subscription
	nextID  int64
	queue   chan core.Event
	workers int
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode:    mode,
		subs:    make(map[core.EventType]map[int64]subscription),
		any:     make(map[int64]subscription),
		queue:   make(chan core.Event, 2048),
		workers: 4,
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for ev := range e.queue {
				e.dispatchSync(context.Background(), ev)
			}
		}()
	}
}

// Close drains queued events and stops async workers.
func (e *EventBus) Close() {
	e.once.Do(func() {
		if e.mode == DispatchAsync {
			close(e.queue)
			e.wg.Wait()
		}
	})
}

// Dropped reports how many async events were discarded because the queue was full.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// SubscribeAll registers a handler for every event type.
func (e *EventBus) SubscribeAll(handler Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.any[id] = subscription{id: id, all: true, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.any, id)
	}
}

// Publish sends an event to subscribers. Async publishing never blocks;
// events are dropped when the queue is full.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		defer func() {
			// publishing after Close
			if recover() != nil {
				e.dropped.Add(1)
			}
		}()
		select {
		case e.queue <- ev:
		default:
			e.dropped.Add(1)
		}
		return
	}
	e.dispatchSync(ctx, ev)
}

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	handlers := make([]Handler, 0, len(subs)+len(e.any))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	for _, s := range e.any {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
