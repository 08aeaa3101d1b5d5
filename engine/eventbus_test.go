package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"civicrank/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventPointsAwarded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewPointsAwarded("u", "post_created", 1, 1))
	bus.Publish(context.Background(), core.NewLevelUp("u", core.Level{Name: "x"}, 1))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.SubscribeAll(func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewPointsAwarded("u", "post_created", 1, 1))
	bus.Publish(context.Background(), core.NewLevelUp("u", core.Level{Name: "x"}, 1))
	unsub()
	bus.Publish(context.Background(), core.NewLevelUp("u", core.Level{Name: "x"}, 1))
	if count != 2 {
		t.Fatalf("want 2 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventPointsAwarded, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewPointsAwarded("u", "post_created", 1, 1))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusCloseDrains(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var n atomic.Int64
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { n.Add(1) })
	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), core.NewPointsAwarded("u", "x", 1, 1))
	}
	bus.Close()
	if n.Load() != 10 {
		t.Fatalf("want 10 delivered, got %d", n.Load())
	}
	bus.Publish(context.Background(), core.NewPointsAwarded("u", "x", 1, 1))
	if bus.Dropped() != 1 {
		t.Fatalf("publish after close should be dropped, got %d", bus.Dropped())
	}
}
