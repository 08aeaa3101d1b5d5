package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"civicrank/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewPointsAwarded("bob", "create_post", 10, 10)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventPointsAwarded {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Subscribers())
	}
}

func TestHubUserFilterAndDrops(t *testing.T) {
	h := NewHub()
	_, alice := h.SubscribeUser(1, "alice")

	h.Broadcast(context.Background(), core.NewPointsAwarded("bob", "vote", 1, 1))
	h.Broadcast(context.Background(), core.NewPointsAwarded("alice", "vote", 1, 1))
	h.Broadcast(context.Background(), core.NewPointsAwarded("alice", "vote", 1, 2))

	got := <-alice
	if got.UserID != "alice" || got.Total != 1 {
		t.Fatalf("unexpected event: %+v", got)
	}
	select {
	case extra := <-alice:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
	if h.Dropped() != 1 {
		t.Fatalf("expected 1 dropped delivery, got %d", h.Dropped())
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewLevelUp("alice", core.Level{ID: "l2", Name: "Level GatotKaca", Points: 100}, 120)
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Level == nil || out.Level.Name != "Level GatotKaca" {
		t.Fatalf("unexpected level: %+v", out.Level)
	}
}
