package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, c Client) Event {
	t.Helper()
	select {
	case raw, ok := <-c:
		if !ok {
			t.Fatal("client closed")
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcastReachesOnlyThatChat(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("a_b")
	other := h.Subscribe("c_d")

	if err := h.NotifyChanged(context.Background(), "a_b"); err != nil {
		t.Fatal(err)
	}
	ev := receive(t, a)
	if ev.Type != EventMessagesChanged || ev.Payload != "a_b" {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case <-other:
		t.Fatal("other chat received the event")
	default:
	}
}

func TestSlowClientKeepsLatestEvent(t *testing.T) {
	h := NewHub()
	c := h.Subscribe("a_b")

	for i := 0; i < 3; i++ {
		if err := h.Broadcast("a_b", Event{Type: "tick", Payload: float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	ev := receive(t, c)
	if ev.Payload != float64(2) {
		t.Fatalf("payload = %v, want latest", ev.Payload)
	}
	select {
	case <-c:
		t.Fatal("stale events were queued")
	default:
	}
}

func TestUnsubscribeClosesAndCleansUp(t *testing.T) {
	h := NewHub()
	c := h.Subscribe("a_b")
	if h.Subscribers("a_b") != 1 {
		t.Fatal("subscriber not registered")
	}
	h.Unsubscribe("a_b", c)
	h.Unsubscribe("a_b", c)

	if _, ok := <-c; ok {
		t.Fatal("channel still open")
	}
	if h.Subscribers("a_b") != 0 {
		t.Fatal("subscriber still registered")
	}
	if err := h.Broadcast("a_b", Event{Type: "x"}); err != nil {
		t.Fatal(err)
	}
}
