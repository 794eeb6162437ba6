package events_test

import (
	"context"
	"testing"
	"time"

	"kinescope/internal/events"
)

func TestHubCursorAdvances(t *testing.T) {
	hub := events.NewHub(8)
	hub.Publish(events.Event{Type: events.TypeStateChanged, State: "recording"})
	hub.Publish(events.Event{Type: events.TypeChunkProgress})

	evts, next, err := hub.Fetch(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != events.TypeStateChanged || evts[1].Type != events.TypeChunkProgress {
		t.Fatalf("unexpected event order: %+v", evts)
	}
	if evts[0].Sequence != 1 || evts[1].Sequence != 2 {
		t.Fatalf("expected monotonic sequences, got %d/%d", evts[0].Sequence, evts[1].Sequence)
	}

	more, _, err := hub.Fetch(context.Background(), next, 10, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(more) != 0 {
		t.Fatalf("expected no events past cursor, got %d", len(more))
	}
}

func TestHubEvictsOldest(t *testing.T) {
	hub := events.NewHub(2)
	hub.Publish(events.Event{Detail: "a"})
	hub.Publish(events.Event{Detail: "b"})
	hub.Publish(events.Event{Detail: "c"})

	evts, _ := hub.Tail(10)
	if len(evts) != 2 {
		t.Fatalf("expected capacity to cap buffer at 2, got %d", len(evts))
	}
	if evts[0].Detail != "b" || evts[1].Detail != "c" {
		t.Fatalf("expected oldest evicted, got %+v", evts)
	}
}

func TestHubFetchWaitWakesOnPublish(t *testing.T) {
	hub := events.NewHub(8)

	done := make(chan []events.Event, 1)
	go func() {
		evts, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- evts
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(events.Event{Type: events.TypeSaved})

	select {
	case evts := <-done:
		if len(evts) != 1 || evts[0].Type != events.TypeSaved {
			t.Fatalf("unexpected events: %+v", evts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestHubFetchWaitHonorsContext(t *testing.T) {
	hub := events.NewHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, _, err := hub.Fetch(ctx, 0, 10, true); err == nil {
		t.Fatal("expected context error from blocked Fetch")
	}
}

func TestNilHubIsInert(t *testing.T) {
	var hub *events.Hub
	hub.Publish(events.Event{Type: events.TypeError})
	if evts, _, err := hub.Fetch(context.Background(), 0, 10, false); err != nil || len(evts) != 0 {
		t.Fatalf("nil hub Fetch = %v events, err %v", evts, err)
	}
}
