package logging_test

import (
	"context"
	"testing"
	"time"

	"kinescope/internal/logging"
)

func TestStreamHubPublishAndFetch(t *testing.T) {
	hub := logging.NewStreamHub(8)
	hub.Publish(logging.LogEvent{Message: "one"})
	hub.Publish(logging.LogEvent{Message: "two"})

	events, next, err := hub.Fetch(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Message != "one" || events[1].Message != "two" {
		t.Fatalf("unexpected event order: %+v", events)
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("expected monotonic sequences, got %d/%d", events[0].Sequence, events[1].Sequence)
	}
	if next != 2 {
		t.Fatalf("expected next sequence 2, got %d", next)
	}

	more, _, err := hub.Fetch(context.Background(), next, 10, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(more) != 0 {
		t.Fatalf("expected no events past cursor, got %d", len(more))
	}
}

func TestStreamHubCapacityEviction(t *testing.T) {
	hub := logging.NewStreamHub(2)
	hub.Publish(logging.LogEvent{Message: "a"})
	hub.Publish(logging.LogEvent{Message: "b"})
	hub.Publish(logging.LogEvent{Message: "c"})

	events, _ := hub.Tail(10)
	if len(events) != 2 {
		t.Fatalf("expected eviction to cap buffer at 2, got %d", len(events))
	}
	if events[0].Message != "b" || events[1].Message != "c" {
		t.Fatalf("expected oldest evicted, got %+v", events)
	}
	if hub.FirstSequence() != 2 {
		t.Fatalf("expected first buffered sequence 2, got %d", hub.FirstSequence())
	}
}

func TestStreamHubFetchWaitWakesOnPublish(t *testing.T) {
	hub := logging.NewStreamHub(8)

	done := make(chan []logging.LogEvent, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(logging.LogEvent{Message: "wake"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Message != "wake" {
			t.Fatalf("unexpected events: %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake on publish")
	}
}

func TestStreamHubFetchWaitHonorsContext(t *testing.T) {
	hub := logging.NewStreamHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if err == nil {
		t.Fatal("expected context error from blocked Fetch")
	}
}
