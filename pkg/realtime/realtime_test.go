package realtime

import (
	"testing"
	"time"
)

func TestHubDeliversToAllListeners(t *testing.T) {
	hub := NewFirehoseHub(4)

	id1, ch1 := hub.Register()
	id2, ch2 := hub.Register()
	defer hub.Unregister(id1)
	defer hub.Unregister(id2)

	if hub.Size() != 2 {
		t.Fatalf("Expected 2 listeners, got: %d", hub.Size())
	}

	event := BookEvent{ID: "/works/OL1W", Title: "Dune", SavedAt: time.Now().UTC()}
	hub.Broadcast(event)

	for i, ch := range []<-chan InternalEvent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Type != "book" {
				t.Errorf("listener %d: Expected type book, got: %s", i+1, got.Type)
			}
			if got.Book.ID != event.ID || got.Book.Title != event.Title {
				t.Errorf("listener %d: Expected event %+v, got: %+v", i+1, event, got.Book)
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d: timed out waiting for event", i+1)
		}
	}
}

func TestHubDropsForSlowListener(t *testing.T) {
	hub := NewFirehoseHub(1)

	slowID, slowCh := hub.Register()
	defer hub.Unregister(slowID)

	// Fill the buffer, then broadcast once more; the second event must be
	// dropped without blocking.
	hub.Broadcast(BookEvent{ID: "one"})
	done := make(chan struct{})
	go func() {
		hub.Broadcast(BookEvent{ID: "two"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full listener buffer")
	}

	got := <-slowCh
	if got.Book.ID != "one" {
		t.Errorf("Expected buffered event one, got: %s", got.Book.ID)
	}
	select {
	case extra := <-slowCh:
		t.Errorf("Expected second event dropped, got: %s", extra.Book.ID)
	default:
	}
}

func TestHubUnregisterClosesChannel(t *testing.T) {
	hub := NewFirehoseHub(0)

	id, ch := hub.Register()
	hub.Unregister(id)
	hub.Unregister(id) // second call is a no-op

	if _, open := <-ch; open {
		t.Error("Expected channel closed after Unregister")
	}
	if hub.Size() != 0 {
		t.Errorf("Expected 0 listeners, got: %d", hub.Size())
	}

	// Broadcasting with no listeners must not panic.
	hub.Broadcast(BookEvent{ID: "ghost"})
}
