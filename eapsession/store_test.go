package eapsession

import (
	"testing"
	"time"

	"github.com/francistor/radeap/eap"
)

func TestFreezeThawRoundTrip(t *testing.T) {
	store := NewStore(2 * time.Second)
	defer store.Close()

	s, err := store.Create()
	if err != nil {
		t.Fatalf("could not create session: %v", err)
	}
	s.Type = eap.TypeMD5Challenge
	s.State = StateRunning

	if err := store.Freeze(s); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	thawed, err := store.Thaw(s.Correlator)
	if err != nil {
		t.Fatalf("thaw failed: %v", err)
	}
	if thawed == nil {
		t.Fatal("expected to find the frozen session")
	}
	if thawed.Type != eap.TypeMD5Challenge || thawed.State != StateRunning {
		t.Fatalf("thawed session does not match frozen one: %+v", thawed)
	}
}

func TestThawWhileBusyReturnsErrBusy(t *testing.T) {
	store := NewStore(2 * time.Second)
	defer store.Close()

	s, _ := store.Create()
	// s is now held exclusively by this goroutine (as if mid-request); a
	// retransmission thawing the same correlator must not get the session.
	_, err := store.Thaw(s.Correlator)
	if err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := store.Freeze(s); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
}

func TestTerminalSessionNotStoredOnFreeze(t *testing.T) {
	store := NewStore(2 * time.Second)
	defer store.Close()

	s, _ := store.Create()
	s.MarkTerminal(true, false)

	if err := store.Freeze(s); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	thawed, err := store.Thaw(s.Correlator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thawed != nil {
		t.Fatal("terminal session should not be retrievable after freeze")
	}
}

func TestEvictionAfterLifetime(t *testing.T) {
	store := NewStore(50 * time.Millisecond)
	defer store.Close()

	s, _ := store.Create()
	if err := store.Freeze(s); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	thawed, err := store.Thaw(s.Correlator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if thawed != nil {
		t.Fatal("expected session to have been evicted after its lifetime elapsed")
	}
}
