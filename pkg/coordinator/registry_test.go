package coordinator

import (
	"fmt"
	"sync"
	"testing"

	"github.com/okonor/parley/pkg/logger"
)

func newTestUser() (*User, *fakeWire) {
	w := &fakeWire{}
	return NewUser(w, logger.Default()), w
}

func TestJoinReturnsPriorMembersOnly(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestUser()
	b, _ := newTestUser()

	if others := r.Join(a, "r", "a"); len(others) != 0 {
		t.Fatalf("first joiner should see an empty room, got %v", others)
	}
	others := r.Join(b, "r", "b")
	if len(others) != 1 || others[0] != a {
		t.Fatalf("second joiner should see exactly the first one, got %v", others)
	}
}

func TestOneRoomPerParticipant(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestUser()
	b, _ := newTestUser()
	r.Join(a, "r1", "a")
	r.Join(b, "r1", "b")

	r.Join(a, "r2", "a")

	if members := r.Members("r1"); len(members) != 1 || members[0] != b {
		t.Fatalf("r1 should only hold b after a moved, got %v", members)
	}
	if members := r.Members("r2"); len(members) != 1 || members[0] != a {
		t.Fatalf("r2 should hold a, got %v", members)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestUser()
	b, _ := newTestUser()
	r.Join(a, "r", "a")
	r.Join(b, "r", "b")

	room, rest, ok := r.Leave(b)
	if !ok || room != "r" || len(rest) != 1 || rest[0] != a {
		t.Fatalf("first leave should report room and the rest, got %v %v %v", room, rest, ok)
	}
	if _, _, ok = r.Leave(b); ok {
		t.Fatal("second leave should be a no-op")
	}
	if _, _, ok = r.Leave(b); ok {
		t.Fatal("third leave should be a no-op")
	}
}

func TestEmptyRoomsAreRemoved(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestUser()
	r.Join(a, "r", "a")
	if r.RoomCount() != 1 {
		t.Fatal("room should exist while occupied")
	}
	r.Leave(a)
	if r.RoomCount() != 0 {
		t.Fatal("empty room should be dropped")
	}
	// and recreated lazily
	r.Join(a, "r", "a")
	if r.RoomCount() != 1 {
		t.Fatal("room should come back on join")
	}
}

// Concurrent joiners into one room must see consistent snapshots:
// for every pair exactly one of the two observes the other.
func TestJoinSnapshotAtomicity(t *testing.T) {
	r := NewRegistry()
	const n = 32
	sizes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _ := newTestUser()
			sizes <- len(r.Join(u, "r", fmt.Sprintf("u%d", i)))
		}(i)
	}
	wg.Wait()
	close(sizes)

	total := 0
	for s := range sizes {
		total += s
	}
	if want := n * (n - 1) / 2; total != want {
		t.Fatalf("each pair must be observed exactly once: got %d, want %d", total, want)
	}
	if members := r.Members("r"); len(members) != n {
		t.Fatalf("room should hold all %d joiners, got %d", n, len(members))
	}
}
