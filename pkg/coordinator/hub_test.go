package coordinator

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/okonor/parley/pkg/api"
	"github.com/okonor/parley/pkg/com"
	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/logger"
)

type sent struct {
	t       uint16
	payload any
}

type fakeWire struct {
	mu      sync.Mutex
	packets []sent
	replies []sent
}

func (f *fakeWire) Notify(t uint16, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packets = append(f.packets, sent{t, payload})
	return nil
}

func (f *fakeWire) Route(p com.In, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sent{p.T, payload})
	return nil
}

func (f *fakeWire) Close() {}

func (f *fakeWire) byType(t api.PT) (out []sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.packets {
		if api.PT(p.t) == t {
			out = append(out, p)
		}
	}
	return out
}

func packet(t api.PT, payload any) com.In {
	raw, _ := json.Marshal(payload)
	return com.In{T: uint16(t), Payload: raw}
}

func newTestHub() *Hub { return NewHub(config.Coordinator{}, logger.Default()) }

func join(h *Hub, name, room string) (*User, *fakeWire) {
	u, w := newTestUser()
	h.users.Put(u.Id().String(), u)
	h.route(u, packet(api.JoinRoom, api.JoinRoomRequest{Name: name, Room: room}))
	return u, w
}

func TestJoinSnapshotAndBroadcastOrdering(t *testing.T) {
	h := newTestHub()
	a, aw := join(h, "alice", "r")
	_, bw := join(h, "bob", "r")

	// alice saw an empty room
	resp := aw.replies[0].payload.(api.RoomJoinedResponse)
	if resp.Error != "" || len(resp.Others) != 0 {
		t.Fatalf("first joiner snapshot should be empty, got %+v", resp)
	}
	// bob's snapshot holds exactly alice
	resp = bw.replies[0].payload.(api.RoomJoinedResponse)
	if len(resp.Others) != 1 || resp.Others[0].Id != a.Id().String() || resp.Others[0].Name != "alice" {
		t.Fatalf("second joiner should see alice, got %+v", resp.Others)
	}
	// alice heard about bob exactly once, bob heard about nobody
	if joined := aw.byType(api.UserJoined); len(joined) != 1 {
		t.Fatalf("alice should get one UserJoined, got %d", len(joined))
	}
	if joined := bw.byType(api.UserJoined); len(joined) != 0 {
		t.Fatalf("bob should get no UserJoined, got %d", len(joined))
	}
}

func TestMalformedJoinRejected(t *testing.T) {
	h := newTestHub()
	u, w := newTestUser()
	h.route(u, packet(api.JoinRoom, api.JoinRoomRequest{Name: "", Room: "r"}))

	resp := w.replies[0].payload.(api.RoomJoinedResponse)
	if resp.Error == "" {
		t.Fatal("empty name must be rejected")
	}
	if h.registry.RoomCount() != 0 {
		t.Fatal("rejected join must not mutate the registry")
	}
}

func TestRelayRestampsSource(t *testing.T) {
	h := newTestHub()
	a, _ := join(h, "alice", "r")
	b, bw := join(h, "bob", "r")

	h.route(a, packet(api.Offer, api.OfferRequest{Target: b.Id().String(), Sdp: "offer-sdp"}))

	offers := bw.byType(api.Offer)
	if len(offers) != 1 {
		t.Fatalf("bob should get one offer, got %d", len(offers))
	}
	relay := offers[0].payload.(api.OfferRelay)
	if relay.Source != a.Id().String() || relay.Name != "alice" || relay.Sdp != "offer-sdp" {
		t.Fatalf("relay must carry the stamped sender, got %+v", relay)
	}
}

func TestRelayMissIsSilent(t *testing.T) {
	h := newTestHub()
	a, aw := join(h, "alice", "r")

	h.route(a, packet(api.IceCandidate, api.IceRequest{Target: "gone", Candidate: "c"}))

	if got := aw.byType(api.IceCandidate); len(got) != 0 {
		t.Fatalf("nothing should bounce back to the sender, got %d", len(got))
	}
}

func TestDisconnectBroadcastsUserLeftOnce(t *testing.T) {
	h := newTestHub()
	_, aw := join(h, "alice", "r")
	b, _ := join(h, "bob", "r")

	h.disconnect(b)
	h.disconnect(b) // raced explicit leave and socket close

	left := aw.byType(api.UserLeft)
	if len(left) != 1 {
		t.Fatalf("alice should get exactly one UserLeft, got %d", len(left))
	}
	notice := left[0].payload.(api.UserLeftNotice)
	if notice.Id != b.Id().String() || notice.Name != "bob" {
		t.Fatalf("UserLeft should name bob, got %+v", notice)
	}
}

func TestRejoinNotifiesOldRoom(t *testing.T) {
	h := newTestHub()
	_, aw := join(h, "alice", "r1")
	b, _ := join(h, "bob", "r1")

	h.route(b, packet(api.JoinRoom, api.JoinRoomRequest{Name: "bob", Room: "r2"}))

	left := aw.byType(api.UserLeft)
	if len(left) != 1 {
		t.Fatalf("alice should hear that bob left r1, got %d UserLeft", len(left))
	}
	notice := left[0].payload.(api.UserLeftNotice)
	if notice.Id != b.Id().String() || notice.Name != "bob" {
		t.Fatalf("UserLeft should name bob, got %+v", notice)
	}
	if members := h.registry.Members("r1"); len(members) != 1 {
		t.Fatalf("r1 should hold alice alone, got %d members", len(members))
	}
	if members := h.registry.Members("r2"); len(members) != 1 || members[0] != b {
		t.Fatalf("r2 should hold bob, got %d members", len(members))
	}
}

func TestChatBeforeJoinIsDropped(t *testing.T) {
	h := newTestHub()
	u, w := newTestUser()
	_, aw := join(h, "alice", "r")

	h.route(u, packet(api.ChatMessage, api.ChatMessageRequest{Message: "early"}))

	if got := aw.byType(api.NewMessage); len(got) != 0 {
		t.Fatalf("a roomless sender must not reach anyone, got %d", len(got))
	}
	if got := w.byType(api.NewMessage); len(got) != 0 {
		t.Fatalf("nothing should echo to the sender, got %d", len(got))
	}
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	h := newTestHub()
	a, aw := join(h, "alice", "r")
	_, bw := join(h, "bob", "r")

	h.route(a, packet(api.ChatMessage, api.ChatMessageRequest{Message: "hi"}))

	for _, w := range []*fakeWire{aw, bw} {
		msgs := w.byType(api.NewMessage)
		if len(msgs) != 1 {
			t.Fatalf("everyone in the room should get the message once, got %d", len(msgs))
		}
		notice := msgs[0].payload.(api.NewMessageNotice)
		if notice.Name != "alice" || notice.Message != "hi" {
			t.Fatalf("unexpected message %+v", notice)
		}
	}
}
