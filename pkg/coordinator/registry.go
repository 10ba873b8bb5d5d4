package coordinator

import (
	"sync"

	"github.com/okonor/parley/pkg/monitoring"
)

// Registry tracks which participants occupy which room.
// It is the only state shared between connections, so every
// mutation happens under one lock: a joiner's membership snapshot
// is taken atomically with its own insertion and can never be torn
// by a concurrent join into the same room.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]*User
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]*User)}
}

// Join puts the user into the room and returns the members present
// strictly before it, in one atomic step. A user may occupy at most
// one room; joining while in another room leaves the old one first.
func (r *Registry) Join(u *User, room string, name string) (others []*User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.room != "" {
		r.leaveLocked(u)
	}
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*User, 2)
		r.rooms[room] = members
		monitoring.Rooms.Inc()
	}
	for _, m := range members {
		others = append(others, m)
	}
	u.name = name
	u.room = room
	members[u.id.String()] = u
	monitoring.Participants.Inc()
	return others
}

// Leave removes the user from its room, if any, and reports the
// members left behind. Safe to call any number of times; only the
// first call for a joined user returns ok.
func (r *Registry) Leave(u *User) (room string, rest []*User, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.room == "" {
		return "", nil, false
	}
	room = u.room
	rest = r.leaveLocked(u)
	return room, rest, true
}

func (r *Registry) leaveLocked(u *User) (rest []*User) {
	members := r.rooms[u.room]
	if members != nil {
		delete(members, u.id.String())
		monitoring.Participants.Dec()
		for _, m := range members {
			rest = append(rest, m)
		}
		// rooms don't outlive their members
		if len(members) == 0 {
			delete(r.rooms, u.room)
			monitoring.Rooms.Dec()
		}
	}
	u.room = ""
	return rest
}

// Members returns a snapshot of the room's occupants.
func (r *Registry) Members(room string) (members []*User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rooms[room] {
		members = append(members, m)
	}
	return members
}

func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
