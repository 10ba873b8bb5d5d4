package coordinator

import (
	"net/http"

	"github.com/okonor/parley/pkg/api"
	"github.com/okonor/parley/pkg/com"
	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/monitoring"
)

// Hub relays presence and negotiation packets between participants.
// It holds no negotiation state of its own: all it knows is who is
// connected and which room they occupy.
type Hub struct {
	conf      config.Coordinator
	log       *logger.Logger
	connector *com.Connector
	registry  *Registry
	users     com.Map[string, *User]
}

func NewHub(conf config.Coordinator, log *logger.Logger) *Hub {
	return &Hub{
		conf:      conf,
		log:       log,
		connector: com.NewConnector(com.WithOrigin(conf.Origin)),
		registry:  NewRegistry(),
		users:     com.NewMap[string, *User](),
	}
}

// handleUserConnection runs one participant connection to completion.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade fail")
		return
	}
	user := NewUser(conn, h.log)
	h.users.Put(user.Id().String(), user)
	user.log.Debug().Str(logger.DirectionField, "←").Msg("Connect")

	conn.OnPacket(func(p com.In) { h.route(user, p) })
	conn.Listen()
	<-conn.Wait()

	h.disconnect(user)
}

// route dispatches one inbound packet from the user.
// Packets of a single connection arrive strictly in send order.
func (h *Hub) route(u *User, p com.In) {
	t := api.PT(p.T)
	switch t {
	case api.JoinRoom:
		rq := api.Unwrap[api.JoinRoomRequest](p.Payload)
		if rq == nil {
			u.Reply(p, api.RoomJoinedResponse{Error: api.ErrMalformed.Error()})
			return
		}
		h.handleJoinRoom(u, p, *rq)
	case api.Offer:
		if rq := api.Unwrap[api.OfferRequest](p.Payload); rq != nil {
			h.relay(u, t, rq.Target, api.OfferRelay{Source: u.id.String(), Sdp: rq.Sdp, Name: u.name})
		}
	case api.Answer:
		if rq := api.Unwrap[api.AnswerRequest](p.Payload); rq != nil {
			h.relay(u, t, rq.Target, api.AnswerRelay{Source: u.id.String(), Sdp: rq.Sdp})
		}
	case api.IceCandidate:
		if rq := api.Unwrap[api.IceRequest](p.Payload); rq != nil {
			h.relay(u, t, rq.Target, api.IceRelay{Source: u.id.String(), Candidate: rq.Candidate})
		}
	case api.ChatMessage:
		if rq := api.Unwrap[api.ChatMessageRequest](p.Payload); rq != nil {
			if u.room == "" {
				u.log.Warn().Err(api.ErrNoRoom).Msg("chat dropped")
				return
			}
			h.broadcast(u.room, nil, api.NewMessage, api.NewMessageNotice{Name: u.name, Message: rq.Message})
		}
	case api.FileShare:
		if rq := api.Unwrap[api.FileShareRequest](p.Payload); rq != nil {
			if u.room == "" {
				u.log.Warn().Err(api.ErrNoRoom).Msg("file share dropped")
				return
			}
			h.broadcast(u.room, nil, api.NewFile,
				api.NewFileNotice{Name: u.name, File: rq.File, Filename: rq.Filename, Filetype: rq.Filetype})
		}
	default:
		u.log.Warn().Msgf("unhandled packet type %v", p.T)
	}
}

// handleJoinRoom performs the join and replies with the pre-join
// snapshot before anyone else learns about the new member, so a
// member can never appear both in the snapshot and as a UserJoined.
func (h *Hub) handleJoinRoom(u *User, p com.In, rq api.JoinRoomRequest) {
	if err := rq.Validate(); err != nil {
		u.Reply(p, api.RoomJoinedResponse{Error: err.Error()})
		return
	}
	// a second join moves the user, so the old room has to see a
	// leave or its members keep negotiating with a ghost
	if room, rest, ok := h.registry.Leave(u); ok {
		u.log.Info().Msgf("%v left room [%v]", u.name, room)
		notice := api.UserLeftNotice{Id: u.id.String(), Name: u.name}
		for _, m := range rest {
			m.Notify(api.UserLeft, notice)
		}
	}
	others := h.registry.Join(u, rq.Room, rq.Name)
	members := make([]api.Member, 0, len(others))
	for _, o := range others {
		members = append(members, o.Member())
	}
	u.log.Info().Msgf("%v joined room [%v]", rq.Name, rq.Room)
	u.Reply(p, api.RoomJoinedResponse{Id: u.id.String(), Room: rq.Room, Others: members})
	notice := api.UserJoinedNotice(u.Member())
	for _, o := range others {
		o.Notify(api.UserJoined, notice)
	}
}

// relay forwards a negotiation packet to the target connection with
// the sender identity re-stamped. A gone target is not an error:
// the sender learns about the departure from the leave protocol.
func (h *Hub) relay(u *User, t api.PT, target string, payload any) {
	to, err := h.users.Find(target)
	if err != nil {
		monitoring.RoutingMisses.Inc()
		u.log.Debug().Msgf("%v dropped, no target [%v]", t, target)
		return
	}
	monitoring.RelayedPackets.WithLabelValues(t.String()).Inc()
	to.Notify(t, payload)
}

// broadcast fans a packet out to every room member except skip.
func (h *Hub) broadcast(room string, skip *User, t api.PT, payload any) {
	if room == "" {
		return
	}
	for _, m := range h.registry.Members(room) {
		if m != skip {
			m.Notify(t, payload)
		}
	}
}

// disconnect finalizes a gone connection. An explicit leave may have
// raced it, in which case the registry reports nothing to do.
func (h *Hub) disconnect(u *User) {
	h.users.RemoveByKey(u.id.String())
	if room, rest, ok := h.registry.Leave(u); ok {
		u.log.Info().Msgf("%v left room [%v]", u.name, room)
		notice := api.UserLeftNotice{Id: u.id.String(), Name: u.name}
		for _, m := range rest {
			m.Notify(api.UserLeft, notice)
		}
	}
	u.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
}
