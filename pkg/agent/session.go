package agent

import (
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/webrtc"
)

type State uint8

const (
	Created State = iota
	OfferSent
	OfferReceived
	Negotiating
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case OfferSent:
		return "offer-sent"
	case OfferReceived:
		return "offer-received"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// SessionPeer is the transport under one session.
type SessionPeer interface {
	NewOffer(onICECandidate func(candidate string)) (string, error)
	NewAnswer(remoteSdp string, onICECandidate func(candidate string)) (string, error)
	SetRemoteSDP(sdp string) error
	AddCandidate(candidate string) error
	Stats() webrtc.Stats
	Disconnect()
}

// Session tracks one negotiation with a remote participant.
// Candidates which arrive before the remote description are held
// in pending and replayed the moment the description lands.
type Session struct {
	id    string
	name  string
	state State
	peer  SessionPeer

	pending   []string
	remoteSet bool

	log *logger.Logger
}

func newSession(id, name string, log *logger.Logger) *Session {
	return &Session{
		id:   id,
		name: name,
		log:  log.Extend(log.With().Str("peer", id)),
	}
}

// flushCandidates replays candidates buffered before the remote
// description was known. Call only after remoteSet flips.
func (s *Session) flushCandidates() {
	for _, c := range s.pending {
		if err := s.peer.AddCandidate(c); err != nil {
			s.log.Error().Err(err).Msg("buffered candidate fail")
		}
	}
	s.pending = nil
}
