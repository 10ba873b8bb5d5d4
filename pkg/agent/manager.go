package agent

import (
	"sync"

	"github.com/okonor/parley/pkg/api"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/webrtc"
)

type (
	// Signaler carries negotiation messages to one remote participant
	// through the coordinator.
	Signaler interface {
		Offer(target, sdp string) error
		Answer(target, sdp string) error
		Candidate(target, candidate string) error
	}
	// PeerFactory builds a fresh transport with its state hooks bound.
	PeerFactory func(onConnect, onClose func()) SessionPeer
)

// Manager drives every peer session of the agent. All transitions are
// serialized on one lock, so handlers can be called from the socket
// reader and pion threads alike. Transport teardown happens outside
// the lock: the transport fires its close hook back into the manager.
//
// Offers always travel from the senior room member to the new arrival:
// a join gives the newcomer nothing to do, and every UserJoined notice
// makes the older members dial out. The two ends of a pair can never
// offer to each other at once.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	sig     Signaler
	newPeer PeerFactory
	log     *logger.Logger

	// OnSessionClosed fires after a session is gone, outside the lock.
	OnSessionClosed func(id string)
}

func NewManager(sig Signaler, newPeer PeerFactory, log *logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		sig:      sig,
		newPeer:  newPeer,
		log:      log,
	}
}

// HandleUserJoined dials out to a new arrival. This side is by
// definition the older room member, hence the offering one.
func (m *Manager) HandleUserJoined(member api.Member) {
	m.mu.Lock()
	if _, ok := m.sessions[member.Id]; ok {
		m.mu.Unlock()
		m.log.Warn().Msgf("duplicate join notice for [%v]", member.Id)
		return
	}
	s := newSession(member.Id, member.Name, m.log)
	s.peer = m.newPeer(m.connected(member.Id), m.closed(member.Id))
	m.sessions[member.Id] = s

	sdp, err := s.peer.NewOffer(m.trickle(member.Id))
	if err != nil {
		m.dropLocked(s)
		m.mu.Unlock()
		s.log.Error().Err(err).Msg("offer fail")
		s.peer.Disconnect()
		return
	}
	s.state = OfferSent
	m.mu.Unlock()

	if err = m.sig.Offer(member.Id, sdp); err != nil {
		s.log.Error().Err(err).Msg("offer send fail")
	}
}

// HandleOffer picks up a dial-in from an older member.
func (m *Manager) HandleOffer(source, name, sdp string) {
	m.mu.Lock()
	if _, ok := m.sessions[source]; ok {
		m.mu.Unlock()
		// both sides offering means a broken ordering somewhere,
		// keep the session we already have
		m.log.Warn().Msgf("offer for live session [%v] ignored", source)
		return
	}
	s := newSession(source, name, m.log)
	s.peer = m.newPeer(m.connected(source), m.closed(source))
	s.state = OfferReceived
	m.sessions[source] = s

	answer, err := s.peer.NewAnswer(sdp, m.trickle(source))
	if err != nil {
		m.dropLocked(s)
		m.mu.Unlock()
		s.log.Error().Err(err).Msg("answer fail")
		s.peer.Disconnect()
		return
	}
	s.remoteSet = true
	s.flushCandidates()
	s.state = Negotiating
	m.mu.Unlock()

	if err = m.sig.Answer(source, answer); err != nil {
		s.log.Error().Err(err).Msg("answer send fail")
	}
}

// HandleAnswer completes a dial-out. Answers for anything but a
// freshly sent offer are stale, a leftover of a session that was
// torn down and re-established since.
func (m *Manager) HandleAnswer(source, sdp string) {
	m.mu.Lock()
	s, ok := m.sessions[source]
	if !ok || s.state != OfferSent {
		m.mu.Unlock()
		m.log.Debug().Msgf("stale answer from [%v] dropped", source)
		return
	}
	if err := s.peer.SetRemoteSDP(sdp); err != nil {
		m.dropLocked(s)
		m.mu.Unlock()
		s.log.Error().Err(err).Msg("remote sdp fail")
		s.peer.Disconnect()
		return
	}
	s.remoteSet = true
	s.flushCandidates()
	s.state = Negotiating
	m.mu.Unlock()
}

// HandleCandidate feeds a remote candidate in, buffering it when the
// remote description has not landed yet.
func (m *Manager) HandleCandidate(source, candidate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[source]
	if !ok {
		m.log.Debug().Msgf("candidate for unknown [%v] dropped", source)
		return
	}
	if !s.remoteSet {
		s.pending = append(s.pending, candidate)
		return
	}
	if err := s.peer.AddCandidate(candidate); err != nil {
		s.log.Error().Err(err).Msg("candidate fail")
	}
}

// HandleUserLeft tears the session down. A second notice for the
// same participant is a no-op.
func (m *Manager) HandleUserLeft(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		m.dropLocked(s)
	}
	m.mu.Unlock()
	if ok {
		s.peer.Disconnect()
		m.closedHook(id)
	}
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	gone := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		s.state = Closed
		gone = append(gone, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range gone {
		s.peer.Disconnect()
		m.closedHook(s.id)
	}
}

// ConnectedStats cuts the transport counters of every connected
// session, keyed by participant id.
func (m *Manager) ConnectedStats() map[string]webrtc.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]webrtc.Stats, len(m.sessions))
	for id, s := range m.sessions {
		if s.state == Connected {
			out[id] = s.peer.Stats()
		}
	}
	return out
}

// State reports the session state for the participant, Closed when
// there is none.
func (m *Manager) State(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s.state
	}
	return Closed
}

func (m *Manager) dropLocked(s *Session) {
	s.state = Closed
	s.pending = nil
	delete(m.sessions, s.id)
}

func (m *Manager) closedHook(id string) {
	if m.OnSessionClosed != nil {
		m.OnSessionClosed(id)
	}
}

// trickle relays local candidates out, skipping the gathering end
// marker which has no wire form.
func (m *Manager) trickle(target string) func(string) {
	return func(candidate string) {
		if candidate == "" {
			return
		}
		if err := m.sig.Candidate(target, candidate); err != nil {
			m.log.Error().Err(err).Msg("candidate send fail")
		}
	}
}

func (m *Manager) connected(id string) func() {
	return func() {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if ok && s.state != Closed {
			s.state = Connected
			s.log.Info().Msgf("session with %v is up", s.name)
		}
		m.mu.Unlock()
	}
}

// closed handles a transport shutting down on its own, say a failed
// ICE check. Manager-initiated teardown removes the session first,
// so a late callback finds nothing and stays a no-op.
func (m *Manager) closed(id string) func() {
	return func() {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if ok {
			m.dropLocked(s)
		}
		m.mu.Unlock()
		if ok {
			m.closedHook(id)
		}
	}
}
