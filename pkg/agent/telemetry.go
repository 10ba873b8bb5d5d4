package agent

import (
	"sync"
	"time"

	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/monitoring"
	"github.com/okonor/parley/pkg/webrtc"
)

// QualitySnapshot is one periodic cut of a peer link. Frame fields
// are zero until the transport starts reporting decoded video.
type QualitySnapshot struct {
	Peer            string
	BitrateKbps     float64
	RTT             time.Duration
	Jitter          float64
	PacketsLost     int32
	Codec           string
	FrameWidth      uint32
	FrameHeight     uint32
	FramesPerSecond float64
	At              time.Time
}

type point struct {
	bytes uint64
	at    time.Time
}

// Sampler derives receive bitrate from the cumulative transport
// counters. It keeps one previous point per peer and nothing else,
// so memory stays flat no matter how long a session lives.
type Sampler struct {
	mu   sync.Mutex
	prev map[string]point

	log  *logger.Logger
	done chan struct{}
	once sync.Once
}

func NewSampler(log *logger.Logger) *Sampler {
	return &Sampler{
		prev: make(map[string]point),
		log:  log,
		done: make(chan struct{}),
	}
}

// Observe folds one counter cut into the sampler. The first cut for
// a peer sets the baseline and reports nothing. A counter running
// backwards, a transport reset, also resets the baseline.
func (s *Sampler) Observe(peer string, st webrtc.Stats, at time.Time) (QualitySnapshot, bool) {
	s.mu.Lock()
	last, seen := s.prev[peer]
	s.prev[peer] = point{bytes: st.BytesReceived, at: at}
	s.mu.Unlock()

	if !seen || st.BytesReceived < last.bytes {
		return QualitySnapshot{}, false
	}
	dt := at.Sub(last.at).Seconds()
	if dt <= 0 {
		return QualitySnapshot{}, false
	}
	snap := QualitySnapshot{
		Peer:            peer,
		BitrateKbps:     float64(st.BytesReceived-last.bytes) * 8 / dt / 1000,
		RTT:             st.RTT,
		Jitter:          st.Jitter,
		PacketsLost:     st.PacketsLost,
		Codec:           st.Codec,
		FrameWidth:      st.FrameWidth,
		FrameHeight:     st.FrameHeight,
		FramesPerSecond: st.FramesPerSecond,
		At:              at,
	}
	monitoring.PeerBitrate.WithLabelValues(peer).Set(snap.BitrateKbps)
	monitoring.PeerRTT.WithLabelValues(peer).Set(snap.RTT.Seconds())
	return snap, true
}

// Forget discards the baseline of a gone peer.
func (s *Sampler) Forget(peer string) {
	s.mu.Lock()
	delete(s.prev, peer)
	s.mu.Unlock()
	monitoring.PeerBitrate.DeleteLabelValues(peer)
	monitoring.PeerRTT.DeleteLabelValues(peer)
}

// Run samples the source until Stop. Blocks.
func (s *Sampler) Run(interval time.Duration, source func() map[string]webrtc.Stats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			for peer, st := range source() {
				if snap, ok := s.Observe(peer, st, now); ok {
					s.log.Debug().
						Str("peer", peer).
						Float64("kbps", snap.BitrateKbps).
						Float64("fps", snap.FramesPerSecond).
						Dur("rtt", snap.RTT).
						Int32("lost", snap.PacketsLost).
						Msg("link")
				}
			}
		}
	}
}

// Stop terminates the sampling loop. Safe to call more than once.
func (s *Sampler) Stop() { s.once.Do(func() { close(s.done) }) }
