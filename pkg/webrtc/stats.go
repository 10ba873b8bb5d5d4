package webrtc

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Stats is a raw cut of the transport counters for one peer link.
// Counters are cumulative; rates are for the caller to derive.
type Stats struct {
	BytesReceived   uint64
	PacketsLost     int32
	Jitter          float64
	RTT             time.Duration
	Codec           string
	FrameWidth      uint32
	FrameHeight     uint32
	FramesPerSecond float64
	At              time.Time
}

// Stats scans the connection report for the inbound stream counters
// and the round-trip time of the active candidate pair. A connection
// without a report yet yields the zero value.
func (p *Peer) Stats() (s Stats) {
	if p.conn == nil {
		return
	}
	report := p.conn.GetStats()
	codecs := make(map[string]string)
	var codecId string
	for _, stat := range report {
		switch v := stat.(type) {
		case webrtc.CodecStats:
			codecs[v.ID] = v.MimeType
		case webrtc.InboundRTPStreamStats:
			s.BytesReceived += v.BytesReceived
			s.PacketsLost += v.PacketsLost
			s.Jitter = v.Jitter
			// frame fields stay zero on audio-only reports
			if v.FrameWidth > 0 {
				s.FrameWidth = v.FrameWidth
				s.FrameHeight = v.FrameHeight
			}
			if v.FramesPerSecond > 0 {
				s.FramesPerSecond = v.FramesPerSecond
			}
			if t := v.Timestamp.Time(); !t.IsZero() && t.After(s.At) {
				s.At = t
			}
			if v.CodecID != "" {
				codecId = v.CodecID
			}
		case webrtc.ICECandidatePairStats:
			if v.State == webrtc.StatsICECandidatePairStateSucceeded {
				s.RTT = time.Duration(v.CurrentRoundTripTime * float64(time.Second))
			}
		}
	}
	s.Codec = codecs[codecId]
	return
}
