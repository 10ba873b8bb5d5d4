package webrtc

import (
	"encoding/base64"

	"github.com/goccy/go-json"
	"github.com/okonor/parley/pkg/logger"
	"github.com/pion/webrtc/v4"
)

// Peer is one leg of the mesh. Either side may originate it: the
// offering side dials with NewOffer, the answering side picks up
// with NewAnswer. Session descriptions and candidates cross the
// wire as opaque base64 JSON.
type Peer struct {
	api  *ApiFactory
	conn *webrtc.PeerConnection
	log  *logger.Logger

	OnMessage func(data []byte)
	OnConnect func()
	OnClose   func()
}

func New(log *logger.Logger, api *ApiFactory) *Peer { return &Peer{api: api, log: log} }

// Encode packs the object into base64 JSON for the signaling channel.
func Encode(obj any) (string, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Decode unpacks a base64 JSON value from the signaling channel.
func Decode(in string, obj any) error {
	b, err := base64.StdEncoding.DecodeString(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, obj)
}

// NewOffer starts the connection from the dialing side and returns
// the encoded local offer. Trickled candidates flow through the
// callback; a nil-candidate end marker is translated to "".
func (p *Peer) NewOffer(onICECandidate func(candidate string)) (string, error) {
	if err := p.start(onICECandidate); err != nil {
		return "", err
	}
	ch, err := p.conn.CreateDataChannel("data", nil)
	if err != nil {
		return "", err
	}
	p.setDataChannel(ch)
	// media flows in only, the agent sends no tracks of its own
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err = p.conn.AddTransceiverFromKind(kind,
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
			return "", err
		}
	}

	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return "", err
	}
	p.log.Debug().Msg("Created Offer")
	return Encode(offer)
}

// NewAnswer starts the connection from the receiving side: it applies
// the remote offer and returns the encoded local answer.
func (p *Peer) NewAnswer(remoteSdp string, onICECandidate func(candidate string)) (string, error) {
	if err := p.start(onICECandidate); err != nil {
		return "", err
	}
	p.conn.OnDataChannel(func(ch *webrtc.DataChannel) { p.setDataChannel(ch) })

	var offer webrtc.SessionDescription
	if err := Decode(remoteSdp, &offer); err != nil {
		return "", err
	}
	if err := p.conn.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err = p.conn.SetLocalDescription(answer); err != nil {
		return "", err
	}
	p.log.Debug().Msg("Created Answer")
	return Encode(answer)
}

func (p *Peer) start(onICECandidate func(string)) (err error) {
	if p.conn, err = p.api.NewPeer(); err != nil {
		return err
	}
	p.log.Debug().Msg("WebRTC start")
	p.conn.OnICECandidate(p.handleICECandidate(onICECandidate))
	p.conn.OnICEConnectionStateChange(p.handleICEState())
	// drain incoming media so the receive counters keep moving
	p.conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Debug().Str("kind", track.Kind().String()).Msg("track")
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					return
				}
			}
		}()
	})
	return nil
}

// SetRemoteSDP applies the answer on the offering side.
func (p *Peer) SetRemoteSDP(sdp string) error {
	var answer webrtc.SessionDescription
	if err := Decode(sdp, &answer); err != nil {
		return err
	}
	if err := p.conn.SetRemoteDescription(answer); err != nil {
		p.log.Error().Err(err).Msg("Set remote description from peer failed")
		return err
	}
	p.log.Debug().Msg("Set Remote Description")
	return nil
}

func (p *Peer) AddCandidate(candidate string) error {
	var ice webrtc.ICECandidateInit
	if err := Decode(candidate, &ice); err != nil {
		return err
	}
	if err := p.conn.AddICECandidate(ice); err != nil {
		return err
	}
	p.log.Debug().Str("candidate", ice.Candidate).Msg("Ice")
	return nil
}

func (p *Peer) handleICECandidate(callback func(string)) func(*webrtc.ICECandidate) {
	return func(ice *webrtc.ICECandidate) {
		// ICE gathering finish condition
		if ice == nil {
			callback("")
			p.log.Debug().Msg("ICE gathering was complete probably")
			return
		}
		candidate := ice.ToJSON()
		p.log.Debug().Str("candidate", candidate.Candidate).Msg("ICE")
		encoded, err := Encode(&candidate)
		if err != nil {
			p.log.Error().Err(err).Msg("ICE candidate encode fail")
			return
		}
		callback(encoded)
	}
}

func (p *Peer) handleICEState() func(webrtc.ICEConnectionState) {
	return func(state webrtc.ICEConnectionState) {
		p.log.Debug().Str(".state", state.String()).Msg("ICE")
		switch state {
		case webrtc.ICEConnectionStateChecking:
			// nothing
		case webrtc.ICEConnectionStateConnected:
			if p.OnConnect != nil {
				p.OnConnect()
			}
		case webrtc.ICEConnectionStateFailed:
			p.log.Error().Msgf("WebRTC connection fail! connection: %v, ice: %v, gathering: %v, signalling: %v",
				p.conn.ConnectionState(), p.conn.ICEConnectionState(), p.conn.ICEGatheringState(),
				p.conn.SignalingState())
			p.Disconnect()
		case webrtc.ICEConnectionStateClosed,
			webrtc.ICEConnectionStateDisconnected:
			p.Disconnect()
		default:
			p.log.Debug().Msg("ICE state is not handled!")
		}
	}
}

func (p *Peer) setDataChannel(ch *webrtc.DataChannel) {
	ch.OnOpen(func() {
		p.log.Debug().Str("label", ch.Label()).Msg("Data channel opened")
	})
	ch.OnError(func(err error) { p.log.Error().Err(err).Msg("data chan") })
	ch.OnMessage(func(m webrtc.DataChannelMessage) {
		if len(m.Data) == 0 {
			return
		}
		if p.OnMessage != nil {
			p.OnMessage(m.Data)
		}
	})
	ch.OnClose(func() { p.log.Debug().Msg("Data channel has been closed") })
}

func (p *Peer) Disconnect() {
	if p.conn == nil {
		return
	}
	if p.conn.ConnectionState() < webrtc.PeerConnectionStateDisconnected {
		// ignore this due to DTLS fatal: conn is closed
		_ = p.conn.Close()
	}
	if p.OnClose != nil {
		p.OnClose()
	}
	p.log.Debug().Msg("WebRTC stop")
}
