package agent

import (
	"context"
	"fmt"
	"net/url"

	"github.com/okonor/parley/pkg/api"
	"github.com/okonor/parley/pkg/com"
	"github.com/okonor/parley/pkg/config"
	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/monitoring"
	"github.com/okonor/parley/pkg/service"
	"github.com/okonor/parley/pkg/webrtc"
)

// Agent is a headless room participant: it joins a room over the
// coordinator, keeps one peer session per other member, and samples
// link quality while connections live.
type Agent struct {
	conf config.Config
	log  *logger.Logger

	id      string
	cord    *com.Client
	manager *Manager
	sampler *Sampler

	services service.Group
}

func New(conf config.Config, log *logger.Logger) *Agent {
	a := &Agent{conf: conf, log: log, sampler: NewSampler(log)}
	if conf.Agent.Monitoring.IsEnabled() {
		a.services.Add(monitoring.New(conf.Agent.Monitoring, "agent", log))
	}
	return a
}

// cordSignaler pushes negotiation packets up to the coordinator,
// which re-stamps the sender and forwards them to the target.
type cordSignaler struct{ c *com.Client }

func (s cordSignaler) Offer(target, sdp string) error {
	return s.c.Notify(uint16(api.Offer), api.OfferRequest{Target: target, Sdp: sdp})
}
func (s cordSignaler) Answer(target, sdp string) error {
	return s.c.Notify(uint16(api.Answer), api.AnswerRequest{Target: target, Sdp: sdp})
}
func (s cordSignaler) Candidate(target, candidate string) error {
	return s.c.Notify(uint16(api.IceCandidate), api.IceRequest{Target: target, Candidate: candidate})
}

// Start dials the coordinator, joins the configured room, and begins
// serving negotiation traffic. It returns after the join handshake.
func (a *Agent) Start() error {
	conf := a.conf.Agent
	scheme := "ws"
	if conf.Network.Secure {
		scheme = "wss"
	}
	address := url.URL{Scheme: scheme, Host: conf.Network.Address, Path: conf.Network.Endpoint}
	cord, err := com.NewConnector().NewClient(address, a.log)
	if err != nil {
		return err
	}
	a.cord = cord

	ap, err := webrtc.NewApiFactory(a.conf.Webrtc, a.log, nil)
	if err != nil {
		return err
	}
	a.manager = NewManager(cordSignaler{cord}, func(onConnect, onClose func()) SessionPeer {
		p := webrtc.New(a.log, ap)
		p.OnConnect = onConnect
		p.OnClose = onClose
		p.OnMessage = func(data []byte) {
			a.log.Debug().Msgf("peer data, %v bytes", len(data))
		}
		return p
	}, a.log)
	a.manager.OnSessionClosed = a.sampler.Forget

	cord.OnPacket(a.route)
	cord.Listen()

	raw, err := cord.Call(uint16(api.JoinRoom), api.JoinRoomRequest{Name: conf.Name, Room: conf.Room})
	if err != nil {
		return err
	}
	joined := api.Unwrap[api.RoomJoinedResponse](raw)
	if joined == nil {
		return api.ErrMalformed
	}
	if joined.Error != "" {
		return fmt.Errorf("join rejected: %v", joined.Error)
	}
	a.id = joined.Id
	// the members already in the room will dial us, nothing to start
	a.log.Info().Msgf("joined room [%v] as %v, %v members inside",
		joined.Room, joined.Id, len(joined.Others))

	go a.sampler.Run(conf.Telemetry.Interval, a.manager.ConnectedStats)
	a.services.Start()
	return nil
}

func (a *Agent) route(p com.In) {
	switch api.PT(p.T) {
	case api.UserJoined:
		if dat := api.Unwrap[api.UserJoinedNotice](p.Payload); dat != nil {
			a.log.Info().Msgf("%v entered the room", dat.Name)
			a.manager.HandleUserJoined(api.Member(*dat))
		}
	case api.UserLeft:
		if dat := api.Unwrap[api.UserLeftNotice](p.Payload); dat != nil {
			a.log.Info().Msgf("%v left the room", dat.Name)
			a.manager.HandleUserLeft(dat.Id)
		}
	case api.Offer:
		if dat := api.Unwrap[api.OfferRelay](p.Payload); dat != nil {
			a.manager.HandleOffer(dat.Source, dat.Name, dat.Sdp)
		}
	case api.Answer:
		if dat := api.Unwrap[api.AnswerRelay](p.Payload); dat != nil {
			a.manager.HandleAnswer(dat.Source, dat.Sdp)
		}
	case api.IceCandidate:
		if dat := api.Unwrap[api.IceRelay](p.Payload); dat != nil {
			a.manager.HandleCandidate(dat.Source, dat.Candidate)
		}
	case api.NewMessage:
		if dat := api.Unwrap[api.NewMessageNotice](p.Payload); dat != nil {
			a.log.Info().Msgf("%v: %v", dat.Name, dat.Message)
		}
	case api.NewFile:
		if dat := api.Unwrap[api.NewFileNotice](p.Payload); dat != nil {
			a.log.Info().Msgf("%v shared %v, %v bytes", dat.Name, dat.Filename, len(dat.File))
		}
	default:
		a.log.Warn().Msgf("unhandled packet type %v", p.T)
	}
}

// Wait blocks until the coordinator connection is gone.
func (a *Agent) Wait() { <-a.cord.Wait() }

func (a *Agent) Shutdown(ctx context.Context) error {
	a.sampler.Stop()
	if a.manager != nil {
		a.manager.Close()
	}
	if a.cord != nil {
		a.cord.Close()
	}
	return a.services.Shutdown(ctx)
}
