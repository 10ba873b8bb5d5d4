package config

import (
	goflag "flag"
	"time"

	flag "github.com/spf13/pflag"
)

type (
	Config struct {
		Coordinator Coordinator
		Agent       Agent
		Webrtc      Webrtc
	}
	Coordinator struct {
		Debug      bool
		Server     Server
		Monitoring Monitoring
		// Origin restricts websocket upgrades to one origin when set.
		Origin string
		// WebRoot points to the static assets of the browser client.
		WebRoot string `fig:"webroot" default:"./web"`
	}
	Agent struct {
		Debug      bool
		Name       string `fig:"name" default:"agent"`
		Room       string
		Network    Network
		Telemetry  Telemetry
		Monitoring Monitoring
	}
	Network struct {
		Address  string `fig:"address" default:"localhost:8000"`
		Secure   bool
		Endpoint string `fig:"endpoint" default:"/ws"`
	}
	Server struct {
		Address  string `fig:"address" default:":8000"`
		Https    bool
		Tls      Tls
		PortRoll bool
	}
	Tls struct {
		HttpsCert string
		HttpsKey  string
		Domain    string
	}
	Monitoring struct {
		Port             int    `fig:"port" default:"6601"`
		URLPrefix        string `fig:"urlprefix"`
		MetricEnabled    bool   `fig:"metricenabled"`
		ProfilingEnabled bool   `fig:"profilingenabled"`
	}
	Telemetry struct {
		Interval time.Duration `fig:"interval" default:"3s"`
	}
	Webrtc struct {
		DisableDefaultInterceptors bool
		IceServers                 []IceServer
		IcePorts                   struct {
			Min uint16
			Max uint16
		}
		IceIpMap   string
		SinglePort int
		LogLevel   int `fig:"loglevel" default:"3"`
	}
	IceServer struct {
		Urls       string `fig:"urls" default:"stun:stun.l.google.com:19302"`
		Username   string
		Credential string
	}
)

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

func (w Webrtc) HasPortRange() bool  { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w Webrtc) HasSinglePort() bool { return w.SinglePort > 0 }
func (w Webrtc) HasIceIpMap() bool   { return w.IceIpMap != "" }

// NewConfig loads the shared config file with env overrides applied.
func NewConfig() (conf Config) {
	if err := LoadConfig(&conf, ""); err != nil {
		panic(err)
	}
	return
}

// ParseFlags updates the config with the values from the command line.
func (c *Config) ParseFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.BoolVarP(&c.Coordinator.Debug, "debug", "d", c.Coordinator.Debug, "debug mode")
	flag.StringVar(&c.Coordinator.Server.Address, "address", c.Coordinator.Server.Address, "server address")
	flag.Parse()
}

func (c *Config) ParseAgentFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.BoolVarP(&c.Agent.Debug, "debug", "d", c.Agent.Debug, "debug mode")
	flag.StringVarP(&c.Agent.Name, "name", "n", c.Agent.Name, "display name in the room")
	flag.StringVarP(&c.Agent.Room, "room", "r", c.Agent.Room, "room to join")
	flag.StringVar(&c.Agent.Network.Address, "address", c.Agent.Network.Address, "coordinator address")
	flag.Parse()
}
