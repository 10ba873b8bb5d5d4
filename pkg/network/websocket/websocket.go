package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okonor/parley/pkg/logger"
)

const (
	maxMessageSize = 512 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	readWait       = 120 * time.Second
	writeWait      = 10 * time.Second
)

type WS struct {
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	OnMessage WSMessageHandler

	pingPong bool
	once     sync.Once

	shutdown *sync.WaitGroup
	Done     chan struct{}
}

type WSMessageHandler func(message []byte, err error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

// Upgrader with a custom origin check, for locked-down deployments.
func NewUpgrader(origin string) *websocket.Upgrader {
	u := upgrader
	if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	} else {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &u
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		close(ws.send)
		ws.shutdown.Done()
		ws.close()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Msg("ws read")
			}
			break
		}
		ws.OnMessage(message, err)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var ticker *time.Ticker
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		ws.shutdown.Done()
		ws.close()
	}()
	if ws.pingPong {
		for {
			select {
			case message, ok := <-ws.send:
				if !ws.handleMessage(message, ok) {
					return
				}
			case <-ticker.C:
				if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
	for message := range ws.send {
		if !ws.handleMessage(message, true) {
			return
		}
	}
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
}

func (ws *WS) handleMessage(message []byte, ok bool) bool {
	if !ok {
		_ = ws.conn.write(websocket.CloseMessage, []byte{})
		return false
	}
	if err := ws.conn.write(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

// NewServerWithConn wraps an already upgraded connection.
// Server side keeps the connection alive with ping/pong.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	return newSocket(conn, true, log), nil
}

func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	shut := sync.WaitGroup{}
	shut.Add(2)

	safeConn := deadlinedConn{sock: conn, wt: writeWait}

	ws := &WS{
		conn:     safeConn,
		send:     make(chan []byte, 16),
		log:      log,
		pingPong: pingPong,
		shutdown: &shut,
		Done:     make(chan struct{}, 1),
	}
	return ws
}

// Listen starts the read/write pumps of the connection.
// The OnMessage handler should be set before this point.
func (ws *WS) Listen() {
	go ws.writer()
	go ws.reader()
}

func (ws *WS) Write(data []byte) {
	defer func() { recover() }() // send on closed chan during teardown
	ws.send <- data
}

func (ws *WS) Close() {
	_ = ws.conn.write(websocket.CloseMessage, []byte{})
	_ = ws.conn.close()
}

func (ws *WS) close() {
	ws.once.Do(func() {
		_ = ws.conn.close()
		close(ws.Done)
	})
}
