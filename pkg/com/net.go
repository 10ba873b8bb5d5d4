package com

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/okonor/parley/pkg/logger"
	ws "github.com/okonor/parley/pkg/network/websocket"
)

type (
	// In is a wire packet of some unspecified payload
	// to be unwrapped by the type tag on the receiving side.
	In struct {
		Id      Uid             `json:"id,omitempty"`
		T       uint16          `json:"t"`
		Payload json.RawMessage `json:"p,omitempty"`
	}
	// Out is an outgoing wire packet.
	Out struct {
		Id      string `json:"id,omitempty"`
		T       uint16 `json:"t"`
		Payload any    `json:"p,omitempty"`
	}

	Connector struct {
		wu *websocket.Upgrader
	}
	Client struct {
		conn     *ws.WS
		queue    map[Uid]*call
		onPacket func(packet In)
		mu       sync.Mutex
	}
	call struct {
		done     chan struct{}
		err      error
		Response In
	}
	Option = func(c *Connector)
)

var (
	errConnClosed = errors.New("connection closed")
	errTimeout    = errors.New("timeout")
)
var outPool = sync.Pool{New: func() any { o := Out{}; return &o }}

func WithOrigin(url string) Option { return func(c *Connector) { c.wu = ws.NewUpgrader(url) } }

const callTimeout = 5 * time.Second

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*Client, error) {
	var conn *ws.WS
	var err error
	if co.wu != nil {
		sock, e := co.wu.Upgrade(w, r, nil)
		if e != nil {
			return nil, e
		}
		conn, err = ws.NewServerWithConn(sock, log)
	} else {
		conn, err = ws.NewServer(w, r, log)
	}
	return connect(conn, err)
}

func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*Client, error) {
	return connect(ws.NewClient(address, log))
}

func connect(conn *ws.WS, err error) (*Client, error) {
	if err != nil {
		return nil, err
	}
	client := &Client{conn: conn, queue: make(map[Uid]*call, 1)}
	client.conn.OnMessage = client.handleMessage
	return client, nil
}

func (c *Client) OnPacket(fn func(packet In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

func (c *Client) Listen() { c.mu.Lock(); c.conn.Listen(); c.mu.Unlock() }

func (c *Client) Close() {
	c.conn.Close()
	c.drain(errConnClosed)
}

// Call makes a blocking request and waits for the response
// with the matching packet id or a timeout.
func (c *Client) Call(type_ uint16, payload any) ([]byte, error) {
	rq := outPool.Get().(*Out)
	id := NewUid()
	rq.Id, rq.T, rq.Payload = id.String(), type_, payload
	r, err := json.Marshal(rq)
	outPool.Put(rq)
	if err != nil {
		return nil, err
	}

	task := &call{done: make(chan struct{})}
	c.mu.Lock()
	c.queue[id] = task
	c.conn.Write(r)
	c.mu.Unlock()
	select {
	case <-task.done:
	case <-time.After(callTimeout):
		task.err = errTimeout
	}
	return task.Response.Payload, task.err
}

// Notify just sends a message and goes further.
func (c *Client) Notify(type_ uint16, pl any) error {
	rq := outPool.Get().(*Out)
	rq.Id, rq.T, rq.Payload = "", type_, pl
	defer outPool.Put(rq)
	return c.SendPacket(rq)
}

// Route sends a response to a request packet, preserving its tracking id.
func (c *Client) Route(p In, pl any) error {
	rq := outPool.Get().(*Out)
	rq.Id, rq.T, rq.Payload = p.Id.String(), p.T, pl
	defer outPool.Put(rq)
	return c.SendPacket(rq)
}

func (c *Client) SendPacket(packet *Out) error {
	r, err := json.Marshal(packet)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn.Write(r)
	c.mu.Unlock()
	return nil
}

func (c *Client) Wait() chan struct{} { return c.conn.Done }

func (c *Client) handleMessage(message []byte, err error) {
	if err != nil {
		return
	}

	var res In
	if err = json.Unmarshal(message, &res); err != nil {
		return
	}

	// empty id implies that we won't track (wait) the response
	if !res.Id.IsEmpty() {
		if task := c.pop(res.Id); task != nil {
			task.Response = res
			close(task.done)
			return
		}
	}
	c.mu.Lock()
	fn := c.onPacket
	c.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// pop extracts and removes a task from the queue by its id.
func (c *Client) pop(id Uid) *call {
	c.mu.Lock()
	task := c.queue[id]
	delete(c.queue, id)
	c.mu.Unlock()
	return task
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.mu.Lock()
	for _, task := range c.queue {
		if task.err == nil {
			task.err = err
		}
		close(task.done)
	}
	c.queue = map[Uid]*call{}
	c.mu.Unlock()
}
