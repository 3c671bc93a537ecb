// Package diagnostics streams a JSON transcript of FSM transitions to a
// remote websocket endpoint for live debugging and visualization. It is
// adapted from the teacher's stroke-streaming websocket client
// (ws_client.go): the same reconnect-with-backoff outer loop and
// ping/pong keepalive, carrying transition frames instead of ink
// strokes.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tapdaemon/tapd/internal/tapstate"
)

// transitionFrame is the wire shape for one streamed FSM step, matching
// the teacher's outStrokeBegin/outStrokePts/outStrokeEnd convention of a
// small tagged JSON struct per message.
type transitionFrame struct {
	T         string   `json:"t"`
	Time      int64    `json:"ts"`
	State     string   `json:"state"`
	Event     string   `json:"event"`
	NextState string   `json:"next_state"`
	TouchID   int      `json:"touch_id"`
	Actions   []string `json:"actions,omitempty"`
}

// Conn is a single websocket connection, identical in shape to the
// teacher's WSConn: a TCP-keepalive dialer, a background reader to drain
// control frames, and a ping ticker with a pong-deadline watchdog.
type Conn struct {
	conn *websocket.Conn
	mu   sync.Mutex

	done chan struct{}
	errC chan error
}

func dial(ctx context.Context, wsURL string, pingEvery, pongWait time.Duration) (*Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse diagnostics url: %w", err)
	}

	d := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		NetDialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 15 * time.Second,
		}).DialContext,
	}

	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial diagnostics %s: %w", wsURL, err)
	}

	c := &Conn{conn: conn, done: make(chan struct{}), errC: make(chan error, 1)}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop()
	go c.pingLoop(pingEvery)
	return c, nil
}

func (c *Conn) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	_ = c.conn.Close()
}

func (c *Conn) Err() <-chan error { return c.errC }

func (c *Conn) sendErr(err error) {
	select {
	case c.errC <- err:
	default:
	}
}

func (c *Conn) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.sendErr(err)
			return
		}
	}
}

func (c *Conn) pingLoop(pingEvery time.Duration) {
	t := time.NewTicker(pingEvery)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.mu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := c.conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			c.mu.Unlock()
			if err != nil {
				c.sendErr(err)
				return
			}
		}
	}
}

func (c *Conn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Client is an optional tapstate.TransitionObserver that streams every
// FSM step to a remote endpoint, reconnecting with exponential backoff
// exactly like the teacher's outer bridge loop. A write/dial failure is
// logged and dropped — a disconnected diagnostics client must never
// perturb the FSM it is merely observing.
type Client struct {
	url      string
	pingEvery, pongWait time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	conn *Conn
}

// NewClient builds a diagnostics client that is not yet connected; call
// Run in its own goroutine to connect and maintain the connection.
func NewClient(wsURL string, pingEvery, pongWait time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{url: wsURL, pingEvery: pingEvery, pongWait: pongWait, log: log}
}

// Run maintains the connection until stop is closed, mirroring
// RunBridgeForever's reconnect loop (500ms initial backoff, 1.7x growth,
// 5s cap, jittered).
func (c *Client) Run(stop <-chan struct{}) {
	reconnectDelay := 500 * time.Millisecond
	const maxReconnectDelay = 5 * time.Second

	for {
		select {
		case <-stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := dial(ctx, c.url, c.pingEvery, c.pongWait)
		cancel()
		if err != nil {
			jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
			c.log.Warn("diagnostics dial failed", "err", err, "retry_in", reconnectDelay+jitter)
			select {
			case <-stop:
				return
			case <-time.After(reconnectDelay + jitter):
			}
			reconnectDelay = time.Duration(math.Min(float64(maxReconnectDelay), float64(reconnectDelay)*1.7))
			continue
		}

		c.log.Info("diagnostics connected", "url", c.url)
		reconnectDelay = 500 * time.Millisecond
		c.setConn(conn)

		select {
		case <-stop:
			conn.Close()
			c.setConn(nil)
			return
		case err := <-conn.Err():
			c.log.Warn("diagnostics connection lost", "err", err)
		}
		conn.Close()
		c.setConn(nil)
	}
}

func (c *Client) setConn(conn *Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// OnTransition implements tapstate.TransitionObserver.
func (c *Client) OnTransition(tr tapstate.Transition) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	frame := transitionFrame{
		T:         "transition",
		Time:      tr.Time.UnixMilli(),
		State:     tr.State.String(),
		Event:     tr.Event.String(),
		NextState: tr.Next.String(),
		TouchID:   tr.TouchID,
		Actions:   tr.Actions,
	}
	if err := conn.writeJSON(frame); err != nil {
		c.log.Debug("diagnostics write failed", "err", err)
	}
}
