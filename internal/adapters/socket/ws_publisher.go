// Package socket streams driver locations to the real-time listener over a
// websocket connection.
package socket

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"go.uber.org/atomic"
)

const (
	writeWait      = 5 * time.Second
	minRedialDelay = 500 * time.Millisecond
	maxRedialDelay = 30 * time.Second
	sendBuffer     = 64
)

// Frame is the text frame written for every message.
type Frame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// WSPublisher implements LocationPublisher. Publish only enqueues; Run owns
// the connection, redials with backoff and drops anything that cannot be
// delivered.
type WSPublisher struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	log    hclog.Logger

	send chan []byte

	connected *atomic.Bool
	sent      *atomic.Int64
	dropped   *atomic.Int64
}

func NewWSPublisher(url string, log hclog.Logger) *WSPublisher {
	if log == nil {
		log = hclog.NewNullLogger()
	}

	return &WSPublisher{
		url:       url,
		header:    http.Header{},
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:       log.Named("socket"),
		send:      make(chan []byte, sendBuffer),
		connected: atomic.NewBool(false),
		sent:      atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
	}
}

// Publish enqueues a currentLoc frame without blocking.
func (p *WSPublisher) Publish(u domain.LocationUpdate) {
	b, err := json.Marshal(Frame{Event: domain.CurrentLocationEvent, Data: u.Payload()})
	if err != nil {
		p.dropped.Inc()
		return
	}

	select {
	case p.send <- b:
	default:
		p.dropped.Inc()
	}
}

// Run keeps a connection open until ctx is done.
func (p *WSPublisher) Run(ctx context.Context) error {
	var conn *websocket.Conn
	delay := minRedialDelay
	var nextDial time.Time

	closeConn := func() {
		if conn != nil {
			_ = conn.Close()
			conn = nil
			p.connected.Store(false)
		}
	}
	defer closeConn()

	for {
		if conn == nil && !time.Now().Before(nextDial) {
			c, _, err := p.dialer.DialContext(ctx, p.url, p.header)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.log.Debug("socket dial failed", "url", p.url, "retry_in", delay, "error", err)
				nextDial = time.Now().Add(delay)
				delay = min(delay*2, maxRedialDelay)
			} else {
				p.log.Info("socket connected", "url", p.url)
				conn = c
				delay = minRedialDelay
				p.connected.Store(true)
				go p.discardReads(c)
			}
		}

		var redial <-chan time.Time
		if conn == nil {
			redial = time.After(time.Until(nextDial))
		}

		select {
		case <-ctx.Done():
			if conn != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
			}
			return nil

		case <-redial:

		case msg := <-p.send:
			if conn == nil {
				p.dropped.Inc()
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.log.Warn("socket write failed, reconnecting", "error", err)
				p.dropped.Inc()
				closeConn()
				nextDial = time.Now()
				continue
			}
			p.sent.Inc()
		}
	}
}

// discardReads drains the connection so control frames are processed. The
// listener never replies on this channel.
func (p *WSPublisher) discardReads(c *websocket.Conn) {
	for {
		if _, _, err := c.NextReader(); err != nil {
			return
		}
	}
}

func (p *WSPublisher) Connected() bool { return p.connected.Load() }

func (p *WSPublisher) Sent() int64 { return p.sent.Load() }

func (p *WSPublisher) Dropped() int64 { return p.dropped.Load() }
