package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"feedflow/models"
)

const writeWait = 5 * time.Second

var errPingTimeout = errors.New("no pong before ping timeout")

// inbound is one transport message as read by the reader goroutine.
type inbound struct {
	data       []byte
	receivedAt time.Time
}

// session is one established websocket connection. A single reader
// goroutine owns reads; the receive loop owns writes.
type session struct {
	id     string
	conn   *websocket.Conn
	frames chan inbound
	errs   chan error
	pongs  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newDialer(handshake time.Duration) *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}
}

func dial(ctx context.Context, d *websocket.Dialer, endpoint, id string) (*session, error) {
	conn, resp, err := d.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	s := &session{
		id:     id,
		conn:   conn,
		frames: make(chan inbound),
		errs:   make(chan error, 1),
		pongs:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		select {
		case s.pongs <- struct{}{}:
		default:
		}
		return nil
	})
	return s, nil
}

func (s *session) join(channel string) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(models.NewJoinMessage(channel))
}

// start launches the reader. Frames are handed over unbuffered so the
// receive loop sees them in arrival order.
func (s *session) start() {
	go func() {
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				s.errs <- err
				return
			}
			select {
			case s.frames <- inbound{data: data, receivedAt: time.Now()}:
			case <-s.done:
				return
			}
		}
	}()
}

func (s *session) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close sends a normal closure when possible and releases the socket.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

// endpoint adds the access token to raw as a query parameter.
func endpoint(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// redact hides the token in a URL meant for logs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
