package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// WebSocketURL derives the push endpoint from the backend REST base URL.
func WebSocketURL(backendURL, path string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported push scheme %q", u.Scheme)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	u.Path = ref.Path
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// WebSocketListener reads events from a websocket endpoint. With SocketIO
// set it speaks the engine.io v4 framing the café backend uses.
//
// One backoff spans dial failures and dropped connections. It is reset only
// after a connection stayed up for StableAfter.
type WebSocketListener struct {
	URL      string
	Header   http.Header
	SocketIO bool

	Dialer      *websocket.Dialer
	NewBackOff  func() backoff.BackOff
	StableAfter time.Duration
	Logger      *slog.Logger
}

var errDropped = errors.New("push connection dropped")

func NewWebSocketListener(u string, socketIO bool, logger *slog.Logger) *WebSocketListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketListener{
		URL:      u,
		SocketIO: socketIO,
		Dialer:   websocket.DefaultDialer,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
		StableAfter: 10 * time.Second,
		Logger:      logger.With("component", "push.websocket"),
	}
}

func (l *WebSocketListener) Listen(ctx context.Context, handle func(Event)) error {
	b := l.NewBackOff()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		conn, _, err := l.Dialer.DialContext(ctx, l.URL, l.Header)
		if err != nil {
			return struct{}{}, err
		}

		connected := time.Now()
		l.Logger.Debug("Push connected", "url", l.URL)
		err = l.read(ctx, conn, handle)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		if time.Since(connected) >= l.StableAfter {
			b.Reset()
		}
		if err == nil {
			err = errDropped
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.Logger.Debug("Push disconnected", "url", l.URL, "error", err, "retry_in", next)
		}),
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *WebSocketListener) read(ctx context.Context, conn *websocket.Conn, handle func(Event)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer func() {
		if stop() {
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if l.SocketIO {
			reply, payload, ok := engineFrame(data)
			if reply != "" {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
					return err
				}
			}
			if !ok {
				continue
			}
			data = payload
		}

		ev, err := ParseEvent(data)
		if err != nil {
			l.Logger.Debug("Dropping push frame", "error", err)
			continue
		}
		handle(ev)
	}
}

// engineFrame interprets one engine.io text packet. It returns the packet to
// send back (if any) and the socket.io event body when the frame carries one.
func engineFrame(data []byte) (reply string, event []byte, ok bool) {
	s := string(data)
	switch {
	case strings.HasPrefix(s, "0"):
		// open, join the default namespace
		return "40", nil, false
	case s == "2":
		return "3", nil, false
	case strings.HasPrefix(s, "42"):
		body := strings.TrimPrefix(s, "42")
		// namespaced events look like 42/ns,[...]
		if i := strings.IndexByte(body, '['); i > 0 && strings.HasPrefix(body, "/") {
			body = body[i:]
		}
		return "", []byte(body), true
	}
	return "", nil, false
}
