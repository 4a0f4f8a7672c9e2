package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSListener subscribes to <Subject>.<event> on a NATS server.
type NATSListener struct {
	URL     string
	Subject string
	Name    string
	Logger  *slog.Logger
}

func NewNATSListener(u, subject string, logger *slog.Logger) *NATSListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSListener{
		URL:     u,
		Subject: strings.TrimSuffix(subject, "."),
		Name:    "table-call",
		Logger:  logger.With("component", "push.nats"),
	}
}

func (l *NATSListener) Listen(ctx context.Context, handle func(Event)) error {
	opts := []nats.Option{
		nats.Name(l.Name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Logger.Debug("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Logger.Debug("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(l.URL, opts...)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.Subscribe(l.Subject+".>", func(m *nats.Msg) {
		if ev, ok := l.eventFromMsg(m); ok {
			handle(ev)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

func (l *NATSListener) eventFromMsg(m *nats.Msg) (Event, bool) {
	name := strings.TrimPrefix(m.Subject, l.Subject+".")
	if name == "" || name == m.Subject {
		return Event{}, false
	}
	ev := Event{Name: name}
	if json.Valid(m.Data) {
		ev.Payload = json.RawMessage(m.Data)
	}
	return ev, true
}
