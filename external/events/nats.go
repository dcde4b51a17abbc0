package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "ko2bn.sessions"

// publisher is the part of *nats.Conn used here.
type publisher interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	conn publisher
	nc   *nats.Conn
}

func NewNATSPublisher(natsURL string) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("ko2bn-backend"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, nc: nc}, nil
}

func TranscriptSubject(code string) string {
	return fmt.Sprintf("%s.%s.transcripts", subjectPrefix, code)
}

func StatusSubject(code string) string {
	return fmt.Sprintf("%s.%s.status", subjectPrefix, code)
}

func (p *NATSPublisher) PublishTranscript(_ context.Context, event events.TranscriptEvent) error {
	return p.publishJSON(TranscriptSubject(event.SessionCode), event)
}

func (p *NATSPublisher) PublishSessionStatus(_ context.Context, event events.SessionEvent) error {
	return p.publishJSON(StatusSubject(event.SessionCode), event)
}

func (p *NATSPublisher) publishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Shutdown flushes buffered events and closes the connection.
func (p *NATSPublisher) Shutdown() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
