package postback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/model"
)

// NATSPublisher publishes StatusEvents on <subject>.<project id>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	now     func() time.Time
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = "buildcore.status"
	}
	conn, err := nats.Connect(url, nats.Name("buildcore-postback"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS postback publisher initialized", "url", url, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject, now: time.Now}, nil
}

// NewNATSPublisherWithConn uses an existing connection.
func NewNATSPublisherWithConn(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = "buildcore.status"
	}
	return &NATSPublisher{conn: conn, subject: subject, now: time.Now}
}

// Subject returns the subject a build's events are published on.
func (p *NATSPublisher) Subject(build *model.Build) string {
	return p.subject + "." + strconv.FormatInt(build.ProjectID, 10)
}

// SendStatusPostback implements Notifier.
func (p *NATSPublisher) SendStatusPostback(_ context.Context, build *model.Build) error {
	data, err := json.Marshal(NewStatusEvent(build, p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(build), data); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}

	slog.Debug("Published status postback",
		logfields.BuildID(build.ID),
		logfields.ProjectID(build.ProjectID),
		logfields.BuildStatus(build.Status.String()))
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		return p.conn.Drain()
	}
	return nil
}
