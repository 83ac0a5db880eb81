package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectAnalysisCompleted is the NATS subject for completed-analysis events.
const SubjectAnalysisCompleted = "analysis.completed"

// CompletedEvent carries the aggregate report to downstream subscribers
// (audit, notification). Delivery is fire-and-forget; subscribers that need
// guarantees must arrange their own.
type CompletedEvent struct {
	CallID      string    `json:"call_id,omitempty"`
	Role        string    `json:"role"`
	CompletedAt time.Time `json:"completed_at"`
	Report      *Report   `json:"report"`
}

// Publisher emits analysis lifecycle events.
type Publisher interface {
	PublishCompleted(event *CompletedEvent) error
}

// NATSPublisher publishes events to a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher connects to NATS for event publishing. Connection
// failures are returned so the caller can decide whether events are
// required; the analyzer itself treats a nil publisher as "no events".
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSPublisher{conn: nc, logger: logger}, nil
}

// PublishCompleted emits an analysis.completed event.
func (p *NATSPublisher) PublishCompleted(event *CompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(SubjectAnalysisCompleted, payload)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}
