package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"curation-service/internal/models"
)

// Event subjects published by the curation pipeline
const (
	SubjectBatchCompleted    = "catalog.curation.batch_completed"
	SubjectDuplicateResolved = "catalog.curation.duplicate_resolved"
	SubjectRemovalFlagged    = "catalog.curation.removal_flagged"
)

// CurationEvent is the wire shape of every published event
type CurationEvent struct {
	EventID   string                 `json:"eventId"`
	EventType string                 `json:"eventType"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// Publisher emits curation audit events over NATS. Publishing is
// fire-and-forget; a broker outage never blocks the pipeline.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS at the given URL
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("curation-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "curation-events"),
	}, nil
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// PublishBatchCompleted announces a finished pipeline run with its counters
func (p *Publisher) PublishBatchCompleted(ctx context.Context, logID uuid.UUID, stats *models.BatchStats) {
	p.publish(SubjectBatchCompleted, map[string]interface{}{
		"ingestionLogId":  logID.String(),
		"processed":       stats.Processed,
		"newProducts":     stats.NewProducts,
		"updatedProducts": stats.UpdatedProducts,
		"duplicates":      stats.Duplicates,
		"invalid":         stats.Invalid,
		"elapsedMs":       stats.Elapsed.Milliseconds(),
	})
}

// PublishDuplicateResolved announces one resolved duplicate set
func (p *Publisher) PublishDuplicateResolved(ctx context.Context, canonicalID uuid.UUID, duplicateIDs []uuid.UUID, method models.DuplicateMethod) {
	ids := make([]string, len(duplicateIDs))
	for i, id := range duplicateIDs {
		ids[i] = id.String()
	}
	p.publish(SubjectDuplicateResolved, map[string]interface{}{
		"canonicalProductId": canonicalID.String(),
		"duplicateIds":       ids,
		"method":             string(method),
	})
}

// PublishRemovalFlagged announces a newly tagged removal candidate
func (p *Publisher) PublishRemovalFlagged(ctx context.Context, productID uuid.UUID, reason models.RemovalReason) {
	p.publish(SubjectRemovalFlagged, map[string]interface{}{
		"productId": productID.String(),
		"reason":    string(reason),
	})
}

// publish serializes and sends asynchronously so the main flow never waits
func (p *Publisher) publish(subject string, payload map[string]interface{}) {
	event := CurationEvent{
		EventID:   uuid.New().String(),
		EventType: subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	go func() {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).WithField("subject", subject).Error("Failed to marshal curation event")
			return
		}
		if err := p.conn.Publish(subject, data); err != nil {
			p.logger.WithError(err).WithField("subject", subject).Error("Failed to publish curation event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"subject": subject,
			"eventId": event.EventID,
		}).Debug("Curation event published")
	}()
}
