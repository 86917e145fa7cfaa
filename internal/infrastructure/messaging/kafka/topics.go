// Package kafka provides the event producer and consumer for the cross-sell
// ingestion pipeline.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic constants.  The defaults in the config package point here; deployments
// can override per environment.
const (
	TopicIngestRows         = "crosssell.ingest.rows"
	TopicOpportunityScored  = "crosssell.opportunity.scored"
	TopicIngestDeadLetter   = "crosssell.ingest.dead_letter"
)

// EventEnvelope standardises event messages on every topic.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope wraps a payload struct in the standard envelope.
func NewEnvelope(eventType, source string, payload interface{}) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "1",
		Payload:       raw,
	}, nil
}

// IngestRowsPayload carries a batch of raw rows to the ingestion worker.
type IngestRowsPayload struct {
	AgencyID string            `json:"agency_id"`
	BatchID  string            `json:"batch_id"`
	Rows     []json.RawMessage `json:"rows"`
}

// OpportunityScoredPayload announces a scored (or re-scored) opportunity.
type OpportunityScoredPayload struct {
	OpportunityID string    `json:"opportunity_id"`
	AgencyID      string    `json:"agency_id"`
	CustomerName  string    `json:"customer_name"`
	Segment       string    `json:"segment"`
	Score         int       `json:"score"`
	Tier          string    `json:"tier"`
	Enhanced      bool      `json:"enhanced"`
	ScoredAt      time.Time `json:"scored_at"`
}
