// Package ingestion provides the application-level service that turns raw
// customer rows into scored, persisted opportunities.  It sits between the
// transport layers (HTTP upload, Kafka worker) and the domain: rows in,
// counts out.
package ingestion

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/messaging/kafka"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

// EventTypeOpportunityScored is the envelope event type for scored events.
const EventTypeOpportunityScored = "opportunity.scored"

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator contracts
// ─────────────────────────────────────────────────────────────────────────────

// Producer publishes domain events.  Satisfied by the Kafka producer.
type Producer interface {
	Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error
}

// Archiver stores the raw batch for audit and replay.  Satisfied by the
// MinIO archive store.
type Archiver interface {
	ArchiveBatch(ctx context.Context, agencyID, batchID string, raw []byte) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Service interface
// ─────────────────────────────────────────────────────────────────────────────

// Service defines the ingestion application operations.
type Service interface {
	// IngestRows scores and persists a batch of raw rows.
	IngestRows(ctx context.Context, input *IngestInput) (*IngestResult, error)

	// UpdateWeights swaps the scoring weight profile at runtime.
	UpdateWeights(w crosssell.Weights)
}

// IngestInput is one batch of raw rows from an upload or a Kafka event.
type IngestInput struct {
	AgencyID string
	// BatchID identifies the batch for archival; generated when empty.
	BatchID string
	Rows    []json.RawMessage
}

// IngestResult reports what happened to each row of the batch.
type IngestResult struct {
	BatchID string `json:"batch_id"`

	Received int `json:"received"`
	// Dropped counts rows with no customer name or undecodable JSON.  They
	// are counted, never surfaced as errors.
	Dropped int `json:"dropped"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	// Failed counts rows the repository rejected.  There is no retry; the
	// archived batch is the replay path.
	Failed int `json:"failed"`

	// ArchiveObject is the object-store name of the archived raw batch,
	// empty when archival failed.
	ArchiveObject string `json:"archive_object,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// Options carries the service's scoring and publishing configuration.
type Options struct {
	Enhance     crosssell.EnhanceOptions
	Weights     crosssell.Weights
	PhoneRegion string
	ScoredTopic string
}

// ─────────────────────────────────────────────────────────────────────────────
// Implementation
// ─────────────────────────────────────────────────────────────────────────────

type serviceImpl struct {
	repo     opportunity.Repository
	producer Producer
	archiver Archiver
	metrics  *prometheus.Metrics
	logger   logging.Logger
	opts     Options

	mu       sync.RWMutex
	enhancer *crosssell.Enhancer
}

// NewService creates the ingestion service.  Producer and archiver may be nil
// in offline contexts (the seed CLI); the repository must not be.
func NewService(
	repo opportunity.Repository,
	producer Producer,
	archiver Archiver,
	metrics *prometheus.Metrics,
	logger logging.Logger,
	opts Options,
) Service {
	s := &serviceImpl{
		repo:     repo,
		producer: producer,
		archiver: archiver,
		metrics:  metrics,
		logger:   logger.Named("ingestion"),
		opts:     opts,
	}
	s.enhancer = buildEnhancer(opts.Weights, opts.PhoneRegion)
	return s
}

func buildEnhancer(w crosssell.Weights, region string) *crosssell.Enhancer {
	scorerOpts := []crosssell.ScorerOption{crosssell.WithWeights(w)}
	if region != "" {
		scorerOpts = append(scorerOpts, crosssell.WithPhoneRegion(region))
	}
	return crosssell.NewEnhancer(crosssell.NewScorer(scorerOpts...))
}

// UpdateWeights rebuilds the scorer with a new weight profile.  Called by the
// weight-file watcher; in-flight batches keep the profile they started with.
func (s *serviceImpl) UpdateWeights(w crosssell.Weights) {
	e := buildEnhancer(w, s.opts.PhoneRegion)
	s.mu.Lock()
	s.enhancer = e
	s.mu.Unlock()
	s.logger.Info("scoring weights updated",
		logging.Float64("gap", w.Gap),
		logging.Float64("timing", w.Timing),
		logging.Float64("value", w.Value),
		logging.Float64("risk", w.Risk),
		logging.Float64("contact", w.Contact))
}

func (s *serviceImpl) currentEnhancer() *crosssell.Enhancer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enhancer
}

func (s *serviceImpl) IngestRows(ctx context.Context, input *IngestInput) (*IngestResult, error) {
	if input == nil || len(input.Rows) == 0 {
		return nil, errors.New(errors.CodeIngestionEmptyBatch, "ingestion batch contains no rows")
	}

	start := time.Now()
	batchID := input.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	result := &IngestResult{BatchID: batchID, Received: len(input.Rows)}

	result.ArchiveObject = s.archive(ctx, input, batchID)

	enhancer := s.currentEnhancer()

	// Parse and score.  Rows without a customer name are dropped silently;
	// the archived batch keeps them recoverable.
	type scoredRow struct {
		record *crosssell.Record
		result crosssell.EnhancedResult
	}
	scored := make([]scoredRow, 0, len(input.Rows))
	for i, raw := range input.Rows {
		var rec crosssell.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.Dropped++
			s.logger.Debug("dropping undecodable row",
				logging.String("batch_id", batchID), logging.Int("row", i))
			continue
		}
		if strings.TrimSpace(rec.CustomerName) == "" {
			result.Dropped++
			continue
		}
		if rec.AgencyID == "" {
			rec.AgencyID = input.AgencyID
		}
		scored = append(scored, scoredRow{record: &rec, result: enhancer.Enhance(&rec, s.opts.Enhance)})
	}

	// Split into creates and rescores of existing customers.  Customer name
	// is the join key; sources carry no stable identifier.
	creates := make([]*opportunity.Opportunity, 0, len(scored))
	var published []*opportunity.Opportunity
	for _, row := range scored {
		existing, err := s.repo.GetByCustomerName(ctx,
			common.AgencyID(row.record.AgencyID), row.record.CustomerName)
		switch {
		case err == nil:
			existing.ApplyScore(row.record, row.result)
			if err := s.repo.Update(ctx, existing); err != nil {
				result.Failed++
				s.logger.Warn("rescore update failed",
					logging.String("customer", existing.CustomerName), logging.Err(err))
				continue
			}
			result.Updated++
			published = append(published, existing)
			s.metrics.ObserveScored(existing.Tier.String(), existing.Score)
		case errors.IsNotFound(err):
			o, newErr := opportunity.New(row.record, row.result)
			if newErr != nil {
				result.Dropped++
				continue
			}
			creates = append(creates, o)
		default:
			result.Failed++
			s.logger.Warn("customer lookup failed",
				logging.String("customer", row.record.CustomerName), logging.Err(err))
		}
	}

	if len(creates) > 0 {
		failed, err := s.repo.CreateBatch(ctx, creates)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeIngestionPersistFailed,
				"ingestion batch insert failed").WithDetail("batch_id: " + batchID)
		}
		for i, o := range creates {
			if rowErr, ok := failed[i]; ok {
				result.Failed++
				s.logger.Warn("row insert failed",
					logging.String("customer", o.CustomerName), logging.Err(rowErr))
				continue
			}
			result.Created++
			published = append(published, o)
			s.metrics.ObserveScored(o.Tier.String(), o.Score)
		}
	}

	s.publishScored(ctx, published)

	result.Elapsed = time.Since(start)
	s.metrics.IngestBatchesTotal.Inc()
	s.metrics.IngestRowsTotal.WithLabelValues("created").Add(float64(result.Created))
	s.metrics.IngestRowsTotal.WithLabelValues("updated").Add(float64(result.Updated))
	s.metrics.IngestRowsTotal.WithLabelValues("dropped").Add(float64(result.Dropped))
	s.metrics.IngestRowsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	s.metrics.ObserveBatch(result.Received, result.Elapsed)

	s.logger.Info("batch ingested",
		logging.String("batch_id", batchID),
		logging.String("agency_id", input.AgencyID),
		logging.Int("received", result.Received),
		logging.Int("created", result.Created),
		logging.Int("updated", result.Updated),
		logging.Int("dropped", result.Dropped),
		logging.Int("failed", result.Failed),
		logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

// archive stores the raw batch before any parsing so malformed rows are
// preserved too.  Archival failure degrades to a warning: scoring proceeds,
// only the replay trail is lost.
func (s *serviceImpl) archive(ctx context.Context, input *IngestInput, batchID string) string {
	if s.archiver == nil {
		return ""
	}
	raw, err := json.Marshal(input.Rows)
	if err != nil {
		s.logger.Warn("batch archive marshal failed", logging.Err(err))
		return ""
	}
	name, err := s.archiver.ArchiveBatch(ctx, input.AgencyID, batchID, raw)
	if err != nil {
		s.logger.Warn("batch archive failed",
			logging.String("batch_id", batchID), logging.Err(err))
		return ""
	}
	s.metrics.ArchiveBytesTotal.Add(float64(len(raw)))
	return name
}

// publishScored emits one event per persisted opportunity.  Publish failures
// are logged and counted, never propagated: the row is already persisted.
func (s *serviceImpl) publishScored(ctx context.Context, os []*opportunity.Opportunity) {
	if s.producer == nil || s.opts.ScoredTopic == "" {
		return
	}
	for _, o := range os {
		payload := scoredPayload(o)
		key := string(o.AgencyID) + "/" + o.CustomerName
		if err := s.producer.Publish(ctx, s.opts.ScoredTopic, EventTypeOpportunityScored, key, payload); err != nil {
			s.metrics.EventsPublishedTotal.WithLabelValues(s.opts.ScoredTopic, "error").Inc()
			s.logger.Warn("scored event publish failed",
				logging.String("opportunity_id", string(o.ID)), logging.Err(err))
			continue
		}
		s.metrics.EventsPublishedTotal.WithLabelValues(s.opts.ScoredTopic, "ok").Inc()
	}
}

func scoredPayload(o *opportunity.Opportunity) kafka.OpportunityScoredPayload {
	return kafka.OpportunityScoredPayload{
		OpportunityID: string(o.ID),
		AgencyID:      string(o.AgencyID),
		CustomerName:  o.CustomerName,
		Segment:       string(o.Segment),
		Score:         o.Score,
		Tier:          o.Tier.String(),
		Enhanced:      o.Enhanced,
		ScoredAt:      o.ScoredAt,
	}
}
