package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/internal/testutil"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
)

// fakeProducer records published events.
type fakeProducer struct {
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	Topic     string
	EventType string
	Key       string
	Payload   interface{}
}

func (p *fakeProducer) Publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic, eventType, key, payload})
	return nil
}

// fakeArchiver records archived batches.
type fakeArchiver struct {
	batches map[string][]byte
	err     error
}

func (a *fakeArchiver) ArchiveBatch(ctx context.Context, agencyID, batchID string, raw []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.batches == nil {
		a.batches = make(map[string][]byte)
	}
	name := "ingest/" + agencyID + "/" + batchID + ".json"
	a.batches[name] = raw
	return name, nil
}

func rawRow(t *testing.T, fields map[string]interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return b
}

func testRows(t *testing.T) []json.RawMessage {
	t.Helper()
	return []json.RawMessage{
		rawRow(t, map[string]interface{}{
			"customer_name":  "Harding Household",
			"products":       "Auto",
			"policy_count":   1,
			"annual_premium": 2400,
			"tenure_years":   4,
		}),
		rawRow(t, map[string]interface{}{
			"customer_name":  "Okafor Family",
			"products":       "Homeowners; Umbrella",
			"policy_count":   2,
			"annual_premium": 3100,
		}),
	}
}

type harness struct {
	svc      Service
	repo     *testutil.FakeOpportunityRepo
	producer *fakeProducer
	archiver *fakeArchiver
}

func newHarness() *harness {
	h := &harness{
		repo:     testutil.NewFakeOpportunityRepo(),
		producer: &fakeProducer{},
		archiver: &fakeArchiver{},
	}
	h.svc = NewService(h.repo, h.producer, h.archiver, prometheus.NewMetrics(), testutil.NewMockLogger(), Options{
		Enhance:     crosssell.DefaultEnhanceOptions(),
		Weights:     crosssell.DefaultWeights(),
		ScoredTopic: "crosssell.opportunity.scored",
	})
	return h
}

func TestIngestRows_CreatesOpportunities(t *testing.T) {
	h := newHarness()

	res, err := h.svc.IngestRows(context.Background(), &IngestInput{
		AgencyID: "agency-1",
		Rows:     testRows(t),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Received)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Dropped)
	assert.Equal(t, 0, res.Failed)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 2, h.repo.Len())

	for _, o := range h.repo.All() {
		assert.Equal(t, "agency-1", string(o.AgencyID))
		assert.Greater(t, o.Score, 0)
		assert.False(t, o.ScoredAt.IsZero())
	}
}

func TestIngestRows_DropsNamelessAndMalformedRows(t *testing.T) {
	h := newHarness()

	rows := []json.RawMessage{
		rawRow(t, map[string]interface{}{"customer_name": "Valid Customer", "products": "Auto"}),
		rawRow(t, map[string]interface{}{"customer_name": "  ", "products": "Auto"}),
		rawRow(t, map[string]interface{}{"products": "Home"}),
		json.RawMessage(`{not json`),
	}

	res, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "a", Rows: rows})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Received)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, res.Dropped)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, h.repo.Len())
}

func TestIngestRows_ReingestUpdatesExisting(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.svc.IngestRows(ctx, &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)

	// Same customers, changed facts. Case differences in the name must still
	// match the existing aggregate.
	rows := []json.RawMessage{
		rawRow(t, map[string]interface{}{
			"customer_name":  "HARDING HOUSEHOLD",
			"products":       "Auto; Homeowners",
			"policy_count":   2,
			"annual_premium": 4100,
		}),
	}
	second, err := h.svc.IngestRows(ctx, &IngestInput{AgencyID: "a", Rows: rows})
	require.NoError(t, err)

	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 2, h.repo.Len(), "re-ingest must not duplicate the customer")

	updated, err := h.repo.GetByCustomerName(ctx, "a", "Harding Household")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.PolicyCount)
	assert.InDelta(t, 4100, updated.AnnualPremium, 0.001)
	assert.GreaterOrEqual(t, updated.Version, 2)
}

func TestIngestRows_EmptyBatch(t *testing.T) {
	h := newHarness()

	_, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "a"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeIngestionEmptyBatch))

	_, err = h.svc.IngestRows(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeIngestionEmptyBatch))
}

func TestIngestRows_RowFailuresCountedNotRetried(t *testing.T) {
	h := newHarness()
	h.repo.FailRows = map[int]error{1: fmt.Errorf("constraint violation")}

	res, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, h.repo.Len())
	// Only the persisted row is announced.
	assert.Len(t, h.producer.events, 1)
}

func TestIngestRows_WholeBatchFailure(t *testing.T) {
	h := newHarness()
	h.repo.BatchErr = fmt.Errorf("connection refused")

	_, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeIngestionPersistFailed))
}

func TestIngestRows_PublishesScoredEvents(t *testing.T) {
	h := newHarness()

	_, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "ag-9", Rows: testRows(t)})
	require.NoError(t, err)

	require.Len(t, h.producer.events, 2)
	for _, ev := range h.producer.events {
		assert.Equal(t, "crosssell.opportunity.scored", ev.Topic)
		assert.Equal(t, EventTypeOpportunityScored, ev.EventType)
		assert.Contains(t, ev.Key, "ag-9/")
	}
}

func TestIngestRows_PublishFailureDoesNotFailBatch(t *testing.T) {
	h := newHarness()
	h.producer.err = fmt.Errorf("broker unavailable")

	res, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
}

func TestIngestRows_ArchivesRawBatch(t *testing.T) {
	h := newHarness()

	res, err := h.svc.IngestRows(context.Background(), &IngestInput{
		AgencyID: "a",
		BatchID:  "batch-7",
		Rows:     testRows(t),
	})
	require.NoError(t, err)

	assert.Equal(t, "batch-7", res.BatchID)
	assert.Equal(t, "ingest/a/batch-7.json", res.ArchiveObject)
	require.Contains(t, h.archiver.batches, res.ArchiveObject)

	var archived []json.RawMessage
	require.NoError(t, json.Unmarshal(h.archiver.batches[res.ArchiveObject], &archived))
	assert.Len(t, archived, 2)
}

func TestIngestRows_ArchiveFailureDegrades(t *testing.T) {
	h := newHarness()
	h.archiver.err = errors.New(errors.CodeIngestionArchiveFailed, "bucket gone")

	res, err := h.svc.IngestRows(context.Background(), &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.NoError(t, err)
	assert.Empty(t, res.ArchiveObject)
	assert.Equal(t, 2, res.Created)
}

func TestUpdateWeights(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.IngestRows(ctx, &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.NoError(t, err)
	require.Equal(t, 2, res.Created)
	before, err := h.repo.GetByCustomerName(ctx, "a", "Harding Household")
	require.NoError(t, err)

	// Zeroing every weight drives the base score, and therefore the blended
	// score, down on the next ingest of the same customer.
	h.svc.UpdateWeights(crosssell.Weights{})
	_, err = h.svc.IngestRows(ctx, &IngestInput{AgencyID: "a", Rows: testRows(t)})
	require.NoError(t, err)

	after, err := h.repo.GetByCustomerName(ctx, "a", "Harding Household")
	require.NoError(t, err)
	assert.Less(t, after.Score, before.Score)
}
