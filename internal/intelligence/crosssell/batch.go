package crosssell

import (
	"context"
	"runtime"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Batch orchestration
// ---------------------------------------------------------------------------

// Histogram bucket geometry on the base scale: 0–25, 26–50, ..., 126–150.
const (
	histogramBucketWidth = 25
	histogramBucketCount = 6
)

// HistogramBucket is one fixed-width score bucket.
type HistogramBucket struct {
	Low   int `json:"low"`
	High  int `json:"high"`
	Count int `json:"count"`
}

// BatchStats aggregates a scored collection.  All aggregation is pure
// reduction over the already-scored results.
type BatchStats struct {
	Total          int                  `json:"total"`
	TierCounts     map[string]int       `json:"tier_counts"`
	Histogram      []HistogramBucket    `json:"histogram"`
	MeanScore      float64              `json:"mean_score"`
	MeanConfidence float64              `json:"mean_confidence"`
	EnhancedCount  int                  `json:"enhanced_count"`
	SegmentCounts  map[SegmentType]int  `json:"segment_counts"`
}

// ScoredRecord pairs an input record with its enhanced scoring result.
type ScoredRecord struct {
	Record *Record        `json:"record"`
	Result EnhancedResult `json:"result"`
}

// BatchResult is the orchestrator's output: the ranked slice plus aggregate
// statistics over the full (pre-pagination) collection.
type BatchResult struct {
	Records []ScoredRecord `json:"records"`
	Stats   BatchStats     `json:"stats"`
}

// BatchOptions configures one orchestration run.
type BatchOptions struct {
	Enhance EnhanceOptions `json:"enhance"`

	// TopN, when positive, keeps only the N highest-scoring records after
	// sorting (applied before Limit/Offset).
	TopN int `json:"top_n,omitempty"`

	// Limit/Offset paginate the ranked slice.  Zero Limit means no paging.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Orchestrator applies scoring and blending across record collections with
// bounded concurrency.  Records are independent, so results are written to
// index-addressed slots and never contended.
type Orchestrator struct {
	enhancer    *Enhancer
	concurrency int
}

// OrchestratorOption mutates Orchestrator construction parameters.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency caps the number of records scored in parallel.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// NewOrchestrator constructs an Orchestrator.  A nil enhancer gets the
// default construction; concurrency defaults to GOMAXPROCS.
func NewOrchestrator(enhancer *Enhancer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		enhancer:    enhancer,
		concurrency: runtime.GOMAXPROCS(0),
	}
	if o.enhancer == nil {
		o.enhancer = NewEnhancer(nil)
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Run scores every record, sorts by descending final score (stable: ties
// retain input order), applies TopN and pagination, and computes aggregate
// statistics over the full scored collection.  Input records are never
// mutated.  The only error condition is context cancellation mid-batch.
func (o *Orchestrator) Run(ctx context.Context, records []*Record, opts BatchOptions) (*BatchResult, error) {
	scored := make([]ScoredRecord, len(records))

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, r *Record) {
			defer wg.Done()
			defer func() { <-sem }()
			scored[i] = ScoredRecord{
				Record: r,
				Result: o.enhancer.Enhance(r, opts.Enhance),
			}
		}(i, r)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.Score > scored[j].Result.Score
	})

	stats := computeStats(scored)

	if opts.TopN > 0 && opts.TopN < len(scored) {
		scored = scored[:opts.TopN]
	}
	scored = paginate(scored, opts.Limit, opts.Offset)

	return &BatchResult{Records: scored, Stats: stats}, nil
}

func paginate(s []ScoredRecord, limit, offset int) []ScoredRecord {
	if offset > 0 {
		if offset >= len(s) {
			return []ScoredRecord{}
		}
		s = s[offset:]
	}
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}

// computeStats reduces the scored collection into tier counts, a fixed-bucket
// histogram, means, and the enhancement count.
func computeStats(scored []ScoredRecord) BatchStats {
	stats := BatchStats{
		Total:         len(scored),
		TierCounts:    make(map[string]int, 4),
		SegmentCounts: make(map[SegmentType]int, 6),
		Histogram:     make([]HistogramBucket, histogramBucketCount),
	}
	for i := range stats.Histogram {
		low := i * histogramBucketWidth
		if i > 0 {
			low++
		}
		stats.Histogram[i] = HistogramBucket{Low: low, High: (i + 1) * histogramBucketWidth}
	}
	if len(scored) == 0 {
		return stats
	}

	var scoreSum, confSum float64
	for _, s := range scored {
		stats.TierCounts[s.Result.Tier.String()]++
		stats.SegmentCounts[s.Result.Base.Segment]++
		scoreSum += float64(s.Result.Score)
		confSum += s.Result.Confidence
		if s.Result.Enhanced {
			stats.EnhancedCount++
		}

		b := bucketIndex(s.Result.Score)
		stats.Histogram[b].Count++
	}
	stats.MeanScore = scoreSum / float64(len(scored))
	stats.MeanConfidence = confSum / float64(len(scored))
	return stats
}

// bucketIndex maps a score to its histogram bucket: 0–25 is bucket 0,
// 26–50 bucket 1, and so on; out-of-range scores clamp to the edge buckets.
func bucketIndex(score int) int {
	if score <= histogramBucketWidth {
		return 0
	}
	idx := (score - 1) / histogramBucketWidth
	if idx >= histogramBucketCount {
		idx = histogramBucketCount - 1
	}
	return idx
}
