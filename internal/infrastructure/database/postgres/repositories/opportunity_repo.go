// Package repositories implements the domain repository contracts on
// PostgreSQL via pgx.
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencypulse/crosssell-intelligence/internal/domain/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
	"github.com/agencypulse/crosssell-intelligence/pkg/errors"
	"github.com/agencypulse/crosssell-intelligence/pkg/types/common"
)

const opportunityColumns = `
	id, agency_id, customer_name, products,
	has_auto, has_property, has_life, has_umbrella,
	policy_count, true_monoline, annual_premium, tenure_years,
	renewal_date, days_until_renewal, balance_due, autopay,
	phone, email,
	segment, recommended_product, score, tier, value_tier,
	confidence, enhanced, talking_points, scored_at,
	dismissed, dismissed_at, task_id,
	created_at, updated_at, version`

// OpportunityRepository is the pgx-backed implementation of
// opportunity.Repository.
type OpportunityRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewOpportunityRepository constructs the repository.
func NewOpportunityRepository(pool *pgxpool.Pool, log logging.Logger) *OpportunityRepository {
	return &OpportunityRepository{pool: pool, logger: log}
}

var _ opportunity.Repository = (*OpportunityRepository)(nil)

// Create persists a new opportunity.
func (r *OpportunityRepository) Create(ctx context.Context, o *opportunity.Opportunity) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO opportunities (`+opportunityColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
		        $17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
	`, insertArgs(o)...)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict(
				fmt.Sprintf("opportunity for customer %q already exists", o.CustomerName)).WithCause(err)
		}
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert opportunity")
	}
	return nil
}

// Update persists changed state using optimistic locking on Version.
func (r *OpportunityRepository) Update(ctx context.Context, o *opportunity.Opportunity) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE opportunities SET
			agency_id = $2, customer_name = $3, products = $4,
			has_auto = $5, has_property = $6, has_life = $7, has_umbrella = $8,
			policy_count = $9, true_monoline = $10, annual_premium = $11, tenure_years = $12,
			renewal_date = $13, days_until_renewal = $14, balance_due = $15, autopay = $16,
			phone = $17, email = $18,
			segment = $19, recommended_product = $20, score = $21, tier = $22, value_tier = $23,
			confidence = $24, enhanced = $25, talking_points = $26, scored_at = $27,
			dismissed = $28, dismissed_at = $29, task_id = $30,
			updated_at = $31, version = $32
		WHERE id = $1 AND version = $32 - 1
	`,
		string(o.ID), string(o.AgencyID), o.CustomerName, o.Products,
		o.Holdings.Auto, o.Holdings.Property, o.Holdings.Life, o.Holdings.Umbrella,
		o.PolicyCount, o.TrueMonoline, o.AnnualPremium, o.TenureYears,
		o.RenewalDate, o.DaysUntilRenewal, o.BalanceDue, o.Autopay.String(),
		o.Phone, o.Email,
		string(o.Segment), o.RecommendedProduct, o.Score, o.Tier.String(), o.ValueTier.String(),
		o.Confidence, o.Enhanced, o.TalkingPoints, o.ScoredAt,
		o.Dismissed, o.DismissedAt, o.TaskID,
		o.UpdatedAt, o.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update opportunity")
	}
	if tag.RowsAffected() == 0 {
		return errors.Conflict(
			fmt.Sprintf("opportunity %s was modified concurrently", o.ID))
	}
	return nil
}

// GetByID returns the opportunity or a not-found error.
func (r *OpportunityRepository) GetByID(ctx context.Context, id common.ID) (*opportunity.Opportunity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1
	`, string(id))

	o, err := scanOpportunity(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeOpportunityNotFound,
				fmt.Sprintf("opportunity %s not found", id))
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load opportunity")
	}
	return o, nil
}

// GetByCustomerName is the case-folded exact-name fallback within an agency.
func (r *OpportunityRepository) GetByCustomerName(ctx context.Context, agencyID common.AgencyID, name string) (*opportunity.Opportunity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE agency_id = $1 AND lower(customer_name) = lower($2)
	`, string(agencyID), strings.TrimSpace(name))

	o, err := scanOpportunity(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New(errors.CodeOpportunityNotFound,
				fmt.Sprintf("no opportunity for customer %q", name))
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load opportunity by name")
	}
	return o, nil
}

// List returns opportunities matching the filter plus the total match count.
func (r *OpportunityRepository) List(ctx context.Context, filter opportunity.ListFilter) ([]*opportunity.Opportunity, int64, error) {
	where, args := buildWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM opportunities`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to count opportunities")
	}

	order := " ORDER BY score DESC, created_at ASC"
	if filter.Sort == common.SortAsc {
		order = " ORDER BY score ASC, created_at ASC"
	}

	query := `SELECT ` + opportunityColumns + ` FROM opportunities` + where + order
	if filter.Pagination.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d",
			filter.Pagination.PageSize, filter.Pagination.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to list opportunities")
	}
	defer rows.Close()

	var out []*opportunity.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan opportunity row")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "opportunity row iteration failed")
	}
	return out, total, nil
}

// CreateBatch persists many opportunities in one transaction.  Individual row
// failures roll back only their savepoint and are reported per index.
func (r *OpportunityRepository) CreateBatch(ctx context.Context, os []*opportunity.Opportunity) (map[int]error, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to begin batch transaction")
	}
	defer tx.Rollback(ctx)

	failed := make(map[int]error)
	for i, o := range os {
		sp, err := tx.Begin(ctx) // savepoint
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create savepoint")
		}
		_, err = sp.Exec(ctx, `
			INSERT INTO opportunities (`+opportunityColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
			        $17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
		`, insertArgs(o)...)
		if err != nil {
			_ = sp.Rollback(ctx)
			failed[i] = err
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			failed[i] = err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to commit batch")
	}
	if len(failed) > 0 {
		r.logger.Warn("batch insert completed with row failures",
			logging.Int("total", len(os)),
			logging.Int("failed", len(failed)),
		)
	}
	return failed, nil
}

// DeleteByAgency hard-deletes every opportunity for an agency.
func (r *OpportunityRepository) DeleteByAgency(ctx context.Context, agencyID common.AgencyID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE agency_id = $1`, string(agencyID))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to clear opportunities")
	}
	return tag.RowsAffected(), nil
}

// CountByTier returns per-tier totals for the dashboard.
func (r *OpportunityRepository) CountByTier(ctx context.Context, agencyID common.AgencyID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tier, count(*)
		FROM opportunities
		WHERE agency_id = $1 AND NOT dismissed
		GROUP BY tier
	`, string(agencyID))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to count by tier")
	}
	defer rows.Close()

	counts := make(map[string]int64, 4)
	for rows.Next() {
		var tier string
		var n int64
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan tier count")
		}
		counts[tier] = n
	}
	return counts, rows.Err()
}

// ---------------------------------------------------------------------------
// Row mapping
// ---------------------------------------------------------------------------

func insertArgs(o *opportunity.Opportunity) []any {
	return []any{
		string(o.ID), string(o.AgencyID), o.CustomerName, o.Products,
		o.Holdings.Auto, o.Holdings.Property, o.Holdings.Life, o.Holdings.Umbrella,
		o.PolicyCount, o.TrueMonoline, o.AnnualPremium, o.TenureYears,
		o.RenewalDate, o.DaysUntilRenewal, o.BalanceDue, o.Autopay.String(),
		o.Phone, o.Email,
		string(o.Segment), o.RecommendedProduct, o.Score, o.Tier.String(), o.ValueTier.String(),
		o.Confidence, o.Enhanced, o.TalkingPoints, o.ScoredAt,
		o.Dismissed, o.DismissedAt, o.TaskID,
		o.CreatedAt, o.UpdatedAt, o.Version,
	}
}

func scanOpportunity(row pgx.Row) (*opportunity.Opportunity, error) {
	var (
		o                 opportunity.Opportunity
		id, agencyID      string
		autopay, tier     string
		segment, valTier  string
	)
	err := row.Scan(
		&id, &agencyID, &o.CustomerName, &o.Products,
		&o.Holdings.Auto, &o.Holdings.Property, &o.Holdings.Life, &o.Holdings.Umbrella,
		&o.PolicyCount, &o.TrueMonoline, &o.AnnualPremium, &o.TenureYears,
		&o.RenewalDate, &o.DaysUntilRenewal, &o.BalanceDue, &autopay,
		&o.Phone, &o.Email,
		&segment, &o.RecommendedProduct, &o.Score, &tier, &valTier,
		&o.Confidence, &o.Enhanced, &o.TalkingPoints, &o.ScoredAt,
		&o.Dismissed, &o.DismissedAt, &o.TaskID,
		&o.CreatedAt, &o.UpdatedAt, &o.Version,
	)
	if err != nil {
		return nil, err
	}
	o.ID = common.ID(id)
	o.AgencyID = common.AgencyID(agencyID)
	o.Autopay = crosssell.ParseAutopayStatus(autopay)
	o.Segment = crosssell.SegmentType(segment)
	o.Tier = crosssell.ParsePriorityTier(tier)
	o.ValueTier = crosssell.ParseValueTier(valTier)
	return &o, nil
}

func buildWhere(filter opportunity.ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AgencyID != "" {
		clauses = append(clauses, "agency_id = "+arg(string(filter.AgencyID)))
	}
	if filter.Tier != nil {
		clauses = append(clauses, "tier = "+arg(filter.Tier.String()))
	}
	if filter.Segment != "" {
		clauses = append(clauses, "segment = "+arg(string(filter.Segment)))
	}
	if filter.MinScore > 0 {
		clauses = append(clauses, "score >= "+arg(filter.MinScore))
	}
	if !filter.IncludeDismissed {
		clauses = append(clauses, "NOT dismissed")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}
