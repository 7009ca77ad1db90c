package feedb

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lnwire"
)

// PostgreSQL error codes.
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

//go:embed sqlmigrations/*.sql
var sqlMigrations embed.FS

const policyColumns = `id, wallet_id, name, enabled, strategy,
	base_fee_min_msat, base_fee_default_msat, base_fee_max_msat,
	fee_rate_min_ppm, fee_rate_default_ppm, fee_rate_max_ppm,
	liquidity_threshold_low, liquidity_threshold_high, auto_adjust,
	adjustment_interval_ns, max_adjustment_per_step_ppm,
	min_channel_size_sat, only_active_channels, created_at, updated_at`

const adjustmentColumns = `id, policy_id, wallet_id, channel_id,
	channel_point, old_base_fee_msat, old_fee_rate_ppm, new_base_fee_msat,
	new_fee_rate_ppm, liquidity_ratio, reason, success, error, created_at`

// PostgresStore is a Postgres backed implementation of Store.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

// A compile-time flag to ensure that PostgresStore implements the Store
// interface.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database described by dsn and applies our
// migrations.
func NewPostgresStore(ctx context.Context, dsn string,
	clock clock.Clock) (*PostgresStore, error) {

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:  pool,
		clock: clock,
	}, nil
}

// runMigrations applies all embedded SQL files in lexical order. Migrations
// are idempotent.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(sqlMigrations, "sqlmigrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(sqlMigrations, "sqlmigrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %v: %w", file, err)
		}

		log.Debugf("Applying migration %v", file)
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %v: %w", file, err)
		}
	}

	return nil
}

// CreatePolicy validates and stores a new policy. The policy's id is set if
// it was empty, and its timestamps are set to the current time.
func (s *PostgresStore) CreatePolicy(ctx context.Context,
	policy *autofee.Policy) error {

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}

	if err := policy.Validate(); err != nil {
		return err
	}

	now := s.clock.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	query := `INSERT INTO fee_policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20)`

	_, err := s.pool.Exec(ctx, query, policyArgs(policy)...)
	if isPgError(err, pgErrUniqueViolation) {
		return ErrPolicyExists
	}
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}

	return nil
}

// GetPolicy returns the policy with the id provided.
func (s *PostgresStore) GetPolicy(ctx context.Context,
	id string) (*autofee.Policy, error) {

	query := `SELECT ` + policyColumns + ` FROM fee_policies
		WHERE id = $1`

	policy, err := scanPolicy(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, autofee.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}

	return policy, nil
}

// ListPolicies returns all policies of a wallet, newest first. An empty
// wallet id returns every policy.
func (s *PostgresStore) ListPolicies(ctx context.Context,
	walletID string) ([]*autofee.Policy, error) {

	query := `SELECT ` + policyColumns + ` FROM fee_policies
		WHERE $1::TEXT = '' OR wallet_id = $1
		ORDER BY created_at DESC, id`

	return s.queryPolicies(ctx, query, walletID)
}

// ListEnabledPolicies returns all enabled policies, oldest first.
func (s *PostgresStore) ListEnabledPolicies(
	ctx context.Context) ([]*autofee.Policy, error) {

	query := `SELECT ` + policyColumns + ` FROM fee_policies
		WHERE enabled
		ORDER BY created_at, id`

	return s.queryPolicies(ctx, query)
}

func (s *PostgresStore) queryPolicies(ctx context.Context, query string,
	args ...interface{}) ([]*autofee.Policy, error) {

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var policies []*autofee.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}

		policies = append(policies, policy)
	}

	return policies, rows.Err()
}

// UpdatePolicy applies a partial update to a policy.
func (s *PostgresStore) UpdatePolicy(ctx context.Context, id string,
	update *autofee.PolicyUpdate) (*autofee.Policy, error) {

	if update.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `SELECT ` + policyColumns + ` FROM fee_policies
		WHERE id = $1 FOR UPDATE`

	current, err := scanPolicy(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, autofee.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}

	updated, err := update.Apply(*current, s.clock.Now())
	if err != nil {
		return nil, err
	}

	query = `UPDATE fee_policies SET wallet_id = $2, name = $3,
		enabled = $4, strategy = $5, base_fee_min_msat = $6,
		base_fee_default_msat = $7, base_fee_max_msat = $8,
		fee_rate_min_ppm = $9, fee_rate_default_ppm = $10,
		fee_rate_max_ppm = $11, liquidity_threshold_low = $12,
		liquidity_threshold_high = $13, auto_adjust = $14,
		adjustment_interval_ns = $15, max_adjustment_per_step_ppm = $16,
		min_channel_size_sat = $17, only_active_channels = $18,
		created_at = $19, updated_at = $20
		WHERE id = $1`

	if _, err := tx.Exec(ctx, query, policyArgs(&updated)...); err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &updated, nil
}

// DeletePolicy removes a policy. Its adjustments are removed by the foreign
// key cascade.
func (s *PostgresStore) DeletePolicy(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(
		ctx, `DELETE FROM fee_policies WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return autofee.ErrPolicyNotFound
	}

	return nil
}

// AppendAdjustment adds an adjustment to its policy's audit log.
func (s *PostgresStore) AppendAdjustment(ctx context.Context,
	adjustment *autofee.Adjustment) error {

	query := `INSERT INTO fee_adjustments (` + adjustmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14)`

	_, err := s.pool.Exec(ctx, query,
		adjustment.ID,
		adjustment.PolicyID,
		adjustment.WalletID,
		int64(adjustment.ChannelID.ToUint64()),
		adjustment.ChannelPoint,
		int64(adjustment.OldBaseFee),
		int64(adjustment.OldFeeRate),
		int64(adjustment.NewBaseFee),
		int64(adjustment.NewFeeRate),
		adjustment.LiquidityRatio,
		adjustment.Reason,
		adjustment.Success,
		adjustment.Error,
		adjustment.Timestamp,
	)
	if isPgError(err, pgErrForeignKeyViolation) {
		return autofee.ErrPolicyNotFound
	}
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}

	return nil
}

// AdjustmentsByPolicy returns up to limit of a policy's adjustments, newest
// first.
func (s *PostgresStore) AdjustmentsByPolicy(ctx context.Context,
	policyID string, limit int) ([]*autofee.Adjustment, error) {

	query := `SELECT ` + adjustmentColumns + ` FROM fee_adjustments
		WHERE policy_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	return s.queryAdjustments(ctx, query, policyID, historyLimit(limit))
}

// AdjustmentsByChannel returns up to limit of a channel's adjustments across
// all policies, newest first.
func (s *PostgresStore) AdjustmentsByChannel(ctx context.Context,
	channel lnwire.ShortChannelID, limit int) ([]*autofee.Adjustment,
	error) {

	query := `SELECT ` + adjustmentColumns + ` FROM fee_adjustments
		WHERE channel_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	return s.queryAdjustments(
		ctx, query, int64(channel.ToUint64()), historyLimit(limit),
	)
}

// RecentAdjustments returns up to limit adjustments made for a wallet,
// newest first.
func (s *PostgresStore) RecentAdjustments(ctx context.Context,
	walletID string, limit int) ([]*autofee.Adjustment, error) {

	query := `SELECT ` + adjustmentColumns + ` FROM fee_adjustments
		WHERE wallet_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	return s.queryAdjustments(ctx, query, walletID, historyLimit(limit))
}

func (s *PostgresStore) queryAdjustments(ctx context.Context, query string,
	args ...interface{}) ([]*autofee.Adjustment, error) {

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []*autofee.Adjustment
	for rows.Next() {
		adjustment, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}

		adjustments = append(adjustments, adjustment)
	}

	return adjustments, rows.Err()
}

// PolicyStats summarizes all of a policy's adjustments.
func (s *PostgresStore) PolicyStats(ctx context.Context,
	policyID string) (*autofee.AdjustmentStats, error) {

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fee_policies WHERE id = $1)`,
		policyID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	if !exists {
		return nil, autofee.ErrPolicyNotFound
	}

	var (
		total, successful int64
		avgChange         float64
		first, last       *time.Time
	)

	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE success),
		COALESCE(AVG(new_fee_rate_ppm - old_fee_rate_ppm), 0)
			::DOUBLE PRECISION,
		MIN(created_at), MAX(created_at)
		FROM fee_adjustments WHERE policy_id = $1`

	err = s.pool.QueryRow(ctx, query, policyID).Scan(
		&total, &successful, &avgChange, &first, &last,
	)
	if err != nil {
		return nil, fmt.Errorf("policy stats: %w", err)
	}

	stats := &autofee.AdjustmentStats{
		Total:            int(total),
		Successful:       int(successful),
		Failed:           int(total - successful),
		AvgFeeRateChange: avgChange,
	}
	if first != nil {
		stats.First = first.UTC()
	}
	if last != nil {
		stats.Last = last.UTC()
	}

	return stats, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// policyArgs returns a policy's column values in policyColumns order.
func policyArgs(policy *autofee.Policy) []interface{} {
	return []interface{}{
		policy.ID,
		policy.WalletID,
		policy.Name,
		policy.Enabled,
		policy.Strategy.String(),
		int64(policy.BaseFeeMin),
		int64(policy.BaseFeeDefault),
		int64(policy.BaseFeeMax),
		int64(policy.FeeRateMin),
		int64(policy.FeeRateDefault),
		int64(policy.FeeRateMax),
		policy.ThresholdLow,
		policy.ThresholdHigh,
		policy.AutoAdjust,
		int64(policy.AdjustmentInterval),
		int64(policy.MaxAdjustmentPerStep),
		int64(policy.MinChannelSize),
		policy.OnlyActiveChannels,
		policy.CreatedAt,
		policy.UpdatedAt,
	}
}

func scanPolicy(row pgx.Row) (*autofee.Policy, error) {
	var (
		policy                            autofee.Policy
		strategy                          string
		baseMin, baseDefault, baseMax     int64
		rateMin, rateDefault, rateMax     int64
		interval, maxStep, minChannelSize int64
	)

	err := row.Scan(
		&policy.ID,
		&policy.WalletID,
		&policy.Name,
		&policy.Enabled,
		&strategy,
		&baseMin,
		&baseDefault,
		&baseMax,
		&rateMin,
		&rateDefault,
		&rateMax,
		&policy.ThresholdLow,
		&policy.ThresholdHigh,
		&policy.AutoAdjust,
		&interval,
		&maxStep,
		&minChannelSize,
		&policy.OnlyActiveChannels,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	policy.Strategy = autofee.ParseStrategy(strategy)
	policy.BaseFeeMin = lnwire.MilliSatoshi(baseMin)
	policy.BaseFeeDefault = lnwire.MilliSatoshi(baseDefault)
	policy.BaseFeeMax = lnwire.MilliSatoshi(baseMax)
	policy.FeeRateMin = uint32(rateMin)
	policy.FeeRateDefault = uint32(rateDefault)
	policy.FeeRateMax = uint32(rateMax)
	policy.AdjustmentInterval = time.Duration(interval)
	policy.MaxAdjustmentPerStep = uint32(maxStep)
	policy.MinChannelSize = btcutil.Amount(minChannelSize)
	policy.CreatedAt = policy.CreatedAt.UTC()
	policy.UpdatedAt = policy.UpdatedAt.UTC()

	return &policy, nil
}

func scanAdjustment(row pgx.Row) (*autofee.Adjustment, error) {
	var (
		adjustment       autofee.Adjustment
		channel          int64
		oldBase, newBase int64
		oldRate, newRate int64
	)

	err := row.Scan(
		&adjustment.ID,
		&adjustment.PolicyID,
		&adjustment.WalletID,
		&channel,
		&adjustment.ChannelPoint,
		&oldBase,
		&oldRate,
		&newBase,
		&newRate,
		&adjustment.LiquidityRatio,
		&adjustment.Reason,
		&adjustment.Success,
		&adjustment.Error,
		&adjustment.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	adjustment.ChannelID = lnwire.NewShortChanIDFromInt(uint64(channel))
	adjustment.OldBaseFee = lnwire.MilliSatoshi(oldBase)
	adjustment.OldFeeRate = uint32(oldRate)
	adjustment.NewBaseFee = lnwire.MilliSatoshi(newBase)
	adjustment.NewFeeRate = uint32(newRate)
	adjustment.Timestamp = adjustment.Timestamp.UTC()

	return &adjustment, nil
}

// isPgError returns true if err is a Postgres error with the code provided.
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}

	return false
}
