package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"IgniteX/internal/domain/models"
	"IgniteX/internal/domain/repository"
)

// ClickHouseSignalStore implements SignalStore on a ReplacingMergeTree
// keyed by (user_id, signal_id). The engine collapses duplicate rows from
// retried inserts, which is exactly the dedup-key idempotency the
// distribution engine relies on.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseSignalStore creates the ClickHouse-backed store.
func NewClickHouseSignalStore(db *sql.DB, table string) repository.SignalStore {
	return &ClickHouseSignalStore{db: db, table: table}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	return nil // schema init handled by the client provider
}

func (s *ClickHouseSignalStore) Insert(ctx context.Context, sig *models.DistributedSignal) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(id, user_id, signal_id, symbol, signal_type, confidence, quality_score,
		 entry_price, take_profits, stop_loss, tier, created_at, expires_at, viewed, clicked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		sig.ID,
		sig.UserID,
		sig.SignalID,
		sig.Symbol,
		string(sig.SignalType),
		sig.Confidence,
		sig.QualityScore,
		sig.EntryPrice,
		sig.TakeProfits,
		sig.StopLoss,
		string(sig.Tier),
		sig.CreatedAt,
		sig.ExpiresAt,
		boolToUInt8(sig.Viewed),
		boolToUInt8(sig.Clicked),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) LastDistributedAt(ctx context.Context, tier models.Tier) (time.Time, error) {
	q := fmt.Sprintf("SELECT created_at FROM %s WHERE tier = ? ORDER BY created_at DESC LIMIT 1", s.table)
	var ts time.Time
	err := s.db.QueryRowContext(ctx, q, string(tier)).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last distributed at: %w", err)
	}
	return ts, nil
}

func (s *ClickHouseSignalStore) CountDistributedSince(ctx context.Context, tier models.Tier, since time.Time) (int, error) {
	// distinct source candidates, so a multi-recipient drop counts once
	q := fmt.Sprintf("SELECT uniqExact(signal_id) FROM %s WHERE tier = ? AND created_at >= ?", s.table)
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, string(tier), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count distributed: %w", err)
	}
	return int(n), nil
}

func (s *ClickHouseSignalStore) ListByUser(ctx context.Context, userID string, activeOnly bool, from, to time.Time, limit int) ([]*models.DistributedSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT id, user_id, signal_id, symbol, signal_type, confidence,
		quality_score, entry_price, take_profits, stop_loss, tier, created_at, expires_at, viewed, clicked
		FROM %s FINAL WHERE user_id = ?`, s.table)
	args := []interface{}{userID}
	if !from.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		q += " AND created_at <= ?"
		args = append(args, to)
	}
	if activeOnly {
		q += " AND expires_at > now()"
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []*models.DistributedSignal
	for rows.Next() {
		var (
			sig        models.DistributedSignal
			sigType    string
			tier       string
			takeProfit []float64
			viewed     uint8
			clicked    uint8
		)
		if err := rows.Scan(
			&sig.ID, &sig.UserID, &sig.SignalID, &sig.Symbol, &sigType, &sig.Confidence,
			&sig.QualityScore, &sig.EntryPrice, &takeProfit, &sig.StopLoss, &tier,
			&sig.CreatedAt, &sig.ExpiresAt, &viewed, &clicked,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.SignalType = models.Direction(sigType)
		sig.Tier = models.Tier(tier)
		sig.TakeProfits = takeProfit
		sig.Viewed = viewed != 0
		sig.Clicked = clicked != 0
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // pool owned by the clickhouse client
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
