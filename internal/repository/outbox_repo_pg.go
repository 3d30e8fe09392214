package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRow is a pending event waiting to be relayed to the broker.
// Rows are written by the reservation repository inside the same
// transaction as the state change they describe.
type OutboxRow struct {
	ID            int64
	ReservationID string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

type OutboxRepository interface {
	FetchUnsent(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkSent(ctx context.Context, id int64) error
}

type PGOutboxRepository struct {
	db *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) OutboxRepository {
	return &PGOutboxRepository{db: db}
}

func (r *PGOutboxRepository) FetchUnsent(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := r.db.Query(ctx, `SELECT id, reservation_id, event_type, payload, created_at
		FROM reservation_events WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.ID, &row.ReservationID, &row.EventType, &row.Payload, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PGOutboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE reservation_events SET sent_at=now() WHERE id=$1`, id)
	return err
}

var _ OutboxRepository = (*PGOutboxRepository)(nil)
