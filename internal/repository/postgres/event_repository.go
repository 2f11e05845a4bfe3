package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the common query interface satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EventRepository persists the transition journal.
type EventRepository struct {
	db DBTX
}

var _ transaction.EventRepository = (*EventRepository)(nil)

func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) AddEvent(ctx context.Context, event *transaction.Event) error {
	var payload []byte
	if event.Payload != nil {
		var err error
		if payload, err = json.Marshal(event.Payload); err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO transaction_events (id, transaction_id, from_status, to_status, source, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.TransactionID, string(event.FromStatus), string(event.ToStatus),
		event.Source, payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetEvents(ctx context.Context, transactionID string) ([]*transaction.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, transaction_id, from_status, to_status, source, payload, created_at
		 FROM transaction_events
		 WHERE transaction_id = $1
		 ORDER BY created_at ASC, id ASC`, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction events: %w", err)
	}
	defer rows.Close()

	var events []*transaction.Event
	for rows.Next() {
		e := &transaction.Event{}
		var from, to string
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TransactionID, &from, &to, &e.Source, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction event: %w", err)
		}
		e.FromStatus = transaction.Status(from)
		e.ToStatus = transaction.Status(to)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal event payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
