package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fengq/loanbook/internal/domain"
	"github.com/fengq/loanbook/internal/usecase"
)

// HistoryRepository implements usecase.HistoryRepository over the
// per-chat operation history.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Append inserts a history entry and fills in its assigned ID.
func (r *HistoryRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.OperationEntry) error {
	pgxTx := tx.(*Tx).PgxTx()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO operation_history (chat_id, operation_type, payload, consumed, performed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return pgxTx.QueryRow(ctx, query,
		entry.ChatID,
		string(entry.Type),
		payload,
		entry.Consumed,
		timeToPgTimestamptz(entry.PerformedAt),
	).Scan(&entry.ID)
}

// LastUndoable returns the chat's most recent unconsumed, non-undo
// entry, locked for update so concurrent undos serialize on it.
func (r *HistoryRepository) LastUndoable(ctx context.Context, tx usecase.Transaction, chatID int64) (*domain.OperationEntry, error) {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		SELECT id, chat_id, operation_type, payload, consumed, performed_at
		FROM operation_history
		WHERE chat_id = $1 AND NOT consumed AND operation_type != 'operation_undo'
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE
	`

	entry, err := scanEntry(pgxTx.QueryRow(ctx, query, chatID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNothingToUndo
		}

		return nil, err
	}

	return entry, nil
}

// MarkConsumed flags an entry as already undone.
func (r *HistoryRepository) MarkConsumed(ctx context.Context, tx usecase.Transaction, id int64) error {
	pgxTx := tx.(*Tx).PgxTx()

	tag, err := pgxTx.Exec(ctx, `UPDATE operation_history SET consumed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// RecentTypes returns the chat's newest entry types, newest first.
func (r *HistoryRepository) RecentTypes(ctx context.Context, chatID int64, limit int) ([]domain.OperationType, error) {
	query := `
		SELECT operation_type
		FROM operation_history
		WHERE chat_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []domain.OperationType
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, domain.OperationType(t))
	}

	return types, rows.Err()
}

// ListByChat returns the chat's history, newest first.
func (r *HistoryRepository) ListByChat(ctx context.Context, chatID int64, limit, offset int) ([]*domain.OperationEntry, error) {
	query := `
		SELECT id, chat_id, operation_type, payload, consumed, performed_at
		FROM operation_history
		WHERE chat_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.OperationEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*domain.OperationEntry, error) {
	var (
		entry       domain.OperationEntry
		opType      string
		payload     []byte
		performedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&entry.ID,
		&entry.ChatID,
		&opType,
		&payload,
		&entry.Consumed,
		&performedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Type = domain.OperationType(opType)
	entry.PerformedAt = performedAt.Time

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	return &entry, nil
}
