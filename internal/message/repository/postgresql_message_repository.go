// Package repository provides data persistence implementations for outbound messages.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/notifier/internal/database"
	apperrors "github.com/allisson/notifier/internal/errors"
	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// PostgreSQLMessageRepository implements OutboundMessage persistence for PostgreSQL.
// Payloads are stored as JSONB; claims use FOR UPDATE SKIP LOCKED so concurrent
// dispatch runs never select the same pending message.
type PostgreSQLMessageRepository struct {
	db *sql.DB
}

// NewPostgreSQLMessageRepository creates a new PostgreSQL OutboundMessage repository.
func NewPostgreSQLMessageRepository(db *sql.DB) *PostgreSQLMessageRepository {
	return &PostgreSQLMessageRepository{db: db}
}

// Create inserts a new pending message.
func (p *PostgreSQLMessageRepository) Create(
	ctx context.Context,
	message *messageDomain.OutboundMessage,
) error {
	querier := database.GetTx(ctx, p.db)

	payload, err := json.Marshal(message.Payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal message payload")
	}

	query := `INSERT INTO outbound_messages
			  (id, channel, to_client_id, to_phone, template, payload, sent, sent_at, last_error, claimed_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = querier.ExecContext(
		ctx,
		query,
		message.ID,
		message.Channel,
		message.ToClientID,
		message.ToPhone,
		message.Template,
		payload,
		message.Sent,
		message.SentAt,
		message.LastError,
		message.ClaimedAt,
		message.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbound message")
	}
	return nil
}

// ClaimPending atomically claims up to limit unsent messages in FIFO order
// (created_at ascending) and returns them. A message is claimable when it has
// never been claimed or when its claim is older than leaseCutoff, so messages
// stranded by a crashed run become eligible again once the lease expires.
func (p *PostgreSQLMessageRepository) ClaimPending(
	ctx context.Context,
	limit int,
	leaseCutoff time.Time,
) ([]*messageDomain.OutboundMessage, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbound_messages
			  SET claimed_at = NOW()
			  WHERE id IN (
				  SELECT id FROM outbound_messages
				  WHERE sent = false AND (claimed_at IS NULL OR claimed_at < $1)
				  ORDER BY created_at ASC
				  LIMIT $2
				  FOR UPDATE SKIP LOCKED
			  )
			  RETURNING id, channel, to_client_id, to_phone, template, payload, sent, sent_at, last_error, claimed_at, created_at`

	rows, err := querier.QueryContext(ctx, query, leaseCutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim pending messages")
	}
	defer rows.Close() //nolint:errcheck

	var messages []*messageDomain.OutboundMessage
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate claimed messages")
	}

	// RETURNING doesn't guarantee row order; restore FIFO for the caller.
	sortByCreatedAt(messages)

	return messages, nil
}

// MarkOutcome persists the result of one delivery attempt. A successful send
// sets sent/sent_at and clears last_error; a failed send records the error and
// clears the claim so the message is immediately eligible for the next run.
func (p *PostgreSQLMessageRepository) MarkOutcome(
	ctx context.Context,
	id uuid.UUID,
	sent bool,
	sentAt *time.Time,
	sendError *string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE outbound_messages
			  SET sent = $1,
				  sent_at = $2,
				  last_error = $3,
				  claimed_at = CASE WHEN $1 THEN claimed_at ELSE NULL END
			  WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, sent, sentAt, sendError, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark message outcome")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return messageDomain.ErrMessageNotFound
	}
	return nil
}

// CountPending returns the number of messages with sent = false.
func (p *PostgreSQLMessageRepository) CountPending(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM outbound_messages WHERE sent = false`

	var count int64
	if err := querier.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending messages")
	}
	return count, nil
}

// scanMessage scans one outbound message row, unmarshalling the JSON payload.
func scanMessage(rows *sql.Rows) (*messageDomain.OutboundMessage, error) {
	var (
		message    messageDomain.OutboundMessage
		toClientID uuid.NullUUID
		payload    []byte
	)

	err := rows.Scan(
		&message.ID,
		&message.Channel,
		&toClientID,
		&message.ToPhone,
		&message.Template,
		&payload,
		&message.Sent,
		&message.SentAt,
		&message.LastError,
		&message.ClaimedAt,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan outbound message")
	}

	if toClientID.Valid {
		clientID := toClientID.UUID
		message.ToClientID = &clientID
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &message.Payload); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal message payload")
		}
	}

	return &message, nil
}

// sortByCreatedAt orders messages oldest first.
func sortByCreatedAt(messages []*messageDomain.OutboundMessage) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
