package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/notifier/internal/database"
	apperrors "github.com/allisson/notifier/internal/errors"
	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// MySQLMessageRepository implements OutboundMessage persistence for MySQL.
// UUIDs are stored as CHAR(36) strings. MySQL has no UPDATE ... RETURNING, so
// ClaimPending runs a transaction: locked select, claim update, then returns
// the selected rows.
type MySQLMessageRepository struct {
	db *sql.DB
}

// NewMySQLMessageRepository creates a new MySQL OutboundMessage repository.
func NewMySQLMessageRepository(db *sql.DB) *MySQLMessageRepository {
	return &MySQLMessageRepository{db: db}
}

// Create inserts a new pending message.
func (m *MySQLMessageRepository) Create(
	ctx context.Context,
	message *messageDomain.OutboundMessage,
) error {
	querier := database.GetTx(ctx, m.db)

	payload, err := json.Marshal(message.Payload)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal message payload")
	}

	var toClientID *string
	if message.ToClientID != nil {
		s := message.ToClientID.String()
		toClientID = &s
	}

	query := `INSERT INTO outbound_messages
			  (id, channel, to_client_id, to_phone, template, payload, sent, sent_at, last_error, claimed_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		message.ID.String(),
		message.Channel,
		toClientID,
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

// ClaimPending atomically claims up to limit unsent messages in FIFO order and
// returns them. Runs inside its own transaction so the locked select and the
// claim update are a single atomic step against concurrent dispatch runs.
func (m *MySQLMessageRepository) ClaimPending(
	ctx context.Context,
	limit int,
	leaseCutoff time.Time,
) ([]*messageDomain.OutboundMessage, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to begin claim transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	selectQuery := `SELECT id, channel, to_client_id, to_phone, template, payload, sent, sent_at, last_error, claimed_at, created_at
					FROM outbound_messages
					WHERE sent = false AND (claimed_at IS NULL OR claimed_at < ?)
					ORDER BY created_at ASC
					LIMIT ?
					FOR UPDATE SKIP LOCKED`

	rows, err := tx.QueryContext(ctx, selectQuery, leaseCutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select pending messages")
	}

	var messages []*messageDomain.OutboundMessage
	for rows.Next() {
		message, err := scanMySQLMessage(rows)
		if err != nil {
			rows.Close() //nolint:errcheck
			return nil, err
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, apperrors.Wrap(err, "failed to iterate pending messages")
	}
	rows.Close() //nolint:errcheck

	if len(messages) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(messages))
	args := make([]any, 0, len(messages)+1)
	args = append(args, now)
	for _, message := range messages {
		ids = append(ids, "?")
		args = append(args, message.ID.String())
		claimedAt := now
		message.ClaimedAt = &claimedAt
	}

	updateQuery := `UPDATE outbound_messages SET claimed_at = ? WHERE id IN (` +
		strings.Join(ids, ", ") + `)`

	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		return nil, apperrors.Wrap(err, "failed to claim pending messages")
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, "failed to commit claim transaction")
	}

	return messages, nil
}

// MarkOutcome persists the result of one delivery attempt. A failed send
// clears the claim so the message is immediately eligible for the next run.
func (m *MySQLMessageRepository) MarkOutcome(
	ctx context.Context,
	id uuid.UUID,
	sent bool,
	sentAt *time.Time,
	sendError *string,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE outbound_messages
			  SET sent = ?,
				  sent_at = ?,
				  last_error = ?,
				  claimed_at = CASE WHEN ? THEN claimed_at ELSE NULL END
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, sent, sentAt, sendError, sent, id.String())
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
func (m *MySQLMessageRepository) CountPending(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM outbound_messages WHERE sent = false`

	var count int64
	if err := querier.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count pending messages")
	}
	return count, nil
}

// scanMySQLMessage scans one outbound message row with string UUID columns.
func scanMySQLMessage(rows *sql.Rows) (*messageDomain.OutboundMessage, error) {
	var (
		message    messageDomain.OutboundMessage
		idStr      string
		toClientID sql.NullString
		payload    []byte
	)

	err := rows.Scan(
		&idStr,
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

	if message.ID, err = uuid.Parse(idStr); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse message id")
	}

	if toClientID.Valid {
		clientID, err := uuid.Parse(toClientID.String)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse message client id")
		}
		message.ToClientID = &clientID
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &message.Payload); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal message payload")
		}
	}

	return &message, nil
}
