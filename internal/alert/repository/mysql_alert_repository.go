package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	"github.com/allisson/notifier/internal/database"
	apperrors "github.com/allisson/notifier/internal/errors"
)

// MySQLAlertRepository implements Alert persistence for MySQL.
// UUIDs are stored as CHAR(36) strings; the live-alert unique key is backed
// by a generated column that is NULL once the alert is delivered.
type MySQLAlertRepository struct {
	db *sql.DB
}

// NewMySQLAlertRepository creates a new MySQL Alert repository.
func NewMySQLAlertRepository(db *sql.DB) *MySQLAlertRepository {
	return &MySQLAlertRepository{db: db}
}

// Create inserts a new Alert into the MySQL database. Returns ErrConflict
// when a live alert for the same (type, ref_id) pair already exists.
func (m *MySQLAlertRepository) Create(ctx context.Context, alert *alertDomain.Alert) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO alerts (id, alert_type, ref_id, message, severity, delivered, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		alert.ID.String(),
		alert.Type,
		alert.RefID.String(),
		alert.Message,
		alert.Severity,
		alert.Delivered,
		alert.CreatedAt,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "live alert already exists")
		}
		return apperrors.Wrap(err, "failed to create alert")
	}
	return nil
}

// FindLive retrieves the undelivered alert for a (type, ref_id) pair.
// Returns ErrAlertNotFound when no live alert exists for the pair.
func (m *MySQLAlertRepository) FindLive(
	ctx context.Context,
	alertType alertDomain.AlertType,
	refID uuid.UUID,
) (*alertDomain.Alert, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, alert_type, ref_id, message, severity, delivered, created_at
			  FROM alerts
			  WHERE alert_type = ? AND ref_id = ? AND delivered = false`

	var (
		alert    alertDomain.Alert
		idStr    string
		refIDStr string
	)

	err := querier.QueryRowContext(ctx, query, alertType, refID.String()).Scan(
		&idStr,
		&alert.Type,
		&refIDStr,
		&alert.Message,
		&alert.Severity,
		&alert.Delivered,
		&alert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, alertDomain.ErrAlertNotFound
		}
		return nil, apperrors.Wrap(err, "failed to find live alert")
	}

	if alert.ID, err = uuid.Parse(idStr); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse alert id")
	}
	if alert.RefID, err = uuid.Parse(refIDStr); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse alert ref id")
	}

	return &alert, nil
}

// ExistsAny reports whether any alert, delivered or not, exists for a (type, ref_id) pair.
func (m *MySQLAlertRepository) ExistsAny(
	ctx context.Context,
	alertType alertDomain.AlertType,
	refID uuid.UUID,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT EXISTS (SELECT 1 FROM alerts WHERE alert_type = ? AND ref_id = ?)`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, alertType, refID.String()).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, "failed to check alert existence")
	}
	return exists, nil
}

// ListUndelivered returns live alerts, newest first, with offset/limit pagination.
func (m *MySQLAlertRepository) ListUndelivered(
	ctx context.Context,
	offset, limit int,
) ([]*alertDomain.Alert, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, alert_type, ref_id, message, severity, delivered, created_at
			  FROM alerts
			  WHERE delivered = false
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list undelivered alerts")
	}
	defer rows.Close() //nolint:errcheck

	var alerts []*alertDomain.Alert
	for rows.Next() {
		var (
			alert    alertDomain.Alert
			idStr    string
			refIDStr string
		)
		err := rows.Scan(
			&idStr,
			&alert.Type,
			&refIDStr,
			&alert.Message,
			&alert.Severity,
			&alert.Delivered,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan alert")
		}
		if alert.ID, err = uuid.Parse(idStr); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse alert id")
		}
		if alert.RefID, err = uuid.Parse(refIDStr); err != nil {
			return nil, apperrors.Wrap(err, "failed to parse alert ref id")
		}
		alerts = append(alerts, &alert)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate alerts")
	}
	return alerts, nil
}

// CountUndelivered returns the number of alerts with delivered = false.
func (m *MySQLAlertRepository) CountUndelivered(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM alerts WHERE delivered = false`

	var count int64
	if err := querier.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count undelivered alerts")
	}
	return count, nil
}

// MarkDelivered acknowledges a single alert. Returns ErrAlertNotFound when
// the alert doesn't exist or was already acknowledged.
func (m *MySQLAlertRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE alerts SET delivered = true WHERE id = ? AND delivered = false`

	result, err := querier.ExecContext(ctx, query, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to mark alert delivered")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return alertDomain.ErrAlertNotFound
	}
	return nil
}

// MarkAllDelivered acknowledges every live alert and returns how many were updated.
func (m *MySQLAlertRepository) MarkAllDelivered(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE alerts SET delivered = true WHERE delivered = false`

	result, err := querier.ExecContext(ctx, query)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to mark all alerts delivered")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}

// isMySQLUniqueViolation checks if the error is a MySQL unique constraint violation
func isMySQLUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	// 1062 = ER_DUP_ENTRY
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
