package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
)

const selectAlertColumns = `
    id, kind, entity, severity, value, threshold, message,
    triggered_at, acknowledged, acknowledged_at, resolved_at`

func (s *sqliteStore) SaveAlert(ctx context.Context, alert *metrics.Alert) error {
	errFactory := errors.New()

	if alert == nil || alert.ID == "" {
		return errFactory.New(errors.ErrInvalidArgument)
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO alerts (
            id, kind, entity, severity, value, threshold, message,
            triggered_at, acknowledged, acknowledged_at, resolved_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            value = excluded.value,
            acknowledged = excluded.acknowledged,
            acknowledged_at = excluded.acknowledged_at,
            resolved_at = excluded.resolved_at`,
		alert.ID,
		string(alert.Kind),
		alert.Entity,
		string(alert.Severity),
		alert.Value,
		alert.Threshold,
		alert.Message,
		alert.TriggeredAt.UnixNano(),
		boolToInt(alert.Acknowledged),
		nullableTime(alert.AcknowledgedAt),
		nullableTime(alert.ResolvedAt),
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) GetAlert(ctx context.Context, id string) (*metrics.Alert, error) {
	errFactory := errors.New()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectAlertColumns+` FROM alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errFactory.WithData(errors.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return alert, nil
}

func (s *sqliteStore) OpenAlerts(ctx context.Context) ([]metrics.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT `+selectAlertColumns+`
         FROM alerts
         WHERE resolved_at IS NULL
         ORDER BY triggered_at DESC`)
}

func (s *sqliteStore) AlertsSince(ctx context.Context, since time.Time) ([]metrics.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT `+selectAlertColumns+`
         FROM alerts
         WHERE triggered_at >= ?
         ORDER BY triggered_at DESC`,
		since.UnixNano())
}

func (s *sqliteStore) queryAlerts(ctx context.Context, query string, args ...any) ([]metrics.Alert, error) {
	errFactory := errors.New()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	out := []metrics.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func scanAlert(row rowScanner) (*metrics.Alert, error) {
	var (
		alert          metrics.Alert
		kind           string
		severity       string
		triggeredAt    int64
		acknowledged   int
		acknowledgedAt sql.NullInt64
		resolvedAt     sql.NullInt64
	)
	if err := row.Scan(&alert.ID, &kind, &alert.Entity, &severity,
		&alert.Value, &alert.Threshold, &alert.Message,
		&triggeredAt, &acknowledged, &acknowledgedAt, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	alert.Kind = metrics.Kind(kind)
	alert.Severity = metrics.Severity(severity)
	alert.TriggeredAt = time.Unix(0, triggeredAt)
	alert.Acknowledged = acknowledged != 0
	if acknowledgedAt.Valid {
		t := time.Unix(0, acknowledgedAt.Int64)
		alert.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := time.Unix(0, resolvedAt.Int64)
		alert.ResolvedAt = &t
	}

	return &alert, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UnixNano()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
