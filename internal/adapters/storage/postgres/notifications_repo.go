package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

type PushEndpointsRepo struct {
	db *sql.DB
}

func NewPushEndpointsRepo(db *sql.DB) *PushEndpointsRepo {
	return &PushEndpointsRepo{db: db}
}

const endpointColumns = `id, user_id, endpoint, p256dh, auth, device_name, created_at`

// Upsert: misma (user_id, endpoint) conserva id y created_at y actualiza las claves.
func (r *PushEndpointsRepo) Upsert(ctx context.Context, e notifications.PushEndpoint) (notifications.PushEndpoint, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO push_endpoints (`+endpointColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id, endpoint) DO UPDATE
		SET p256dh = EXCLUDED.p256dh,
		    auth = EXCLUDED.auth,
		    device_name = EXCLUDED.device_name
		RETURNING `+endpointColumns,
		e.ID, e.UserID, e.Endpoint, e.P256dh, e.Auth, e.DeviceName, e.CreatedAt,
	)
	return scanEndpoint(row)
}

func (r *PushEndpointsRepo) Get(ctx context.Context, id string) (notifications.PushEndpoint, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM push_endpoints WHERE id = $1`, id)
	e, err := scanEndpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notifications.PushEndpoint{}, false, nil
	}
	if err != nil {
		return notifications.PushEndpoint{}, false, err
	}
	return e, true, nil
}

func (r *PushEndpointsRepo) ListByUser(ctx context.Context, userID string) ([]notifications.PushEndpoint, error) {
	return r.list(ctx, `
		SELECT `+endpointColumns+`
		FROM push_endpoints
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
}

func (r *PushEndpointsRepo) ListByUsers(ctx context.Context, userIDs []string) ([]notifications.PushEndpoint, error) {
	if len(userIDs) == 0 {
		return []notifications.PushEndpoint{}, nil
	}
	return r.list(ctx, `
		SELECT `+endpointColumns+`
		FROM push_endpoints
		WHERE user_id = ANY($1)
		ORDER BY user_id ASC, created_at ASC
	`, pq.Array(userIDs))
}

func (r *PushEndpointsRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_endpoints WHERE id = $1`, id)
	return err
}

func (r *PushEndpointsRepo) list(ctx context.Context, query string, args ...any) ([]notifications.PushEndpoint, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notifications.PushEndpoint, 0)
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEndpoint(s scanner) (notifications.PushEndpoint, error) {
	var e notifications.PushEndpoint
	err := s.Scan(&e.ID, &e.UserID, &e.Endpoint, &e.P256dh, &e.Auth, &e.DeviceName, &e.CreatedAt)
	return e, err
}

// SentNotificationsRepo depende del índice único (plan_id, log_date).
type SentNotificationsRepo struct {
	db *sql.DB
}

func NewSentNotificationsRepo(db *sql.DB) *SentNotificationsRepo {
	return &SentNotificationsRepo{db: db}
}

func (r *SentNotificationsRepo) Count(ctx context.Context, planID string, day schedule.Date) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sent_notifications
		WHERE plan_id = $1 AND log_date = $2
	`, planID, day.String()).Scan(&n)
	return n, err
}

func (r *SentNotificationsRepo) Insert(ctx context.Context, n notifications.SentNotification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sent_notifications (id, plan_id, pet_id, log_date, recipients, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, n.ID, n.PlanID, n.PetID, n.LogDate.String(), pq.Array(n.Recipients), n.SentAt)
	if isUniqueViolation(err) {
		return notifications.ErrAlreadySent
	}
	return err
}

func (r *SentNotificationsRepo) DeleteBefore(ctx context.Context, day schedule.Date) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sent_notifications WHERE log_date < $1`, day.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

