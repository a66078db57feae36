package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
)

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

const grantColumns = `
	id, pet_id, owner_user_id, grantee_user_id,
	scopes, status,
	created_at, updated_at, revoked_at`

func (r *AccessGrantsRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (`+grantColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.PetID,
		g.OwnerUserID,
		g.GranteeUserID,
		pq.Array(scopesToText(g.Scopes)),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *AccessGrantsRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		pq.Array(scopesToText(g.Scopes)),
		string(g.Status),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE id = $1`, id)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accessgrants.Grant{}, ErrNotFound
	}
	return g, err
}

func (r *AccessGrantsRepo) ListByPet(ctx context.Context, petID string) ([]accessgrants.Grant, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE pet_id = $1 ORDER BY created_at ASC`, petID)
}

// GetActiveGrant: si hubiera varios activos gana el más reciente por updated_at.
func (r *AccessGrantsRepo) GetActiveGrant(ctx context.Context, petID, granteeUserID string) (accessgrants.Grant, error) {
	petID = strings.TrimSpace(petID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if petID == "" || granteeUserID == "" {
		return accessgrants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE pet_id = $1
		  AND grantee_user_id = $2
		  AND status = 'active'
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, petID, granteeUserID)

	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accessgrants.Grant{}, ErrNotFound
	}
	return g, err
}

func (r *AccessGrantsRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]accessgrants.Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE grantee_user_id = $1 ORDER BY updated_at DESC`, granteeUserID)
}

func (r *AccessGrantsRepo) list(ctx context.Context, query string, args ...any) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrant(s scanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	var status string
	var scopes []string
	var revokedAt sql.NullTime

	if err := s.Scan(
		&g.ID,
		&g.PetID,
		&g.OwnerUserID,
		&g.GranteeUserID,
		pq.Array(&scopes),
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		return accessgrants.Grant{}, err
	}

	g.Status = accessgrants.Status(status)
	g.Scopes = textToScopes(scopes)
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}

func scopesToText(in []accessgrants.Scope) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func textToScopes(in []string) []accessgrants.Scope {
	out := make([]accessgrants.Scope, 0, len(in))
	for _, s := range in {
		out = append(out, accessgrants.Scope(s))
	}
	return out
}

// AlertPreferencesRepo guarda una fila por (pet_id, user_id).
type AlertPreferencesRepo struct {
	db *sql.DB
}

func NewAlertPreferencesRepo(db *sql.DB) *AlertPreferencesRepo {
	return &AlertPreferencesRepo{db: db}
}

func (r *AlertPreferencesRepo) Get(ctx context.Context, petID, userID string) (accessgrants.AlertPreference, bool, error) {
	var p accessgrants.AlertPreference
	err := r.db.QueryRowContext(ctx, `
		SELECT pet_id, user_id, missed_doses, dose_given, updated_at
		FROM alert_preferences
		WHERE pet_id = $1 AND user_id = $2
	`, petID, userID).Scan(&p.PetID, &p.UserID, &p.MissedDoses, &p.DoseGiven, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return accessgrants.AlertPreference{}, false, nil
	}
	if err != nil {
		return accessgrants.AlertPreference{}, false, err
	}
	return p, true, nil
}

func (r *AlertPreferencesRepo) Upsert(ctx context.Context, p accessgrants.AlertPreference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_preferences (pet_id, user_id, missed_doses, dose_given, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (pet_id, user_id) DO UPDATE
		SET missed_doses = EXCLUDED.missed_doses,
		    dose_given = EXCLUDED.dose_given,
		    updated_at = EXCLUDED.updated_at
	`, p.PetID, p.UserID, p.MissedDoses, p.DoseGiven, p.UpdatedAt)
	return err
}

func (r *AlertPreferencesRepo) ListByPet(ctx context.Context, petID string) ([]accessgrants.AlertPreference, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pet_id, user_id, missed_doses, dose_given, updated_at
		FROM alert_preferences
		WHERE pet_id = $1
		ORDER BY user_id ASC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]accessgrants.AlertPreference, 0)
	for rows.Next() {
		var p accessgrants.AlertPreference
		if err := rows.Scan(&p.PetID, &p.UserID, &p.MissedDoses, &p.DoseGiven, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
