package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

const medicationColumns = `
	id, pet_id, name, strength, notes, color,
	created_by, created_at, updated_at`

const planColumns = `
	id, medication_id, pet_id,
	start_date, end_date,
	schedule_times, dose_text,
	active, paused_at,
	created_at, updated_at`

func (r *MedicationsRepo) CreateMedication(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (`+medicationColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		m.ID, m.PetID, m.Name, m.Strength, m.Notes, m.Color,
		m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) UpdateMedication(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET name = $2, strength = $3, notes = $4, color = $5, updated_at = $6
		WHERE id = $1
	`, m.ID, m.Name, m.Strength, m.Notes, m.Color, m.UpdatedAt)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) GetMedication(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, ErrNotFound
	}

	var m medications.Medication
	err := r.db.QueryRowContext(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id).Scan(
		&m.ID, &m.PetID, &m.Name, &m.Strength, &m.Notes, &m.Color,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return medications.Medication{}, ErrNotFound
	}
	return m, err
}

func (r *MedicationsRepo) ListMedicationsByPet(ctx context.Context, petID string) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE pet_id = $1
		ORDER BY created_at ASC
	`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		var m medications.Medication
		if err := rows.Scan(
			&m.ID, &m.PetID, &m.Name, &m.Strength, &m.Notes, &m.Color,
			&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MedicationsRepo) DeleteMedication(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	return err
}

func (r *MedicationsRepo) CreatePlan(ctx context.Context, p medications.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medication_plans (`+planColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		p.ID, p.MedicationID, p.PetID,
		p.StartDate, toNullTime(p.EndDate),
		pq.Array(p.ScheduleTimes), p.DoseText,
		p.Active, toNullTime(p.PausedAt),
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) UpdatePlan(ctx context.Context, p medications.Plan) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medication_plans
		SET
			start_date = $2,
			end_date = $3,
			schedule_times = $4,
			dose_text = $5,
			active = $6,
			paused_at = $7,
			updated_at = $8
		WHERE id = $1
	`,
		p.ID,
		p.StartDate, toNullTime(p.EndDate),
		pq.Array(p.ScheduleTimes), p.DoseText,
		p.Active, toNullTime(p.PausedAt),
		p.UpdatedAt,
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

func (r *MedicationsRepo) GetPlan(ctx context.Context, id string) (medications.Plan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Plan{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM medication_plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return medications.Plan{}, ErrNotFound
	}
	return p, err
}

func (r *MedicationsRepo) ListPlansByMedication(ctx context.Context, medicationID string) ([]medications.Plan, error) {
	return r.listPlans(ctx, `
		SELECT `+planColumns+`
		FROM medication_plans
		WHERE medication_id = $1
		ORDER BY created_at DESC
	`, medicationID)
}

func (r *MedicationsRepo) ListActivePlansByPet(ctx context.Context, petID string) ([]medications.Plan, error) {
	return r.listPlans(ctx, `
		SELECT `+planColumns+`
		FROM medication_plans
		WHERE pet_id = $1 AND active
		ORDER BY created_at DESC
	`, petID)
}

func (r *MedicationsRepo) DeletePlansByMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM medication_plans WHERE medication_id = $1`, medicationID)
	return err
}

func (r *MedicationsRepo) listPlans(ctx context.Context, query string, args ...any) ([]medications.Plan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(s scanner) (medications.Plan, error) {
	var p medications.Plan
	var endDate, pausedAt sql.NullTime
	var times []string

	if err := s.Scan(
		&p.ID, &p.MedicationID, &p.PetID,
		&p.StartDate, &endDate,
		pq.Array(&times), &p.DoseText,
		&p.Active, &pausedAt,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return medications.Plan{}, err
	}

	p.EndDate = fromNullTime(endDate)
	p.PausedAt = fromNullTime(pausedAt)
	p.ScheduleTimes = times
	return p, nil
}
