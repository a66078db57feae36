package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
)

type DoseLogsRepo struct {
	db *sql.DB
}

func NewDoseLogsRepo(db *sql.DB) *DoseLogsRepo {
	return &DoseLogsRepo{db: db}
}

const doseLogColumns = `
	id, plan_id, medication_id, pet_id,
	taken_at, taken_by, status, source, notes,
	created_at`

func (r *DoseLogsRepo) Create(ctx context.Context, l doses.DoseLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dose_logs (`+doseLogColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		l.ID, l.PlanID, l.MedicationID, l.PetID,
		l.TakenAt, l.TakenBy, string(l.Status), string(l.Source), l.Notes,
		l.CreatedAt,
	)
	return err
}

func (r *DoseLogsRepo) Get(ctx context.Context, id string) (doses.DoseLog, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return doses.DoseLog{}, false, nil
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+doseLogColumns+` FROM dose_logs WHERE id = $1`, id)
	l, err := scanDoseLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return doses.DoseLog{}, false, nil
	}
	if err != nil {
		return doses.DoseLog{}, false, err
	}
	return l, true, nil
}

func (r *DoseLogsRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dose_logs WHERE id = $1`, id)
	return err
}

func (r *DoseLogsRepo) ListByPlanBetween(ctx context.Context, planID string, from, to time.Time) ([]doses.DoseLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+doseLogColumns+`
		FROM dose_logs
		WHERE plan_id = $1
		  AND taken_at BETWEEN $2 AND $3
		ORDER BY taken_at ASC
	`, planID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]doses.DoseLog, 0)
	for rows.Next() {
		l, err := scanDoseLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *DoseLogsRepo) CountByPlanBetween(ctx context.Context, planID string, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM dose_logs
		WHERE plan_id = $1
		  AND taken_at BETWEEN $2 AND $3
	`, planID, from, to).Scan(&n)
	return n, err
}

func (r *DoseLogsRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dose_logs WHERE medication_id = $1`, medicationID)
	return err
}

func scanDoseLog(s scanner) (doses.DoseLog, error) {
	var l doses.DoseLog
	var status, source string

	if err := s.Scan(
		&l.ID, &l.PlanID, &l.MedicationID, &l.PetID,
		&l.TakenAt, &l.TakenBy, &status, &source, &l.Notes,
		&l.CreatedAt,
	); err != nil {
		return doses.DoseLog{}, err
	}

	l.Status = doses.Status(status)
	l.Source = doses.Source(source)
	return l, nil
}
