package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
)

type PetsRepo struct {
	db *sql.DB
}

func NewPetsRepo(db *sql.DB) *PetsRepo {
	return &PetsRepo{db: db}
}

const petColumns = `
	id, owner_user_id,
	name, species, breed, sex,
	birth_date, microchip, notes,
	timezone, missed_dose_alerts, alert_delay_minutes,
	created_at, updated_at`

func (r *PetsRepo) Create(ctx context.Context, p pets.Pet) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pets (`+petColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		p.ID,
		p.OwnerUserID,
		p.Name,
		string(p.Species),
		p.Breed,
		string(p.Sex),
		toNullTime(p.BirthDate),
		p.Microchip,
		p.Notes,
		p.Timezone,
		p.MissedDoseAlerts,
		p.AlertDelayMinutes,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PetsRepo) Update(ctx context.Context, p pets.Pet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pets
		SET
			name = $2,
			species = $3,
			breed = $4,
			sex = $5,
			birth_date = $6,
			microchip = $7,
			notes = $8,
			timezone = $9,
			missed_dose_alerts = $10,
			alert_delay_minutes = $11,
			updated_at = $12
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		string(p.Species),
		p.Breed,
		string(p.Sex),
		toNullTime(p.BirthDate),
		p.Microchip,
		p.Notes,
		p.Timezone,
		p.MissedDoseAlerts,
		p.AlertDelayMinutes,
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

func (r *PetsRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pets.Pet{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id)
	p, err := scanPet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pets.Pet{}, ErrNotFound
	}
	return p, err
}

func (r *PetsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]pets.Pet, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+petColumns+` FROM pets WHERE owner_user_id = $1 ORDER BY created_at ASC`, ownerUserID)
}

func (r *PetsRepo) ListWithMissedDoseAlerts(ctx context.Context) ([]pets.Pet, error) {
	return r.list(ctx, `SELECT `+petColumns+` FROM pets WHERE missed_dose_alerts ORDER BY created_at ASC`)
}

func (r *PetsRepo) list(ctx context.Context, query string, args ...any) ([]pets.Pet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPet(s scanner) (pets.Pet, error) {
	var p pets.Pet
	var species, sex string
	// birth_date es DATE; pgx lo entrega como medianoche UTC
	var bd sql.NullTime

	if err := s.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&species,
		&p.Breed,
		&sex,
		&bd,
		&p.Microchip,
		&p.Notes,
		&p.Timezone,
		&p.MissedDoseAlerts,
		&p.AlertDelayMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return pets.Pet{}, err
	}

	p.Species = pets.Species(species)
	p.Sex = pets.Sex(sex)
	p.BirthDate = fromNullTime(bd)
	return p, nil
}
