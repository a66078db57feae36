package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var created = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestPetsRepo_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPetsRepo(db)

	mock.ExpectQuery(`SELECT`).
		WithArgs("pet-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "pet-1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPetsRepo_ListWithMissedDoseAlerts(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPetsRepo(db)

	rows := sqlmock.NewRows([]string{
		"id", "owner_user_id", "name", "species", "breed", "sex",
		"birth_date", "microchip", "notes",
		"timezone", "missed_dose_alerts", "alert_delay_minutes",
		"created_at", "updated_at",
	}).AddRow(
		"pet-1", "owner-1", "Luna", "dog", "", "female",
		nil, "", "",
		"Europe/Oslo", true, 60,
		created, created,
	)
	mock.ExpectQuery(`WHERE missed_dose_alerts`).WillReturnRows(rows)

	list, err := repo.ListWithMissedDoseAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pets.Species("dog"), list[0].Species)
	assert.Equal(t, "Europe/Oslo", list[0].Timezone)
	assert.True(t, list[0].MissedDoseAlerts)
	assert.Equal(t, 60, list[0].AlertDelayMinutes)
	assert.Nil(t, list[0].BirthDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessGrantsRepo_GetActiveGrant_ScansScopes(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAccessGrantsRepo(db)

	rows := sqlmock.NewRows([]string{
		"id", "pet_id", "owner_user_id", "grantee_user_id",
		"scopes", "status", "created_at", "updated_at", "revoked_at",
	}).AddRow(
		"g-1", "pet-1", "owner-1", "user-2",
		"{meds:read,meds:log}", "active", created, created, nil,
	)
	mock.ExpectQuery(`FROM access_grants`).
		WithArgs("pet-1", "user-2").
		WillReturnRows(rows)

	g, err := repo.GetActiveGrant(context.Background(), "pet-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, accessgrants.StatusActive, g.Status)
	assert.Equal(t, []accessgrants.Scope{"meds:read", "meds:log"}, g.Scopes)
	assert.Nil(t, g.RevokedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertPreferencesRepo_GetMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAlertPreferencesRepo(db)

	mock.ExpectQuery(`FROM alert_preferences`).
		WithArgs("pet-1", "user-2").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := repo.Get(context.Background(), "pet-1", "user-2")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_GetPlan_ScansArrays(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMedicationsRepo(db)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "medication_id", "pet_id", "start_date", "end_date",
		"schedule_times", "dose_text", "active", "paused_at",
		"created_at", "updated_at",
	}).AddRow(
		"plan-1", "med-1", "pet-1", start, nil,
		"{08:00,20:00}", "1 tablett", true, nil,
		created, created,
	)
	mock.ExpectQuery(`FROM medication_plans`).
		WithArgs("plan-1").
		WillReturnRows(rows)

	p, err := repo.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "20:00"}, p.ScheduleTimes)
	assert.Nil(t, p.EndDate)
	assert.Nil(t, p.PausedAt)
	assert.True(t, p.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationsRepo_UpdatePlan_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMedicationsRepo(db)

	mock.ExpectExec(`UPDATE medication_plans`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePlan(context.Background(), medications.Plan{
		ID:            "plan-x",
		ScheduleTimes: []string{"08:00"},
		UpdatedAt:     created,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoseLogsRepo_GetMissingIsNotAnError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDoseLogsRepo(db)

	mock.ExpectQuery(`FROM dose_logs`).
		WithArgs("log-1").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := repo.Get(context.Background(), "log-1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoseLogsRepo_ListByPlanBetween(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDoseLogsRepo(db)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Nanosecond)
	taken := from.Add(8 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "plan_id", "medication_id", "pet_id",
		"taken_at", "taken_by", "status", "source", "notes", "created_at",
	}).AddRow("log-1", "plan-1", "med-1", "pet-1", taken, "owner-1", "taken", "backfill", "system backfill", created)

	mock.ExpectQuery(`taken_at BETWEEN`).
		WithArgs("plan-1", from, to).
		WillReturnRows(rows)

	list, err := repo.ListByPlanBetween(context.Background(), "plan-1", from, to)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doses.SourceBackfill, list[0].Source)
	assert.Equal(t, doses.StatusTaken, list[0].Status)
	assert.True(t, list[0].TakenAt.Equal(taken))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSentNotificationsRepo_InsertConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSentNotificationsRepo(db)

	day := schedule.Date{Year: 2025, Month: time.March, Day: 1}
	mock.ExpectExec(`INSERT INTO sent_notifications`).
		WithArgs("sn-1", "plan-1", "pet-1", "2025-03-01", pq.Array([]string{"owner-1"}), created).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Insert(context.Background(), notifications.SentNotification{
		ID:         "sn-1",
		PlanID:     "plan-1",
		PetID:      "pet-1",
		LogDate:    day,
		Recipients: []string{"owner-1"},
		SentAt:     created,
	})
	assert.ErrorIs(t, err, notifications.ErrAlreadySent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSentNotificationsRepo_CountAndPrune(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSentNotificationsRepo(db)
	day := schedule.Date{Year: 2025, Month: time.March, Day: 1}

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("plan-1", "2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM sent_notifications`).
		WithArgs("2025-03-01").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.Count(context.Background(), "plan-1", day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pruned, err := repo.DeleteBefore(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPushEndpointsRepo_ListByUsersEmptySkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPushEndpointsRepo(db)

	list, err := repo.ListByUsers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}
