package misseddose

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/memory"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

var cet = time.FixedZone("CET", 60*60)

type fixture struct {
	now time.Time

	petRepo   pets.Repository
	medRepo   medications.Repository
	logs      doses.Repository
	sent      notifications.SentRepository
	endpoints notifications.EndpointRepository

	petsSvc    *pets.Service
	grants     *accessgrants.Service
	meds       *medications.Service
	dispatcher *push.MockDispatcher
	notifier   *notifications.Service
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		now:        now,
		petRepo:    memory.NewPetRepo(),
		medRepo:    memory.NewMedicationRepo(),
		logs:       memory.NewDoseLogRepo(),
		sent:       memory.NewSentNotificationRepo(),
		endpoints:  memory.NewPushEndpointRepo(),
		dispatcher: push.NewMockDispatcher(ctrl),
	}
	f.petsSvc = pets.NewService(f.petRepo, pets.Defaults{Location: cet, AlertDelayMinutes: 30})
	f.grants = accessgrants.NewService(memory.NewAccessGrantsRepo(), memory.NewAlertPreferenceRepo())
	f.meds = medications.NewService(f.medRepo, nil, logger.Nop())
	f.notifier = notifications.NewService(f.endpoints, f.dispatcher, f.grants, f.petsSvc, logger.Nop(), nil)
	return f
}

func (f *fixture) job(retentionDays int) *Job {
	return New(Deps{
		Pets:          f.petsSvc,
		Plans:         f.meds,
		Logs:          f.logs,
		Sent:          f.sent,
		Recipients:    f.grants,
		Deliverer:     f.notifier,
		Clock:         ClockFunc(func() time.Time { return f.now }),
		Logger:        logger.Nop(),
		RetentionDays: retentionDays,
	})
}

// addPet crea una mascota con alertas, la preferencia del dueño y un endpoint push.
func (f *fixture) addPet(t *testing.T, petID string, optIn bool) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.petRepo.Create(ctx, pets.Pet{
		ID:                petID,
		OwnerUserID:       "owner-" + petID,
		Name:              "Milo",
		MissedDoseAlerts:  true,
		AlertDelayMinutes: 30,
		CreatedAt:         f.now.Add(-time.Hour),
	}))
	_, err := f.grants.SetPreference(ctx, petID, "owner-"+petID, accessgrants.PreferenceInput{MissedDoses: optIn})
	require.NoError(t, err)
	_, err = f.endpoints.Upsert(ctx, notifications.PushEndpoint{
		ID:        "ep-" + petID,
		UserID:    "owner-" + petID,
		Endpoint:  "https://push.example.com/" + petID,
		P256dh:    "key",
		Auth:      "auth",
		CreatedAt: f.now.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func (f *fixture) addPlan(t *testing.T, petID, planID string, times ...string) {
	t.Helper()
	ctx := context.Background()

	medID := "med-" + planID
	require.NoError(t, f.medRepo.CreateMedication(ctx, medications.Medication{
		ID:        medID,
		PetID:     petID,
		Name:      "Apoquel",
		CreatedAt: f.now.AddDate(0, 0, -1),
	}))
	require.NoError(t, f.medRepo.CreatePlan(ctx, medications.Plan{
		ID:            planID,
		MedicationID:  medID,
		PetID:         petID,
		StartDate:     f.now.AddDate(0, 0, -1),
		ScheduleTimes: times,
		Active:        true,
		CreatedAt:     f.now.AddDate(0, 0, -1),
	}))
}

func TestRun_AlertsOncePerPlanPerDay(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 13, 0, 0, 0, cet))
	f.addPet(t, "pet-1", true)
	f.addPlan(t, "pet-1", "plan-1", "08:00", "12:00")

	f.dispatcher.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, e push.Endpoint, msg push.Message) error {
			assert.Equal(t, "ep-pet-1", e.ID)
			assert.Contains(t, msg.Title, "Apoquel")
			assert.Contains(t, msg.Body, "30 minutter")
			return nil
		}).
		Times(1)

	job := f.job(0)

	rep, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PetsScanned)
	assert.Equal(t, 1, rep.PlansEvaluated)
	assert.Equal(t, 1, rep.AlertsSent)

	n, err := f.sent.Count(context.Background(), "plan-1", schedule.DateOf(f.now, cet))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// mismo día, mismos conteos: nada más
	rep, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.AlertsSent)

	// aunque falte otro slot más tarde, la fila del día suprime el aviso
	f.now = time.Date(2025, 3, 10, 23, 0, 0, 0, cet)
	rep, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.AlertsSent)
}

func TestRun_RespectsAlertDelay(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 8, 29, 0, 0, cet))
	f.addPet(t, "pet-1", true)
	f.addPlan(t, "pet-1", "plan-1", "08:00")

	job := f.job(0)

	rep, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.AlertsSent)

	f.dispatcher.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	f.now = time.Date(2025, 3, 10, 8, 31, 0, 0, cet)
	rep, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.AlertsSent)
}

func TestRun_LoggedDosesCoverDueSlots(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 13, 0, 0, 0, cet))
	f.addPet(t, "pet-1", true)
	f.addPlan(t, "pet-1", "plan-1", "08:00", "12:00")

	// el conteo es grueso: cualquier registro del día cuenta
	for i, at := range []time.Time{
		time.Date(2025, 3, 10, 7, 0, 0, 0, cet),
		time.Date(2025, 3, 10, 7, 5, 0, 0, cet),
	} {
		require.NoError(t, f.logs.Create(context.Background(), doses.DoseLog{
			ID:      "log-" + string(rune('a'+i)),
			PlanID:  "plan-1",
			PetID:   "pet-1",
			TakenAt: at,
			Status:  doses.StatusTaken,
		}))
	}

	rep, err := f.job(0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.AlertsSent)
}

func TestRun_WithoutOptInSendsNothing(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 13, 0, 0, 0, cet))
	f.addPet(t, "pet-1", false)
	f.addPlan(t, "pet-1", "plan-1", "08:00")

	rep, err := f.job(0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.AlertsSent)

	n, err := f.sent.Count(context.Background(), "plan-1", schedule.DateOf(f.now, cet))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRun_DispatchErrorsNeverAbortTheBatch(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 13, 0, 0, 0, cet))
	f.addPet(t, "pet-1", true)
	f.addPlan(t, "pet-1", "plan-1", "08:00")

	_, err := f.endpoints.Upsert(context.Background(), notifications.PushEndpoint{
		ID:        "ep-2",
		UserID:    "owner-pet-1",
		Endpoint:  "https://push.example.com/second",
		P256dh:    "key",
		Auth:      "auth",
		CreatedAt: f.now,
	})
	require.NoError(t, err)

	f.dispatcher.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, e push.Endpoint, msg push.Message) error {
			if e.ID == "ep-pet-1" {
				return push.ErrEndpointGone
			}
			return errors.New("relay timeout")
		}).
		Times(2)

	rep, err := f.job(0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.AlertsSent)
	assert.Equal(t, 1, rep.EndpointsPruned)
	assert.Equal(t, 1, rep.DispatchErrors)

	_, found, err := f.endpoints.Get(context.Background(), "ep-pet-1")
	require.NoError(t, err)
	assert.False(t, found, "gone endpoint must be deleted")

	_, found, err = f.endpoints.Get(context.Background(), "ep-2")
	require.NoError(t, err)
	assert.True(t, found, "transient failure keeps the endpoint")

	n, err := f.sent.Count(context.Background(), "plan-1", schedule.DateOf(f.now, cet))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type flakyPlans struct {
	PlanSource
	failFor string
}

func (p flakyPlans) ActivePlansForPet(ctx context.Context, petID string) ([]medications.ActivePlan, error) {
	if petID == p.failFor {
		return nil, errors.New("db timeout")
	}
	return p.PlanSource.ActivePlansForPet(ctx, petID)
}

func TestRun_IsolatesPetFailures(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 13, 0, 0, 0, cet))
	f.addPet(t, "pet-bad", true)
	f.addPet(t, "pet-good", true)
	f.addPlan(t, "pet-bad", "plan-bad", "08:00")
	f.addPlan(t, "pet-good", "plan-good", "08:00")

	f.dispatcher.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	job := New(Deps{
		Pets:       f.petsSvc,
		Plans:      flakyPlans{PlanSource: f.meds, failFor: "pet-bad"},
		Logs:       f.logs,
		Sent:       f.sent,
		Recipients: f.grants,
		Deliverer:  f.notifier,
		Clock:      ClockFunc(func() time.Time { return f.now }),
	})

	rep, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.PetsScanned)
	assert.Equal(t, 1, rep.PetsFailed)
	assert.Equal(t, 1, rep.AlertsSent)
}

func TestRun_PrunesOldSentRows(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 6, 0, 0, 0, cet))
	today := schedule.DateOf(f.now, cet)

	require.NoError(t, f.sent.Insert(context.Background(), notifications.SentNotification{
		ID: "old", PlanID: "plan-1", LogDate: today.AddDays(-40),
	}))
	require.NoError(t, f.sent.Insert(context.Background(), notifications.SentNotification{
		ID: "recent", PlanID: "plan-1", LogDate: today.AddDays(-2),
	}))

	rep, err := f.job(30).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.SentPruned)
}

func TestDueSlots(t *testing.T) {
	tests := []struct {
		name   string
		times  []string
		delay  int
		nowMin int
		want   int
	}{
		{"none elapsed", []string{"08:00", "20:00"}, 30, 8*60 + 30, 0},
		{"first elapsed", []string{"08:00", "20:00"}, 30, 8*60 + 31, 1},
		{"all elapsed", []string{"08:00", "20:00"}, 0, 23 * 60, 2},
		{"invalid skipped", []string{"bad", "08:00"}, 0, 9 * 60, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dueSlots(tt.times, tt.delay, tt.nowMin))
		})
	}
}

func TestTriggerHandler(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 6, 0, 0, 0, cet))
	r := chi.NewRouter()
	RegisterRoutes(r, f.job(0), "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/missed-doses", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/jobs/missed-doses", nil)
	req.Header.Set("X-Job-Token", "s3cret")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var rep Report
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rep))
	assert.Equal(t, 0, rep.PetsScanned)
}

func TestRegisterRoutes_WithoutTokenIsDisabled(t *testing.T) {
	f := newFixture(t, time.Now())
	r := chi.NewRouter()
	RegisterRoutes(r, f.job(0), "")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/jobs/missed-doses", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
