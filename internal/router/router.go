package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/trymsn1992-dev/hunde-medisin-sub000/docs"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/push/logdispatch"
	mem "github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/memory"
	pg "github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/postgres"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/redisstore"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/config"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/medications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/jobs/misseddose"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/middleware"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/logger"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/platform/metrics"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/auth"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
)

type Options struct {
	Config *config.Config // nil => config.Defaults()

	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB
	// Opcional: si viene, los avisos enviados se guardan en redis.
	Redis *redis.Client

	Dispatcher push.Dispatcher // nil => solo log
	Logger     logger.Logger
	Metrics    *metrics.Recorder
	Clock      misseddose.Clock
}

// App agrupa lo que necesitan los binarios: el handler HTTP y el job de dosis omitidas.
type App struct {
	Handler http.Handler
	Job     *misseddose.Job

	Pets          *pets.Service
	Grants        *accessgrants.Service
	Medications   *medications.Service
	Doses         *doses.Service
	Notifications *notifications.Service
}

func NewRouter(opts Options) http.Handler {
	return New(opts).Handler
}

func New(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = logdispatch.New(log)
	}

	var (
		petRepo      pets.Repository
		grantsRepo   accessgrants.Repository
		prefsRepo    accessgrants.PreferenceRepository
		medsRepo     medications.Repository
		doseRepo     doses.Repository
		endpointRepo notifications.EndpointRepository
		sentRepo     notifications.SentRepository
	)

	if db := opts.DB; db != nil {
		petRepo = pg.NewPetsRepo(db)
		grantsRepo = pg.NewAccessGrantsRepo(db)
		prefsRepo = pg.NewAlertPreferencesRepo(db)
		medsRepo = pg.NewMedicationsRepo(db)
		doseRepo = pg.NewDoseLogsRepo(db)
		endpointRepo = pg.NewPushEndpointsRepo(db)
		sentRepo = pg.NewSentNotificationsRepo(db)
	} else {
		petRepo = mem.NewPetRepo()
		grantsRepo = mem.NewAccessGrantsRepo()
		prefsRepo = mem.NewAlertPreferenceRepo()
		medsRepo = mem.NewMedicationRepo()
		doseRepo = mem.NewDoseLogRepo()
		endpointRepo = mem.NewPushEndpointRepo()
		sentRepo = mem.NewSentNotificationRepo()
	}
	if opts.Redis != nil {
		sentRepo = redisstore.NewSentRepo(opts.Redis, cfg.Sweep.RetentionDays)
	}

	// Services por módulo
	petsSvc := pets.NewService(petRepo, pets.Defaults{
		Location:          cfg.DefaultLocation,
		AlertDelayMinutes: cfg.DefaultAlertDelayMinutes,
	})
	grantsSvc := accessgrants.NewService(grantsRepo, prefsRepo)
	ledger := doses.NewLedger(doseRepo, opts.Metrics)
	medsSvc := medications.NewService(medsRepo, ledger, log.With(map[string]any{"module": "medications"}))
	notifySvc := notifications.NewService(endpointRepo, dispatcher, grantsSvc, petsSvc,
		log.With(map[string]any{"module": "notifications"}), opts.Metrics)
	dosesSvc := doses.NewService(doses.Deps{
		Repo:          doseRepo,
		Plans:         medsSvc,
		Notifier:      notifySvc,
		Logger:        log.With(map[string]any{"module": "doses"}),
		Metrics:       opts.Metrics,
		NotifyTimeout: cfg.Push.NotifyTimeout,
	})

	job := misseddose.New(misseddose.Deps{
		Pets:          petsSvc,
		Plans:         medsSvc,
		Logs:          doseRepo,
		Sent:          sentRepo,
		Recipients:    grantsSvc,
		Deliverer:     notifySvc,
		Clock:         opts.Clock,
		Logger:        log,
		Metrics:       opts.Metrics,
		RetentionDays: cfg.Sweep.RetentionDays,
	})

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AuthContext(opts.AuthVerifier, log))
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	pets.RegisterRoutes(r, petsSvc, grantsSvc)
	accessgrants.RegisterRoutes(r, grantsSvc, petsSvc)
	medications.RegisterRoutes(r, medsSvc, petsSvc, grantsSvc)
	doses.RegisterRoutes(r, dosesSvc, petsSvc, grantsSvc)
	notifications.RegisterRoutes(r, notifySvc)
	misseddose.RegisterRoutes(r, job, cfg.Sweep.TriggerToken)

	return &App{
		Handler:       r,
		Job:           job,
		Pets:          petsSvc,
		Grants:        grantsSvc,
		Medications:   medsSvc,
		Doses:         dosesSvc,
		Notifications: notifySvc,
	}
}
