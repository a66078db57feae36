package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort              = "8080"
	defaultTimezone          = "Europe/Oslo"
	defaultAlertDelayMinutes = 30
	defaultSweepInterval     = 5 * time.Minute
	defaultRetentionDays     = 30
	defaultNotifyTimeout     = 10 * time.Second
	defaultOdinCacheTTL      = time.Minute
	defaultRedisDB           = 0
)

type Config struct {
	Port string

	// DB_DSN vacío => repos in-memory (modo dev).
	DatabaseDSN string

	Redis *RedisConfig

	DefaultLocation          *time.Location
	DefaultAlertDelayMinutes int

	Sweep SweepConfig
	Push  PushConfig
	Odin  OdinConfig
}

// RedisConfig es opcional: sin REDIS_ADDR no se usa redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SweepConfig struct {
	Interval      time.Duration
	RetentionDays int
	// Token para POST /internal/jobs/missed-doses. Vacío => endpoint deshabilitado.
	TriggerToken string
	// InProcess corre el Runner dentro del API (SWEEP_IN_PROCESS).
	InProcess bool
}

type PushConfig struct {
	RelayURL      string
	RelayAPIKey   string
	NotifyTimeout time.Duration
}

type OdinConfig struct {
	BaseURL  string
	APIKey   string
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	tzName := strings.TrimSpace(os.Getenv("DEFAULT_TIMEZONE"))
	if tzName == "" {
		tzName = defaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, tzName)
	}

	delay := defaultAlertDelayMinutes
	if v := os.Getenv("DEFAULT_ALERT_DELAY_MINUTES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, ErrInvalidAlertDelay
		}
		delay = parsed
	}

	interval, err := durationEnv("SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}

	retention := defaultRetentionDays
	if v := os.Getenv("SENT_NOTIFICATION_RETENTION_DAYS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, ErrInvalidRetention
		}
		retention = parsed
	}

	inProcess := false
	if v := strings.TrimSpace(os.Getenv("SWEEP_IN_PROCESS")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, ErrInvalidInProcess
		}
		inProcess = parsed
	}

	notifyTimeout, err := durationEnv("NOTIFY_TIMEOUT", defaultNotifyTimeout)
	if err != nil {
		return nil, err
	}

	odinTTL, err := durationEnv("ODIN_CACHE_TTL", defaultOdinCacheTTL)
	if err != nil {
		return nil, err
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                     port,
		DatabaseDSN:              strings.TrimSpace(os.Getenv("DB_DSN")),
		Redis:                    redisCfg,
		DefaultLocation:          loc,
		DefaultAlertDelayMinutes: delay,
		Sweep: SweepConfig{
			Interval:      interval,
			RetentionDays: retention,
			TriggerToken:  strings.TrimSpace(os.Getenv("JOB_TRIGGER_TOKEN")),
			InProcess:     inProcess,
		},
		Push: PushConfig{
			RelayURL:      strings.TrimSpace(os.Getenv("PUSH_RELAY_URL")),
			RelayAPIKey:   strings.TrimSpace(os.Getenv("PUSH_RELAY_API_KEY")),
			NotifyTimeout: notifyTimeout,
		},
		Odin: OdinConfig{
			BaseURL:  strings.TrimSpace(os.Getenv("ODIN_BASE_URL")),
			APIKey:   strings.TrimSpace(os.Getenv("ODIN_API_KEY")),
			CacheTTL: odinTTL,
		},
	}, nil
}

func loadRedisConfig() (*RedisConfig, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	db := defaultRedisDB
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, ErrInvalidRedisDB
		}
		db = parsed
	}

	return &RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, v)
	}
	return d, nil
}

// Defaults devuelve la configuración sin env (tests y modo dev).
func Defaults() *Config {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &Config{
		Port:                     defaultPort,
		DefaultLocation:          loc,
		DefaultAlertDelayMinutes: defaultAlertDelayMinutes,
		Sweep: SweepConfig{
			Interval:      defaultSweepInterval,
			RetentionDays: defaultRetentionDays,
		},
		Push: PushConfig{NotifyTimeout: defaultNotifyTimeout},
		Odin: OdinConfig{CacheTTL: defaultOdinCacheTTL},
	}
}
