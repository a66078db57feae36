package config

import "errors"

var (
	ErrInvalidRedisDB    = errors.New("REDIS_DB must be a valid integer")
	ErrInvalidTimezone   = errors.New("DEFAULT_TIMEZONE must be a valid IANA zone")
	ErrInvalidAlertDelay = errors.New("DEFAULT_ALERT_DELAY_MINUTES must be a non-negative integer")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidRetention  = errors.New("SENT_NOTIFICATION_RETENTION_DAYS must be a positive integer")
	ErrInvalidInProcess  = errors.New("SWEEP_IN_PROCESS must be a boolean")
)
