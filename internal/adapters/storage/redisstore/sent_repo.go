package redisstore

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

const (
	sentKeyPrefix = "meds:sent:"
	minSentTTL    = 48 * time.Hour
)

// SentRepo guarda una clave por (plan, día) con SETNX. La retención la hace el TTL,
// así que DeleteBefore no tiene nada que borrar.
type SentRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSentRepo: retentionDays <= 0 usa el mínimo de 48h (el día local puede cruzar dos días UTC).
func NewSentRepo(client *redis.Client, retentionDays int) *SentRepo {
	ttl := time.Duration(retentionDays) * 24 * time.Hour
	if ttl < minSentTTL {
		ttl = minSentTTL
	}
	return &SentRepo{client: client, ttl: ttl}
}

func sentKey(planID string, day schedule.Date) string {
	return sentKeyPrefix + strings.TrimSpace(planID) + ":" + day.String()
}

func (r *SentRepo) Count(ctx context.Context, planID string, day schedule.Date) (int, error) {
	n, err := r.client.Exists(ctx, sentKey(planID, day)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *SentRepo) Insert(ctx context.Context, n notifications.SentNotification) error {
	val := n.SentAt.UTC().Format(time.RFC3339Nano) + "|" + strings.Join(n.Recipients, ",")
	ok, err := r.client.SetNX(ctx, sentKey(n.PlanID, n.LogDate), val, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return notifications.ErrAlreadySent
	}
	return nil
}

func (r *SentRepo) DeleteBefore(context.Context, schedule.Date) (int, error) {
	return 0, nil
}
