package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

func setupTestRedis(t *testing.T, retentionDays int) (*miniredis.Miniredis, *SentRepo) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewSentRepo(client, retentionDays)
}

func TestSentRepo_InsertOncePerPlanAndDay(t *testing.T) {
	_, repo := setupTestRedis(t, 0)
	ctx := context.Background()
	day := schedule.Date{Year: 2025, Month: time.March, Day: 1}

	n, err := repo.Count(ctx, "plan-1", day)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	sent := notifications.SentNotification{
		ID:         "sn-1",
		PlanID:     "plan-1",
		PetID:      "pet-1",
		LogDate:    day,
		Recipients: []string{"owner-1", "user-2"},
		SentAt:     time.Now(),
	}
	require.NoError(t, repo.Insert(ctx, sent))

	n, err = repo.Count(ctx, "plan-1", day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = repo.Insert(ctx, sent)
	assert.ErrorIs(t, err, notifications.ErrAlreadySent)

	// otro día y otro plan son independientes
	n, _ = repo.Count(ctx, "plan-1", day.AddDays(1))
	assert.Equal(t, 0, n)
	n, _ = repo.Count(ctx, "plan-2", day)
	assert.Equal(t, 0, n)
}

func TestSentRepo_ExpiresAfterRetention(t *testing.T) {
	mr, repo := setupTestRedis(t, 3)
	ctx := context.Background()
	day := schedule.Date{Year: 2025, Month: time.March, Day: 1}

	require.NoError(t, repo.Insert(ctx, notifications.SentNotification{PlanID: "plan-1", LogDate: day, SentAt: time.Now()}))
	assert.Equal(t, 72*time.Hour, mr.TTL(sentKey("plan-1", day)))

	mr.FastForward(73 * time.Hour)
	n, err := repo.Count(ctx, "plan-1", day)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSentRepo_MinimumTTL(t *testing.T) {
	mr, repo := setupTestRedis(t, 0)
	day := schedule.Date{Year: 2025, Month: time.March, Day: 1}

	require.NoError(t, repo.Insert(context.Background(), notifications.SentNotification{PlanID: "plan-1", LogDate: day}))
	assert.Equal(t, minSentTTL, mr.TTL(sentKey("plan-1", day)))
}
