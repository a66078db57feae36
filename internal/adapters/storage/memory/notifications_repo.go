package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/schedule"
)

type pushEndpointRepo struct {
	mu   sync.RWMutex
	byID map[string]notifications.PushEndpoint
}

func NewPushEndpointRepo() notifications.EndpointRepository {
	return &pushEndpointRepo{
		byID: make(map[string]notifications.PushEndpoint),
	}
}

func (r *pushEndpointRepo) Upsert(ctx context.Context, e notifications.PushEndpoint) (notifications.PushEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return notifications.PushEndpoint{}, errors.New("endpoint id required")
	}
	for id, cur := range r.byID {
		if cur.UserID == e.UserID && cur.Endpoint == e.Endpoint {
			// conserva identidad y fecha de alta, refresca claves
			e.ID = id
			e.CreatedAt = cur.CreatedAt
			break
		}
	}
	r.byID[e.ID] = e
	return e, nil
}

func (r *pushEndpointRepo) Get(ctx context.Context, id string) (notifications.PushEndpoint, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	return e, ok, nil
}

func (r *pushEndpointRepo) ListByUser(ctx context.Context, userID string) ([]notifications.PushEndpoint, error) {
	return r.ListByUsers(ctx, []string{userID})
}

func (r *pushEndpointRepo) ListByUsers(ctx context.Context, userIDs []string) ([]notifications.PushEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]struct{}, len(userIDs))
	for _, u := range userIDs {
		want[u] = struct{}{}
	}

	out := make([]notifications.PushEndpoint, 0)
	for _, e := range r.byID {
		if _, ok := want[e.UserID]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *pushEndpointRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
	return nil
}

// sentRepo aplica la unicidad (plan, día) en la aplicación.
type sentRepo struct {
	mu    sync.Mutex
	byKey map[string]notifications.SentNotification
}

func NewSentNotificationRepo() notifications.SentRepository {
	return &sentRepo{
		byKey: make(map[string]notifications.SentNotification),
	}
}

func sentKey(planID string, day schedule.Date) string {
	return planID + "|" + day.String()
}

func (r *sentRepo) Count(ctx context.Context, planID string, day schedule.Date) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[sentKey(planID, day)]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *sentRepo) Insert(ctx context.Context, n notifications.SentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sentKey(n.PlanID, n.LogDate)
	if _, exists := r.byKey[key]; exists {
		return notifications.ErrAlreadySent
	}
	n.Recipients = append([]string(nil), n.Recipients...)
	r.byKey[key] = n
	return nil
}

func (r *sentRepo) DeleteBefore(ctx context.Context, day schedule.Date) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, s := range r.byKey {
		if s.LogDate.Before(day) {
			delete(r.byKey, key)
			n++
		}
	}
	return n, nil
}
