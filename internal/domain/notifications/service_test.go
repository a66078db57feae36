package notifications_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/adapters/storage/memory"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/accessgrants"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/doses"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/notifications"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/domain/pets"
	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/push"
)

type fakeRecipients struct {
	users []string
	kinds []accessgrants.AlertKind
}

func (f *fakeRecipients) AlertRecipients(_ context.Context, _, _ string, kind accessgrants.AlertKind) ([]string, error) {
	f.kinds = append(f.kinds, kind)
	return f.users, nil
}

type fakePets struct{}

func (fakePets) GetByID(_ context.Context, id string) (pets.Pet, error) {
	return pets.Pet{ID: id, OwnerUserID: "owner-1", Name: "Luna", Timezone: "UTC"}, nil
}

func (fakePets) DefaultLocation() *time.Location { return time.UTC }

func register(t *testing.T, svc *notifications.Service, userID string) notifications.PushEndpoint {
	t.Helper()
	e, err := svc.RegisterEndpoint(context.Background(), userID, notifications.EndpointInput{
		Endpoint: "https://push.example.com/" + userID,
		P256dh:   "key",
		Auth:     "secret",
	})
	require.NoError(t, err)
	return e
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	svc := notifications.NewService(memory.NewPushEndpointRepo(), nil, &fakeRecipients{}, fakePets{}, nil, nil)

	cases := []struct {
		name string
		user string
		in   notifications.EndpointInput
	}{
		{"no user", "", notifications.EndpointInput{Endpoint: "https://x.no/a", P256dh: "k", Auth: "a"}},
		{"http url", "u1", notifications.EndpointInput{Endpoint: "http://x.no/a", P256dh: "k", Auth: "a"}},
		{"no keys", "u1", notifications.EndpointInput{Endpoint: "https://x.no/a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterEndpoint(context.Background(), tc.user, tc.in)
			assert.ErrorIs(t, err, notifications.ErrInvalidInput)
		})
	}
}

func TestRegisterEndpoint_SameURLKeepsID(t *testing.T) {
	svc := notifications.NewService(memory.NewPushEndpointRepo(), nil, &fakeRecipients{}, fakePets{}, nil, nil)

	first := register(t, svc, "u1")
	second := register(t, svc, "u1")
	assert.Equal(t, first.ID, second.ID)

	list, err := svc.ListEndpoints(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteEndpoint_OtherUserIsNotFound(t *testing.T) {
	svc := notifications.NewService(memory.NewPushEndpointRepo(), nil, &fakeRecipients{}, fakePets{}, nil, nil)
	e := register(t, svc, "u1")

	err := svc.DeleteEndpoint(context.Background(), "u2", e.ID)
	assert.ErrorIs(t, err, notifications.ErrNotFound)

	require.NoError(t, svc.DeleteEndpoint(context.Background(), "u1", e.ID))
}

func TestDeliver_PrunesGoneAndContinues(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := push.NewMockDispatcher(ctrl)
	repo := memory.NewPushEndpointRepo()
	svc := notifications.NewService(repo, dispatcher, &fakeRecipients{}, fakePets{}, nil, nil)

	gone := register(t, svc, "u1")
	flaky := register(t, svc, "u2")
	ok := register(t, svc, "u3")

	dispatcher.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e push.Endpoint, _ push.Message) error {
			switch e.ID {
			case gone.ID:
				return fmt.Errorf("relay: %w", push.ErrEndpointGone)
			case flaky.ID:
				return errors.New("timeout")
			}
			return nil
		}).Times(3)

	rep, err := svc.Deliver(context.Background(), []string{"u1", "u2", "u3"}, push.Message{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Endpoints)
	assert.Equal(t, 1, rep.Delivered)
	assert.Equal(t, 1, rep.Pruned)
	assert.Equal(t, 1, rep.Failed)

	_, found, err := repo.Get(context.Background(), gone.ID)
	require.NoError(t, err)
	assert.False(t, found, "gone endpoint must be deleted")
	_, found, _ = repo.Get(context.Background(), ok.ID)
	assert.True(t, found)
}

func TestDeliver_NoUsers(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := notifications.NewService(memory.NewPushEndpointRepo(), push.NewMockDispatcher(ctrl), &fakeRecipients{}, fakePets{}, nil, nil)

	rep, err := svc.Deliver(context.Background(), nil, push.Message{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Endpoints)
}

func TestNotifyDoseGiven_ExcludesActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := push.NewMockDispatcher(ctrl)
	recipients := &fakeRecipients{users: []string{"owner-1", "sitter-1"}}
	svc := notifications.NewService(memory.NewPushEndpointRepo(), dispatcher, recipients, fakePets{}, nil, nil)

	register(t, svc, "owner-1")
	register(t, svc, "sitter-1")

	var got push.Message
	dispatcher.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e push.Endpoint, m push.Message) error {
			assert.Equal(t, "owner-1", e.UserID)
			got = m
			return nil
		}).Times(1)

	err := svc.NotifyDoseGiven(context.Background(), doses.GivenNotice{
		PetID:          "pet-1",
		MedicationName: "Apoquel",
		ActorUserID:    "sitter-1",
		TakenAt:        time.Date(2025, 3, 1, 8, 5, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []accessgrants.AlertKind{accessgrants.AlertDoseGiven}, recipients.kinds)
	assert.Equal(t, "Luna: Apoquel gitt", got.Title)
	assert.Equal(t, "Dosen ble registrert kl. 08:05.", got.Body)
}

func TestNotifyDoseGiven_OnlyActorSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := notifications.NewService(memory.NewPushEndpointRepo(), push.NewMockDispatcher(ctrl),
		&fakeRecipients{users: []string{"owner-1"}}, fakePets{}, nil, nil)

	err := svc.NotifyDoseGiven(context.Background(), doses.GivenNotice{PetID: "pet-1", ActorUserID: "owner-1"})
	require.NoError(t, err)
}
