package accessgrants

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trymsn1992-dev/hunde-medisin-sub000/internal/ports/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo  Repository
	prefs PreferenceRepository
	now   func() time.Time
}

func NewService(repo Repository, prefs PreferenceRepository) *Service {
	return &Service{
		repo:  repo,
		prefs: prefs,
		now:   time.Now,
	}
}

type InviteInput struct {
	PetID         string
	OwnerUserID   string
	GranteeUserID string
	Scopes        []Scope
}

func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	petID := strings.TrimSpace(in.PetID)
	ownerID := strings.TrimSpace(in.OwnerUserID)
	granteeID := strings.TrimSpace(in.GranteeUserID)

	if petID == "" || ownerID == "" || granteeID == "" {
		return Grant{}, ErrInvalidInput
	}
	if ownerID == granteeID {
		return Grant{}, ErrInvalidInput
	}

	// Sin scopes => ver perfil + ver medicación. Con scopes => validación estricta.
	var scopes []Scope
	var err error
	if len(in.Scopes) == 0 {
		scopes = []Scope{ScopePetRead, ScopeMedsRead}
	} else {
		scopes, err = normalizeScopesStrict(in.Scopes)
		if err != nil {
			return Grant{}, err
		}
		if len(scopes) == 0 {
			return Grant{}, ErrInvalidInput
		}
	}

	now := s.now()

	existing, allMatches, err := s.findLatestMatch(ctx, petID, ownerID, granteeID)
	if err == nil && existing.ID != "" && existing.Status != StatusRevoked {
		// Re-invitar actualiza scopes del grant vigente y revoca duplicados.
		s.revokeOtherMatches(ctx, existing.ID, allMatches, now)

		existing.Scopes = scopes
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, existing); err != nil {
			return Grant{}, err
		}
		return existing, nil
	}

	g := Grant{
		ID:            uuid.NewString(),
		PetID:         petID,
		OwnerUserID:   ownerID,
		GranteeUserID: granteeID,
		Scopes:        scopes,
		Status:        StatusInvited,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) Accept(ctx context.Context, grantID, granteeUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	granteeUserID = strings.TrimSpace(granteeUserID)

	if grantID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.getGrant(ctx, grantID)
	if err != nil {
		return Grant{}, err
	}

	if g.GranteeUserID != granteeUserID {
		return Grant{}, ErrForbidden
	}
	switch g.Status {
	case StatusRevoked:
		return Grant{}, ErrBadState
	case StatusActive:
		return g, nil
	case StatusInvited:
	default:
		return Grant{}, ErrBadState
	}

	now := s.now()
	g.Status = StatusActive
	g.UpdatedAt = now

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}

	// Un solo grant vigente por (pet, owner, grantee).
	if _, matches, err := s.findLatestMatch(ctx, g.PetID, g.OwnerUserID, g.GranteeUserID); err == nil {
		s.revokeOtherMatches(ctx, g.ID, matches, now)
	}
	return g, nil
}

func (s *Service) Revoke(ctx context.Context, grantID, ownerUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	ownerUserID = strings.TrimSpace(ownerUserID)

	if grantID == "" || ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.getGrant(ctx, grantID)
	if err != nil {
		return Grant{}, err
	}

	if g.OwnerUserID != ownerUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now

	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) ListByPet(ctx context.Context, petID string) ([]Grant, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPet(ctx, petID)
}

func (s *Service) GetActiveGrant(ctx context.Context, petID, granteeUserID string) (Grant, error) {
	petID = strings.TrimSpace(petID)
	granteeUserID = strings.TrimSpace(granteeUserID)

	if petID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetActiveGrant(ctx, petID, granteeUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return Grant{}, ErrNotFound
	}
	if err != nil {
		return Grant{}, fmt.Errorf("get active grant: %w", err)
	}
	return g, nil
}

func (s *Service) getGrant(ctx context.Context, id string) (Grant, error) {
	g, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Grant{}, ErrNotFound
	}
	if err != nil {
		return Grant{}, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

func (s *Service) ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByGrantee(ctx, granteeUserID)
}

// Allowed: owner bypass; delegado requiere grant activo con el scope.
func (s *Service) Allowed(ctx context.Context, petID, ownerUserID, userID string, scope Scope) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	if ownerUserID == userID {
		return true
	}
	g, err := s.GetActiveGrant(ctx, petID, userID)
	if err != nil {
		return false
	}
	return HasScope(g, scope)
}

// IsMember: owner o delegado con grant activo (cualquier scope).
func (s *Service) IsMember(ctx context.Context, petID, ownerUserID, userID string) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	if ownerUserID == userID {
		return true
	}
	_, err := s.GetActiveGrant(ctx, petID, userID)
	return err == nil
}

// Members devuelve owner + delegados activos, sin duplicados, owner primero.
func (s *Service) Members(ctx context.Context, petID, ownerUserID string) ([]string, error) {
	grants, err := s.repo.ListByPet(ctx, petID)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(grants)+1)
	seen := map[string]struct{}{}
	if ownerUserID != "" {
		out = append(out, ownerUserID)
		seen[ownerUserID] = struct{}{}
	}

	grantees := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Status != StatusActive {
			continue
		}
		if _, ok := seen[g.GranteeUserID]; ok {
			continue
		}
		seen[g.GranteeUserID] = struct{}{}
		grantees = append(grantees, g.GranteeUserID)
	}
	sort.Strings(grantees)

	return append(out, grantees...), nil
}

// AlertRecipients filtra los miembros de la mascota por su preferencia para kind.
func (s *Service) AlertRecipients(ctx context.Context, petID, ownerUserID string, kind AlertKind) ([]string, error) {
	members, err := s.Members(ctx, petID, ownerUserID)
	if err != nil {
		return nil, err
	}

	prefs, err := s.prefs.ListByPet(ctx, petID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]AlertPreference, len(prefs))
	for _, p := range prefs {
		byUser[p.UserID] = p
	}

	out := make([]string, 0, len(members))
	for _, uid := range members {
		if p, ok := byUser[uid]; ok && p.Wants(kind) {
			out = append(out, uid)
		}
	}
	return out, nil
}

// GetPreference devuelve la preferencia del miembro; sin registro => todo false.
func (s *Service) GetPreference(ctx context.Context, petID, userID string) (AlertPreference, error) {
	petID = strings.TrimSpace(petID)
	userID = strings.TrimSpace(userID)
	if petID == "" || userID == "" {
		return AlertPreference{}, ErrInvalidInput
	}

	p, found, err := s.prefs.Get(ctx, petID, userID)
	if err != nil {
		return AlertPreference{}, err
	}
	if !found {
		return AlertPreference{PetID: petID, UserID: userID}, nil
	}
	return p, nil
}

type PreferenceInput struct {
	MissedDoses bool
	DoseGiven   bool
}

func (s *Service) SetPreference(ctx context.Context, petID, userID string, in PreferenceInput) (AlertPreference, error) {
	petID = strings.TrimSpace(petID)
	userID = strings.TrimSpace(userID)
	if petID == "" || userID == "" {
		return AlertPreference{}, ErrInvalidInput
	}

	p := AlertPreference{
		PetID:       petID,
		UserID:      userID,
		MissedDoses: in.MissedDoses,
		DoseGiven:   in.DoseGiven,
		UpdatedAt:   s.now(),
	}
	if err := s.prefs.Upsert(ctx, p); err != nil {
		return AlertPreference{}, err
	}
	return p, nil
}

// HasScope valida si el grant incluye un scope.
func HasScope(g Grant, scope Scope) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func (s *Service) findLatestMatch(ctx context.Context, petID, ownerID, granteeID string) (Grant, []Grant, error) {
	items, err := s.repo.ListByPet(ctx, petID)
	if err != nil {
		return Grant{}, nil, err
	}

	matches := make([]Grant, 0)
	var winner Grant
	hasWinner := false

	for _, g := range items {
		if g.PetID != petID || g.OwnerUserID != ownerID || g.GranteeUserID != granteeID {
			continue
		}
		matches = append(matches, g)

		if !hasWinner || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			hasWinner = true
		}
	}

	if !hasWinner {
		return Grant{}, matches, ErrNotFound
	}
	return winner, matches, nil
}

// revokeOtherMatches es best-effort: un fallo deja un duplicado que GetActiveGrant desempata.
func (s *Service) revokeOtherMatches(ctx context.Context, winnerID string, matches []Grant, now time.Time) {
	for _, g := range matches {
		if g.ID == "" || g.ID == winnerID || g.Status == StatusRevoked {
			continue
		}
		g.Status = StatusRevoked
		g.UpdatedAt = now
		g.RevokedAt = &now
		_ = s.repo.Update(ctx, g)
	}
}

func normalizeScopesStrict(in []Scope) ([]Scope, error) {
	allowed := map[Scope]struct{}{
		ScopePetRead:        {},
		ScopePetEditProfile: {},
		ScopeMedsRead:       {},
		ScopeMedsLog:        {},
		ScopeMedsManage:     {},
	}

	seen := map[Scope]struct{}{}
	out := make([]Scope, 0, len(in))

	for _, raw := range in {
		s := Scope(strings.TrimSpace(string(raw)))
		if s == "" {
			continue
		}
		if _, ok := allowed[s]; !ok {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out, nil
}
