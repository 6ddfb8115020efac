package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"automarket/internal/catalog"
	"automarket/internal/user"
)

// ─── Catalog maintenance ─────────────────────────────────────────────────────

// AddBrand adds a brand to the catalog. Managers only.
func (s *Service) AddBrand(ctx context.Context, name string, managerID uuid.UUID) (*catalog.Brand, error) {
	name, err := catalog.NormalizeName("brand", name)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if _, err := s.requireRole(ctx, managerID, user.RoleManager); err != nil {
		return nil, err
	}
	return s.store.Catalog().AddBrand(ctx, name)
}

// AddModel adds a model under brandID. Managers only.
func (s *Service) AddModel(ctx context.Context, brandID int64, name string, managerID uuid.UUID) (*catalog.Model, error) {
	name, err := catalog.NormalizeName("model", name)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if _, err := s.requireRole(ctx, managerID, user.RoleManager); err != nil {
		return nil, err
	}
	return s.store.Catalog().AddModel(ctx, brandID, name)
}

// ─── Accounts ────────────────────────────────────────────────────────────────

// UpgradeAccount moves userID to the premium tier. Users upgrade themselves;
// managers may upgrade anyone.
func (s *Service) UpgradeAccount(ctx context.Context, userID, actorID uuid.UUID) (*user.User, error) {
	if actorID != userID {
		if _, err := s.requireRole(ctx, actorID, user.RoleManager); err != nil {
			return nil, err
		}
	}

	u, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsPremium() {
		return nil, &ValidationError{Msg: "account is already premium"}
	}
	u, err = s.store.Users().SetTier(ctx, userID, user.TierPremium)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return u, err
}

// CreateManager registers a manager account. Admins only.
func (s *Service) CreateManager(ctx context.Context, a user.Account, adminID uuid.UUID) (*user.User, error) {
	a.Role = user.RoleManager
	a, err := a.Normalize()
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if _, err := s.requireRole(ctx, adminID, user.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.Users().CreateUser(ctx, a)
}

// AddToBlacklist stops userID from creating or editing listings. Managers
// only; staff accounts cannot be blacklisted.
func (s *Service) AddToBlacklist(ctx context.Context, userID uuid.UUID, reason string, managerID uuid.UUID) (*user.BlacklistEntry, error) {
	if _, err := s.requireRole(ctx, managerID, user.RoleManager); err != nil {
		return nil, err
	}
	target, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.IsManager() || target.Role == user.RoleAdmin {
		return nil, &ValidationError{Msg: "staff accounts cannot be blacklisted"}
	}
	return s.store.Users().AddToBlacklist(ctx, user.BlacklistEntry{
		UserID:  userID,
		AddedBy: managerID,
		Reason:  strings.TrimSpace(reason),
	})
}

// RemoveFromBlacklist lifts a blacklist entry. Managers only.
func (s *Service) RemoveFromBlacklist(ctx context.Context, userID, managerID uuid.UUID) error {
	if _, err := s.requireRole(ctx, managerID, user.RoleManager); err != nil {
		return err
	}
	return s.store.Users().RemoveFromBlacklist(ctx, userID)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// requireRole loads actorID and checks that it holds role.
func (s *Service) requireRole(ctx context.Context, actorID uuid.UUID, role user.Role) (*user.User, error) {
	actor, err := s.store.Users().GetUser(ctx, actorID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("user %s unknown: %w", actorID, ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("getUser: %w", err)
	}
	if actor.Role != role {
		return nil, fmt.Errorf("user %s is a %s, %s required: %w", actor.ID, actor.Role, role, ErrForbidden)
	}
	return actor, nil
}

func (s *Service) lookupUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.store.Users().GetUser(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getUser: %w", err)
	}
	return u, nil
}
