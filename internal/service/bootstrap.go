package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/repository"
	"github.com/iliyamo/account-service/internal/utils"
)

// EnsureAdmin makes sure email belongs to a verified, active ADMIN. An
// existing user is promoted; otherwise one is created with password.
// It reports whether a new user was created.
func EnsureAdmin(ctx context.Context, users UserStore, email, password string, bcryptCost int) (bool, error) {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return false, errors.New("admin email is required")
	}
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := users.Promote(ctx, u.ID); err != nil {
			return false, fmt.Errorf("promote %s: %w", email, err)
		}
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, fmt.Errorf("load %s: %w", email, err)
	}

	if err := utils.CheckPasswordPolicy(password); err != nil {
		return false, err
	}
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return false, err
	}
	name := "Administrator"
	if _, err := users.Create(ctx, repository.NewUser{
		Email:        email,
		Name:         &name,
		PasswordHash: &hash,
		IsVerified:   true,
		Role:         model.RoleAdmin,
		IsActive:     true,
	}); err != nil {
		return false, fmt.Errorf("create admin: %w", mapConflict(err))
	}
	return true, nil
}
