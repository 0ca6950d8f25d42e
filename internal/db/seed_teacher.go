package db

import (
	"context"
	"errors"

	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/security"
)

type SeedCredentials interface {
	GetByEmail(ctx context.Context, email string) (user.Credential, error)
	Create(ctx context.Context, c user.Credential) (user.Credential, error)
}

type SeedProfiles interface {
	Create(ctx context.Context, p user.Profile) (user.Profile, bool, error)
}

// EnsureSeedTeacher provisions one teacher account so a fresh deployment has
// someone in the directory. It does nothing when no seed email is configured.
func EnsureSeedTeacher(ctx context.Context, creds SeedCredentials, profiles SeedProfiles, cfg config.Config) error {
	if cfg.SeedTeacherEmail == "" || cfg.SeedTeacherPassword == "" {
		return nil
	}

	// check if the credential exists

	existing, err := creds.GetByEmail(ctx, cfg.SeedTeacherEmail)

	if err == nil {
		// a previous run may have died between the two writes
		return ensureProfile(ctx, profiles, existing.Identity(), cfg.SeedTeacherName)
	}

	if !errors.Is(err, user.ErrCredentialNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.SeedTeacherPassword)

	if err != nil {
		return err
	}

	c, err := creds.Create(ctx, user.Credential{
		Email:        cfg.SeedTeacherEmail,
		PasswordHash: hash,
		Provider:     user.ProviderPassword,
	})

	if err != nil {
		return err
	}

	return ensureProfile(ctx, profiles, c.Identity(), cfg.SeedTeacherName)
}

func ensureProfile(ctx context.Context, profiles SeedProfiles, id user.Identity, name string) error {
	p, err := user.NewProfile(id, user.NewProfileRequest{Name: name, Role: user.RoleTeacher})
	if err != nil {
		return err
	}
	_, _, err = profiles.Create(ctx, p)
	return err
}
