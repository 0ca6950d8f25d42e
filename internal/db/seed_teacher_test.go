package db

import (
	"context"
	"testing"

	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
)

func TestEnsureSeedTeacher(t *testing.T) {
	ctx := context.Background()
	creds := memory.NewCredentialsRepo()
	users := memory.NewUsersRepo()

	cfg := config.Config{
		SeedTeacherEmail:    "seed@example.com",
		SeedTeacherPassword: "password123",
		SeedTeacherName:     "Seed Teacher",
	}

	for i := 0; i < 2; i++ {
		if err := EnsureSeedTeacher(ctx, creds, users, cfg); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	all, _ := users.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected exactly one seeded profile, got %d", len(all))
	}
	if _, ok := all[0].(*user.Teacher); !ok {
		t.Fatalf("seeded profile is not a teacher: %T", all[0])
	}
}

func TestEnsureSeedTeacher_Disabled(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUsersRepo()

	if err := EnsureSeedTeacher(ctx, memory.NewCredentialsRepo(), users, config.Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all, _ := users.List(ctx)
	if len(all) != 0 {
		t.Fatalf("expected no profiles, got %d", len(all))
	}
}
