package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_InMemoryWithSeedTeacher(t *testing.T) {
	cfg := config.Config{
		Store:               "memory",
		Broker:              "local",
		SeedTeacherEmail:    "demo@example.com",
		SeedTeacherPassword: "password123",
		SeedTeacherName:     "Demo Teacher",
	}

	p, err := Open(context.Background(), cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer p.Close()

	if p.Provider != nil {
		t.Fatalf("no provider expected without casdoor config")
	}
	if len(p.Ready) != 0 {
		t.Fatalf("in-memory platform has nothing to ping, got %v", p.Ready)
	}

	svc := p.Service(testLogger(), nil)
	teachers, err := svc.SearchTeachers(context.Background(), "", "")
	if err != nil {
		t.Fatalf("SearchTeachers error: %v", err)
	}
	if len(teachers) != 1 || teachers[0].Name != "Demo Teacher" {
		t.Fatalf("expected the seeded teacher, got %+v", teachers)
	}

	res, err := svc.SignInWithPassword(context.Background(), "demo@example.com", "password123")
	if err != nil {
		t.Fatalf("seed credential should sign in: %v", err)
	}
	if res.Profile.Account().Role != user.RoleTeacher {
		t.Fatalf("seeded account should be a teacher")
	}
}

func TestOpen_UnknownBackends(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: "mongo", Broker: "local"}, testLogger(), nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend for store, got %v", err)
	}

	_, err = Open(context.Background(), config.Config{Store: "memory", Broker: "carrier-pigeon"}, testLogger(), nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend for broker, got %v", err)
	}
}

func TestOpen_EmbeddedRedisBroker(t *testing.T) {
	p, err := Open(context.Background(), config.Config{Store: "memory", Broker: "miniredis"}, testLogger(), nil)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer p.Close()

	if p.Broker == nil {
		t.Fatalf("expected a broker")
	}
}
