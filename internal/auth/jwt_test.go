package auth

import (
	"errors"
	"testing"
	"time"
)

func TestManager_AccessTokenRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken(Subject{UserID: "u1", Email: "u1@example.com", Role: "Student"})
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "Student" || claims.TokenType != TokenAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.VerifyRefreshToken(raw); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestManager_RefreshTokenRow(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)

	raw, row, err := m.GenerateRefreshToken(Subject{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}

	claims, err := m.VerifyRefreshToken(raw)
	if err != nil {
		t.Fatalf("VerifyRefreshToken error: %v", err)
	}
	if claims.JTI != row.ID || row.UserID != "u1" {
		t.Fatalf("row does not match claims: %+v vs %+v", row, claims)
	}
	if !m.MatchesHash(raw, row.TokenHash) {
		t.Fatalf("stored hash does not match raw token")
	}
	if !row.Usable(time.Now()) || row.Usable(row.ExpiresAt.Add(time.Second)) {
		t.Fatalf("unexpected usability window")
	}
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	a := NewManager("secret-a", time.Minute, time.Hour)
	b := NewManager("secret-b", time.Minute, time.Hour)

	raw, err := a.GenerateAccessToken(Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	if _, err := b.VerifyAccessToken(raw); err == nil {
		t.Fatalf("token signed with another secret was accepted")
	}
}

func TestManager_CheckPresented(t *testing.T) {
	m := NewManager("test-secret", time.Minute, time.Hour)
	now := time.Now().UTC()

	raw, row, err := m.GenerateRefreshToken(Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}

	if err := m.CheckPresented(row, raw, now); err != nil {
		t.Fatalf("expected fresh token to pass, got %v", err)
	}
	if err := m.CheckPresented(row, raw+"x", now); !errors.Is(err, ErrRefreshTokenMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := m.CheckPresented(row, raw, row.ExpiresAt); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	revoked := row
	revoked.RevokedAt = &now
	if err := m.CheckPresented(revoked, raw, now); !errors.Is(err, ErrRefreshTokenRevoked) {
		t.Fatalf("expected revoked, got %v", err)
	}
}
