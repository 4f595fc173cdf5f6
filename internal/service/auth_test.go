package service

import (
	"context"
	"testing"
	"time"

	"github.com/totegamma/memorial"
	"github.com/totegamma/memorial/internal/domain"
)

func newTestAuthService() *AuthService {
	return NewAuthService(domain.Config{
		FQDN:      "memorial.example.com",
		JWTSecret: "secret",
	})
}

func TestAuthServiceSessionRoundTrip(t *testing.T) {
	s := newTestAuthService()
	ctx := context.Background()

	token, err := s.Issue(ctx, memorial.User{ID: "alice", Email: "a@example.com", Name: "Alice", IsAdmin: true})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	result, err := s.AuthJwt(ctx, token)
	if err != nil {
		t.Fatalf("auth failed: %v", err)
	}
	if result.Requester.ID != "alice" || result.Requester.Name != "Alice" || !result.Requester.IsAdmin {
		t.Fatalf("unexpected requester %+v", result.Requester)
	}
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	s := newTestAuthService()
	ctx := context.Background()

	other := NewAuthService(domain.Config{FQDN: "elsewhere.example.com", JWTSecret: "secret"})
	token, err := other.Issue(ctx, memorial.User{ID: "alice"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := s.AuthJwt(ctx, token); err == nil {
		t.Fatalf("expected audience mismatch")
	}

	media, _, err := s.SignMedia(ctx, "memories/a.jpg", time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := s.AuthJwt(ctx, media); err == nil {
		t.Fatalf("media token must not authenticate")
	}
}

func TestAuthServiceMediaTokens(t *testing.T) {
	s := newTestAuthService()
	ctx := context.Background()

	token, expiresAt, err := s.SignMedia(ctx, "memories/a.jpg", time.Hour)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if d := time.Until(expiresAt); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	if err := s.VerifyMedia(ctx, token, "memories/a.jpg"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := s.VerifyMedia(ctx, token, "memories/b.jpg"); err == nil {
		t.Fatalf("expected key mismatch")
	}
	if err := s.VerifyMedia(ctx, "", "memories/a.jpg"); err == nil {
		t.Fatalf("expected missing token error")
	}
}
