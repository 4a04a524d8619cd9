package utils

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestGenerateQRCodeID(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^DJ-NOVA-2026-[A-Z0-9]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := GenerateQRCodeID("  dj  nova ", now)
		if err != nil {
			t.Fatalf("GenerateQRCodeID: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match %s", id, pattern)
		}
		seen[id] = true
	}
	if len(seen) < 45 {
		t.Errorf("expected mostly distinct ids, got %d of 50", len(seen))
	}
}

func TestGenerateQRCodeIDEmptyStageName(t *testing.T) {
	id, err := GenerateQRCodeID("   ", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GenerateQRCodeID: %v", err)
	}
	if !strings.HasPrefix(id, "DJ-2025-") {
		t.Errorf("id = %q, want DJ-2025- prefix", id)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	id, role, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if id != 42 || role != RoleDJ {
		t.Errorf("got (%d, %q), want (42, %q)", id, role, RoleDJ)
	}
	if !tok.Exp.After(time.Now()) {
		t.Errorf("expiry %v is not in the future", tok.Exp)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, err := NewAccessToken("secret", 7, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	expired, err := NewAccessToken("secret", 7, -5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	tests := []struct {
		name, secret, raw string
	}{
		{"wrong secret", "other", good.Token},
		{"expired", "secret", expired.Token},
		{"garbage", "secret", "not.a.jwt"},
		{"empty", "secret", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseAccessToken(tt.secret, tt.raw); err != ErrInvalidToken {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(30)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Errorf("raw length = %d, want 96", len(rt.Raw))
	}
	h := HashRefreshRaw(rt.Raw)
	if len(h) != 64 || h != HashRefreshRaw(rt.Raw) {
		t.Errorf("hash %q is not a stable sha256 hex digest", h)
	}
	if h == HashRefreshRaw(rt.Raw+"x") {
		t.Error("different inputs produced the same hash")
	}
}

func TestPasswordHash(t *testing.T) {
	h, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "correct horse") {
		t.Error("VerifyPassword rejected the right password")
	}
	if VerifyPassword(h, "wrong") {
		t.Error("VerifyPassword accepted a wrong password")
	}
	if NeedsRehash(h, 4) {
		t.Error("NeedsRehash at the same cost")
	}
	if !NeedsRehash(h, 5) {
		t.Error("NeedsRehash missed a cost change")
	}
	if _, err := HashPassword(strings.Repeat("p", MaxPasswordBytes+1), 4); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("long password err = %v", err)
	}
}
