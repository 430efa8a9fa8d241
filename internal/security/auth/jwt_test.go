package auth

import (
	"testing"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
)

func TestGenerateAndResolve(t *testing.T) {
	tm := NewTokenManager("secret", "rentledger", time.Hour)

	token, exp, err := tm.GenerateToken("u-1", domain.RoleOwner)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry should be in the future")
	}

	p, err := tm.Resolve(token)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	owner, ok := p.(domain.Owner)
	if !ok || owner.UserID != "u-1" {
		t.Fatalf("expected owner u-1, got %#v", p)
	}
}

func TestResolveRejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("one", "rentledger", time.Hour)
	verifier := NewTokenManager("two", "rentledger", time.Hour)

	token, _, err := issuer.GenerateToken("u-1", domain.RoleTenant)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.Resolve(token); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestResolveRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", "rentledger", time.Hour)
	tm.ttl = -time.Minute

	token, _, err := tm.GenerateToken("u-1", domain.RoleTenant)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tm.Resolve(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestPrincipalFromClaimsUnknownRole(t *testing.T) {
	if _, err := PrincipalFromClaims(&Claims{UserID: "u-1", Role: "landlord"}); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("expected abc, got %q %v", tok, err)
	}
	for _, h := range []string{"", "abc", "Basic abc", "Bearer"} {
		if _, err := ExtractToken(h); err == nil {
			t.Errorf("expected error for %q", h)
		}
	}
}
