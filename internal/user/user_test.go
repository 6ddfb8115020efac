package user_test

import (
	"strings"
	"testing"

	"automarket/internal/user"
)

func TestParseRole_ValidValues(t *testing.T) {
	for _, s := range []string{"buyer", "seller", "manager", "admin"} {
		got, err := user.ParseRole(s)
		if err != nil {
			t.Errorf("ParseRole(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseRole(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseRole_Invalid(t *testing.T) {
	for _, s := range []string{"", "Seller", "moderator", " buyer"} {
		if _, err := user.ParseRole(s); err == nil {
			t.Errorf("ParseRole(%q) expected error, got nil", s)
		}
	}
}

func TestParseTier(t *testing.T) {
	if _, err := user.ParseTier("premium"); err != nil {
		t.Errorf("ParseTier(premium) unexpected error: %v", err)
	}
	if _, err := user.ParseTier("gold"); err == nil {
		t.Error("ParseTier(gold) expected error, got nil")
	}
}

func TestUserPredicates(t *testing.T) {
	u := &user.User{Role: user.RoleSeller, Tier: user.TierPremium}
	if !u.IsSeller() || u.IsManager() || !u.IsPremium() {
		t.Errorf("premium seller predicates wrong: seller=%v manager=%v premium=%v",
			u.IsSeller(), u.IsManager(), u.IsPremium())
	}
}

// ── Account ────────────────────────────────────────────────────────────────

func TestAccountNormalize_Defaults(t *testing.T) {
	a, err := user.Account{Username: "  olena ", Email: " Olena@Example.COM "}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	if a.Username != "olena" || a.Email != "olena@example.com" {
		t.Errorf("Normalize() = %q/%q, want trimmed username and lower-cased email", a.Username, a.Email)
	}
	if a.Role != user.RoleBuyer || a.Tier != user.TierBasic {
		t.Errorf("defaults = %s/%s, want buyer/basic", a.Role, a.Tier)
	}
}

func TestAccountNormalize_Rejects(t *testing.T) {
	long := strings.Repeat("x", 56)
	cases := []struct {
		name    string
		account user.Account
		want    string
	}{
		{"missing username", user.Account{Email: "a@b.co"}, "username is required"},
		{"long username", user.Account{Username: long, Email: "a@b.co"}, "username must be at most 55 characters"},
		{"bad email", user.Account{Username: "a", Email: "not-an-email"}, "email must be a valid email address"},
		{"unknown role", user.Account{Username: "a", Email: "a@b.co", Role: "moderator"}, `unknown role "moderator"`},
		{"unknown tier", user.Account{Username: "a", Email: "a@b.co", Tier: "gold"}, `unknown account tier "gold"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.account.Normalize()
			if err == nil || err.Error() != c.want {
				t.Errorf("Normalize() error = %v, want %q", err, c.want)
			}
		})
	}
}
