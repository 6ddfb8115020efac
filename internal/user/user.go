// Package user holds the account model the listing pipeline depends on:
// roles, seller tiers, the manager blacklist and the directory over them.
package user

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Tier gates how many listings a seller may hold.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// BasicListingLimit is the number of listings a basic-tier seller may own.
const BasicListingLimit = 1

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicate          = errors.New("username or email already taken")
	ErrAlreadyBlacklisted = errors.New("user is already blacklisted")
	ErrNotBlacklisted     = errors.New("user is not blacklisted")
)

// User is the subset of an account the core reads.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseRole converts a raw string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleBuyer, RoleSeller, RoleManager, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ParseTier converts a raw string to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	switch t {
	case TierBasic, TierPremium:
		return t, nil
	}
	return "", fmt.Errorf("unknown account tier %q", s)
}

func (u *User) IsSeller() bool  { return u.Role == RoleSeller }
func (u *User) IsManager() bool { return u.Role == RoleManager }
func (u *User) IsPremium() bool { return u.Tier == TierPremium }

// ─── Account creation ────────────────────────────────────────────────────────

// Account is the input of Directory.CreateUser. Empty Role and Tier default
// to buyer and basic.
type Account struct {
	Username string `json:"username" validate:"required,max=55"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Role     Role   `json:"role"`
	Tier     Tier   `json:"tier"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// Normalize trims the fields, lower-cases the email, fills the defaults and
// validates the result.
func (a Account) Normalize() (Account, error) {
	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Role == "" {
		a.Role = RoleBuyer
	}
	if a.Tier == "" {
		a.Tier = TierBasic
	}

	if err := validate.Struct(a); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			return a, describe(fields[0])
		}
		return a, err
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return a, err
	}
	if _, err := ParseTier(string(a.Tier)); err != nil {
		return a, err
	}
	return a, nil
}

func describe(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "email":
		return fmt.Errorf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Errorf("%s is invalid", fe.Field())
}

// ─── Blacklist ───────────────────────────────────────────────────────────────

// BlacklistEntry records a manager blocking an account from selling.
type BlacklistEntry struct {
	UserID    uuid.UUID `json:"user_id"`
	AddedBy   uuid.UUID `json:"added_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
