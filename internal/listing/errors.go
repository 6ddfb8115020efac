package listing

import (
	"errors"

	"automarket/internal/catalog"
	"automarket/internal/user"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("not allowed to act on this listing")
	ErrTierLimitExceeded       = errors.New("basic accounts may hold only one listing")
	ErrProfaneContent          = errors.New("the description contains prohibited words")
	ErrModerationLimitExceeded = errors.New("maximum edit attempts exceeded, the listing has been deactivated")
	ErrBlacklisted             = errors.New("account is blacklisted")

	// Catalog failures surface unchanged.
	ErrUnknownBrand    = catalog.ErrUnknownBrand
	ErrUnknownModel    = catalog.ErrUnknownModel
	ErrInvalidBodyType = catalog.ErrInvalidBodyType
	ErrDuplicateBrand  = catalog.ErrDuplicateBrand
	ErrDuplicateModel  = catalog.ErrDuplicateModel

	// So do account conflicts.
	ErrDuplicateUser      = user.ErrDuplicate
	ErrAlreadyBlacklisted = user.ErrAlreadyBlacklisted
	ErrNotBlacklisted     = user.ErrNotBlacklisted
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// RejectionError reports a moderation outcome that was committed: the listing
// carries the state that is now stored.
type RejectionError struct {
	Err     error
	Listing *Listing
}

func (e *RejectionError) Error() string { return e.Err.Error() }

func (e *RejectionError) Unwrap() error { return e.Err }

// Code returns a stable machine-readable name for err, or "" for errors that
// are not user-facing.
func Code(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "validation_failed"
	case errors.Is(err, ErrUnknownBrand):
		return "unknown_brand"
	case errors.Is(err, ErrUnknownModel):
		return "unknown_model"
	case errors.Is(err, ErrInvalidBodyType):
		return "invalid_body_type"
	case errors.Is(err, ErrTierLimitExceeded):
		return "tier_limit_exceeded"
	case errors.Is(err, ErrProfaneContent):
		return "profane_content"
	case errors.Is(err, ErrModerationLimitExceeded):
		return "moderation_limit_exceeded"
	case errors.Is(err, ErrDuplicateBrand):
		return "duplicate_brand"
	case errors.Is(err, ErrDuplicateModel):
		return "duplicate_model"
	case errors.Is(err, ErrDuplicateUser):
		return "duplicate_user"
	case errors.Is(err, ErrAlreadyBlacklisted):
		return "already_blacklisted"
	case errors.Is(err, ErrNotBlacklisted):
		return "not_blacklisted"
	case errors.Is(err, ErrBlacklisted):
		return "blacklisted"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return ""
}
