package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"automarket/internal/db"
)

// Reader looks users up by id or role.
type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsersWithRole(ctx context.Context, role Role) ([]User, error)
}

// Directory is the users table plus the blacklist.
type Directory interface {
	Reader
	// CreateUser returns ErrDuplicate when the username or email is taken.
	CreateUser(ctx context.Context, a Account) (*User, error)
	SetTier(ctx context.Context, id uuid.UUID, tier Tier) (*User, error)
	// AddToBlacklist returns ErrAlreadyBlacklisted for a second entry.
	AddToBlacklist(ctx context.Context, e BlacklistEntry) (*BlacklistEntry, error)
	// RemoveFromBlacklist returns ErrNotBlacklisted when there is no entry.
	RemoveFromBlacklist(ctx context.Context, id uuid.UUID) error
	IsBlacklisted(ctx context.Context, id uuid.UUID) (bool, error)
}

type postgresDirectory struct {
	q db.Querier
}

// NewPostgresDirectory returns a Directory backed by the users and blacklist
// tables.
func NewPostgresDirectory(q db.Querier) Directory {
	return &postgresDirectory{q: q}
}

const userColumns = `id, username, email, role, tier, created_at, updated_at`

// scanUser rejects role and tier values the application does not know.
func scanUser(row pgx.Row) (*User, error) {
	var (
		u          User
		role, tier string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &tier, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if u.Role, err = ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if u.Tier, err = ParseTier(tier); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return &u, nil
}

func (d *postgresDirectory) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(d.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getUser: %w", err)
	}
	return u, nil
}

func (d *postgresDirectory) ListUsersWithRole(ctx context.Context, role Role) ([]User, error) {
	rows, err := d.q.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at`, string(role))
	if err != nil {
		return nil, fmt.Errorf("listUsersWithRole query: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("listUsersWithRole scan: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (d *postgresDirectory) CreateUser(ctx context.Context, a Account) (*User, error) {
	u, err := scanUser(d.q.QueryRow(ctx,
		`INSERT INTO users (id, username, email, role, tier)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.New(), a.Username, a.Email, string(a.Role), string(a.Tier)))
	if db.IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("createUser: %w", err)
	}
	return u, nil
}

func (d *postgresDirectory) SetTier(ctx context.Context, id uuid.UUID, tier Tier) (*User, error) {
	u, err := scanUser(d.q.QueryRow(ctx,
		`UPDATE users SET tier = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, string(tier)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("setTier: %w", err)
	}
	return u, nil
}

func (d *postgresDirectory) AddToBlacklist(ctx context.Context, e BlacklistEntry) (*BlacklistEntry, error) {
	err := d.q.QueryRow(ctx,
		`INSERT INTO blacklist (user_id, added_by, reason)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		e.UserID, e.AddedBy, e.Reason,
	).Scan(&e.CreatedAt)
	if db.IsUniqueViolation(err) {
		return nil, ErrAlreadyBlacklisted
	}
	if err != nil {
		return nil, fmt.Errorf("addToBlacklist: %w", err)
	}
	return &e, nil
}

func (d *postgresDirectory) RemoveFromBlacklist(ctx context.Context, id uuid.UUID) error {
	tag, err := d.q.Exec(ctx, `DELETE FROM blacklist WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("removeFromBlacklist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotBlacklisted
	}
	return nil
}

func (d *postgresDirectory) IsBlacklisted(ctx context.Context, id uuid.UUID) (bool, error) {
	var listed bool
	err := d.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blacklist WHERE user_id = $1)`, id).Scan(&listed)
	if err != nil {
		return false, fmt.Errorf("isBlacklisted: %w", err)
	}
	return listed, nil
}
