package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solemate/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile with this email already exists")
)

const profileColumns = `id, email, password_hash, full_name, is_admin, created_at, updated_at`

// ProfileRepository defines the interface for account data access
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	FindByEmail(ctx context.Context, email string) (*domain.Profile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new instance of ProfileRepository
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create inserts a new profile
func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.ID,
		profile.Email,
		profile.PasswordHash,
		profile.FullName,
		profile.IsAdmin,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "profiles_email_key" {
			return ErrProfileAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// FindByEmail retrieves a profile by email
func (r *profileRepository) FindByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID retrieves a profile by ID
func (r *profileRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return r.findOne(ctx, "id", id)
}

func (r *profileRepository) findOne(ctx context.Context, column string, value any) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + column + ` = $1`

	profile := &domain.Profile{}
	var fullName sql.NullString

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&profile.ID,
		&profile.Email,
		&profile.PasswordHash,
		&fullName,
		&profile.IsAdmin,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile by %s: %w", column, err)
	}

	profile.FullName = fullName.String
	return profile, nil
}
