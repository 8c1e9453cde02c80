package repositories

import "context"

// UserRepository handles database operations for course owners
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure returns the id of the user with the given email, creating it if needed.
func (r *UserRepository) Ensure(ctx context.Context, email string) (int64, error) {
	query := `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRow(ctx, query, email).Scan(&id); err != nil {
		return 0, wrapErr(err, "error ensuring user")
	}
	return id, nil
}
