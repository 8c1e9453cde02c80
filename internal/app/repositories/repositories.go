package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/geclass/geclass/internal/db"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/dberrors"
)

// DBTX is satisfied by both the connection pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository          *UserRepository
	CourseRepository        *CourseRepository
	StudentRepository       *StudentRepository
	QuestionnaireRepository *QuestionnaireRepository
	LookupRepository        *LookupRepository
}

// NewRepositories initializes all repositories on the same handle
func NewRepositories(conn DBTX) *Repositories {
	return &Repositories{
		UserRepository:          NewUserRepository(conn),
		CourseRepository:        NewCourseRepository(conn),
		StudentRepository:       NewStudentRepository(conn),
		QuestionnaireRepository: NewQuestionnaireRepository(conn),
		LookupRepository:        NewLookupRepository(conn),
	}
}

// Store gives access to the repositories and runs units of work in a transaction.
type Store struct {
	*Repositories
	database *db.PostgresDB
}

// NewStore creates a store on top of the connection pool.
func NewStore(database *db.PostgresDB) *Store {
	return &Store{
		Repositories: NewRepositories(database.Pool),
		database:     database,
	}
}

// InTx runs fn with repositories bound to a single transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return s.database.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// newBuilder returns a squirrel builder with postgres placeholders.
func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// wrapErr classifies a driver error. Connectivity problems become store
// errors that halt a batch; everything else is a plain wrapped error.
func wrapErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if dberrors.IsConnectionError(err) {
		return apperrors.NewStoreError(err, message)
	}
	return fmt.Errorf("%s: %w", message, err)
}
