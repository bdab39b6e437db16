//revive:disable-next-line:var-naming // legacy package name widely used across the project
package data

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cloudpivot/ssogate/internal/data/pgxutil"
	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
)

// UserRepo provides database operations for local user records.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userColumns = `id, email, name, provider, sso_metadata, created_at, updated_at`

// Upsert creates the user on first login for an email, otherwise refreshes
// name, provider, and claims on the existing row. The unique constraint on
// email plus ON CONFLICT makes the operation atomic across concurrent
// callbacks: the row id is stable and no duplicate is ever created.
func (r *UserRepo) Upsert(ctx context.Context, in ports.UpsertUserInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}

	metadata, err := in.Claims.JSON()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode claims")
	}

	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, `
			INSERT INTO users (email, name, provider, sso_metadata)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET
				name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
				provider = EXCLUDED.provider,
				sso_metadata = EXCLUDED.sso_metadata,
				updated_at = now()
			RETURNING `+userColumns,
			email, in.Name, in.Provider, metadata,
		)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		out, qErr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return qErr
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a user by id. A syntactically invalid id resolves to
// NotFound rather than a database error, since stale credentials can carry
// arbitrary subjects.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFoundf("user %q not found", id)
	}
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email (case-sensitive, as received from the
// provider).
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepo) getBy(ctx context.Context, query, arg string) (*model.User, error) {
	var out model.User
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, arg)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		out, qErr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
		return qErr
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

var _ ports.UserStore = (*UserRepo)(nil)
