package data

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"

	"github.com/cloudpivot/ssogate/internal/data/pgxutil"
	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
)

// TokenRepo provides database operations for issued credential records.
type TokenRepo struct {
	DB *sql.DB
}

// NewTokenRepo creates a new TokenRepo.
func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{DB: db}
}

const tokenColumns = `id, user_id, access_token, expires_at, created_at`

// Create persists the record for a newly issued credential.
func (r *TokenRepo) Create(ctx context.Context, in ports.CreateTokenInput) (*model.Token, error) {
	if in.UserID == "" {
		return nil, apperrors.Validation("user id is required")
	}
	if in.AccessToken == "" {
		return nil, apperrors.Validation("access token is required")
	}

	var out model.Token
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, `
			INSERT INTO tokens (user_id, access_token, expires_at)
			VALUES ($1, $2, $3)
			RETURNING `+tokenColumns,
			in.UserID, in.AccessToken, in.ExpiresAt.UTC(),
		)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		out, qErr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Token])
		return qErr
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByValue resolves a credential record by its encoded value.
func (r *TokenRepo) GetByValue(ctx context.Context, value string) (*model.Token, error) {
	var out model.Token
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE access_token = $1`, value)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		out, qErr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Token])
		return qErr
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// DeleteByValue removes a credential record at logout. Deleting a value with
// no record is not an error; logout is idempotent.
func (r *TokenRepo) DeleteByValue(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM tokens WHERE access_token = $1`, value); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

var _ ports.TokenStore = (*TokenRepo)(nil)
