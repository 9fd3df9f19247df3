package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
)

type PasswordResetRepository struct {
	db DBTX
}

func NewPasswordResetRepository(db DBTX) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset *entity.PasswordReset) error {
	query := `
		INSERT INTO password_resets (user_id, email, role, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		reset.UserID,
		reset.Email,
		string(reset.Role),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	reset.ID = uint64(id)
	return nil
}

// DeleteByEmail drops every token issued for the email, in any namespace.
func (r *PasswordResetRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE email = ?`, email)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// FindByTokenHashForUpdate locks the row until the surrounding transaction ends.
func (r *PasswordResetRepository) FindByTokenHashForUpdate(ctx context.Context, tokenHash string) (*entity.PasswordReset, error) {
	query := `
		SELECT id, user_id, email, role, token_hash, expires_at, used_at, created_at
		FROM password_resets WHERE token_hash = ? FOR UPDATE
	`
	reset := &entity.PasswordReset{}
	var role string
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&reset.ID,
		&reset.UserID,
		&reset.Email,
		&role,
		&reset.TokenHash,
		&reset.ExpiresAt,
		&reset.UsedAt,
		&reset.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	reset.Role = entity.Role(role)
	return reset, nil
}

// MarkUsed claims the token. It returns 0 when another caller already did.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id uint64, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		now, id,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
