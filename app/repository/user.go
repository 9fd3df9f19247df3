package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	table, err := tableFor(user.Role)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (username, email, password_hash, phone, credential_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, table)
	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.CredentialVersion,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, role entity.Role, email string) (*entity.User, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, username, email, password_hash, phone, credential_version, created_at, updated_at
		FROM %s WHERE email = ?
	`, table)
	return r.findOne(ctx, role, query, email)
}

func (r *UserRepository) FindByID(ctx context.Context, role entity.Role, id uint64) (*entity.User, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, username, email, password_hash, phone, credential_version, created_at, updated_at
		FROM %s WHERE id = ?
	`, table)
	return r.findOne(ctx, role, query, id)
}

// CredentialVersion returns the counter embedded in session tokens. It changes
// whenever the password changes.
func (r *UserRepository) CredentialVersion(ctx context.Context, role entity.Role, id uint64) (uint64, error) {
	table, err := tableFor(role)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT credential_version FROM %s WHERE id = ?`, table)
	var version uint64
	if err = r.db.QueryRowContext(ctx, query, id).Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return version, nil
}

// UpdatePassword stores a new hash and bumps credential_version, so every
// session issued before the call stops authenticating.
func (r *UserRepository) UpdatePassword(ctx context.Context, role entity.Role, id uint64, passwordHash string, now time.Time) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			password_hash = ?,
			credential_version = credential_version + 1,
			updated_at = ?
		WHERE id = ?
	`, table)
	result, err := r.db.ExecContext(ctx, query, passwordHash, now, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user and every row owned by it. Run it on a transaction.
func (r *UserRepository) Delete(ctx context.Context, user *entity.User) error {
	table, err := tableFor(user.Role)
	if err != nil {
		return err
	}

	switch user.Role {
	case entity.RoleEmployer:
		if _, err = r.db.ExecContext(ctx,
			`DELETE FROM applications WHERE job_id IN (SELECT id FROM jobs WHERE employer_id = ?)`,
			user.ID,
		); err != nil {
			return err
		}
		if _, err = r.db.ExecContext(ctx, `DELETE FROM jobs WHERE employer_id = ?`, user.ID); err != nil {
			return err
		}
	case entity.RoleStudent:
		if _, err = r.db.ExecContext(ctx, `DELETE FROM applications WHERE student_id = ?`, user.ID); err != nil {
			return err
		}
	}

	if _, err = r.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE email = ? AND role = ?`,
		user.Email, string(user.Role),
	); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), user.ID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, role entity.Role, query string, args ...interface{}) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	user.Role = role
	return user, nil
}

func scanUser(scan rowScanner) (*entity.User, error) {
	user := &entity.User{}
	if err := scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.CredentialVersion,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return user, nil
}
