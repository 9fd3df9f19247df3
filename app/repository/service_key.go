package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
)

type ServiceKeyRepository struct {
	db DBTX
}

func NewServiceKeyRepository(db DBTX) *ServiceKeyRepository {
	return &ServiceKeyRepository{db: db}
}

func (r *ServiceKeyRepository) Create(ctx context.Context, key *entity.ServiceKey) error {
	query := `
		INSERT INTO service_keys (service_name, key_hash, is_active, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		key.ServiceName,
		key.KeyHash,
		key.IsActive,
		key.ExpiresAt,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	key.ID = uint64(id)
	return nil
}

func (r *ServiceKeyRepository) FindActiveByHash(ctx context.Context, keyHash string) (*entity.ServiceKey, error) {
	query := `
		SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at
		FROM service_keys
		WHERE key_hash = ? AND is_active = 1 AND expires_at > NOW()
		ORDER BY id DESC
		LIMIT 1
	`
	key, err := scanServiceKey(r.db.QueryRowContext(ctx, query, keyHash).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return key, nil
}

func (r *ServiceKeyRepository) FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.ServiceKey, error) {
	query := `
		SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at
		FROM service_keys
		WHERE service_name = ? AND is_active = 1 AND expires_at > ?
		ORDER BY id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, serviceName, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]*entity.ServiceKey, 0)
	for rows.Next() {
		key, err := scanServiceKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func (r *ServiceKeyRepository) Deactivate(ctx context.Context, serviceName string, now time.Time) (int64, error) {
	query := `
		UPDATE service_keys SET
			is_active = 0,
			expires_at = ?,
			updated_at = ?
		WHERE service_name = ? AND is_active = 1
	`
	result, err := r.db.ExecContext(ctx, query, now, now, serviceName)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanServiceKey(scan rowScanner) (*entity.ServiceKey, error) {
	key := &entity.ServiceKey{}
	if err := scan(
		&key.ID,
		&key.ServiceName,
		&key.KeyHash,
		&key.IsActive,
		&key.ExpiresAt,
		&key.CreatedAt,
		&key.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return key, nil
}
