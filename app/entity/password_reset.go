package entity

import (
	"database/sql"
	"time"
)

type PasswordReset struct {
	ID        uint64
	UserID    uint64
	Email     string
	Role      Role
	TokenHash string
	ExpiresAt time.Time
	UsedAt    sql.NullTime
	CreatedAt time.Time
}

func (r *PasswordReset) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

func (r *PasswordReset) Redeemable(now time.Time) bool {
	return !r.UsedAt.Valid && !r.Expired(now)
}
