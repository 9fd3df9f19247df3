package entity

import "time"

type ServiceKey struct {
	ID          uint64
	ServiceName string
	KeyHash     string
	IsActive    bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
