package entity

import (
	"database/sql"
	"time"
)

type Role string

const (
	RoleStudent  Role = "student"
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

// Table returns the credential table backing the role's namespace. The same
// email may exist in more than one table.
func (r Role) Table() (string, bool) {
	switch r {
	case RoleStudent:
		return "students", true
	case RoleEmployer:
		return "employers", true
	case RoleAdmin:
		return "admins", true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	_, ok := r.Table()
	return ok
}

// SelfService reports whether accounts of this role can sign up and delete
// themselves. Admins are provisioned out of band.
func (r Role) SelfService() bool {
	return r == RoleStudent || r == RoleEmployer
}

type User struct {
	ID                uint64
	Role              Role
	Username          string
	Email             string
	PasswordHash      string
	Phone             sql.NullString
	CredentialVersion uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
