package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/campusjobs/jobboard-auth/app/entity"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUnknownRole    = errors.New("unknown role")
)

const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner func(dest ...interface{}) error

func tableFor(role entity.Role) (string, error) {
	table, ok := role.Table()
	if !ok {
		return "", ErrUnknownRole
	}
	return table, nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// IsDeadlock reports whether err is an InnoDB deadlock, after which the
// transaction has been rolled back and may be retried.
func IsDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDeadlock
}
