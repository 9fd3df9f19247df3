package service_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/campusjobs/jobboard-auth/app/repository"
	"github.com/campusjobs/jobboard-auth/app/service"

	"github.com/DATA-DOG/go-sqlmock"
)

func newServiceKeyServiceWithMock(t *testing.T) (service.ServiceKeyService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return service.NewServiceKeyService(repository.NewServiceKeyRepository(db)), mock, func() { _ = db.Close() }
}

func TestServiceKeyService_Issue(t *testing.T) {
	svc, mock, cleanup := newServiceKeyServiceWithMock(t)
	defer cleanup()

	mock.ExpectQuery(findServiceKeysByName).
		WithArgs("jobs", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(serviceKeyColumns))
	mock.ExpectExec(insertServiceKeyQuery).
		WithArgs("jobs", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rawKey, err := svc.Issue(context.Background(), " jobs ")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if !strings.HasPrefix(rawKey, "jbsk_") || len(rawKey) != len("jbsk_")+64 {
		t.Fatalf("unexpected key format: %q", rawKey)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServiceKeyService_Issue_FailsWhenActiveExists(t *testing.T) {
	svc, mock, cleanup := newServiceKeyServiceWithMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(findServiceKeysByName).
		WithArgs("jobs", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(serviceKeyColumns).AddRow(uint64(1), "jobs", "hash", true, now.Add(time.Hour), now, now))

	_, err := svc.Issue(context.Background(), "jobs")
	if !errors.Is(err, service.ErrServiceHasActiveKey) {
		t.Fatalf("expected ErrServiceHasActiveKey, got %v", err)
	}

	if _, err := svc.Issue(context.Background(), "  "); !errors.Is(err, service.ErrServiceNameRequired) {
		t.Fatalf("expected ErrServiceNameRequired, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServiceKeyService_Validate(t *testing.T) {
	svc, mock, cleanup := newServiceKeyServiceWithMock(t)
	defer cleanup()

	rawKey := "jbsk_" + strings.Repeat("ab", 32)
	now := time.Now()
	mock.ExpectQuery(findServiceKeyByHash).
		WithArgs(sha256Hex(rawKey)).
		WillReturnRows(sqlmock.NewRows(serviceKeyColumns).AddRow(uint64(1), "applications", sha256Hex(rawKey), true, now.Add(time.Hour), now, now))
	mock.ExpectQuery(findServiceKeyByHash).
		WithArgs(sha256Hex("jbsk_unknown")).
		WillReturnRows(sqlmock.NewRows(serviceKeyColumns))
	mock.ExpectQuery(findServiceKeyByHash).
		WithArgs(sha256Hex("jbsk_broken")).
		WillReturnError(sql.ErrConnDone)

	key, err := svc.Validate(context.Background(), rawKey)
	if err != nil || key.ServiceName != "applications" {
		t.Fatalf("unexpected key: %+v (%v)", key, err)
	}

	if _, err := svc.Validate(context.Background(), "jbsk_unknown"); !errors.Is(err, service.ErrInvalidServiceKey) {
		t.Fatalf("expected ErrInvalidServiceKey, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "no-prefix"); !errors.Is(err, service.ErrInvalidServiceKey) {
		t.Fatalf("expected ErrInvalidServiceKey for missing prefix, got %v", err)
	}
	if _, err := svc.Validate(context.Background(), "jbsk_broken"); err == nil || errors.Is(err, service.ErrInvalidServiceKey) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestServiceKeyService_Revoke(t *testing.T) {
	svc, mock, cleanup := newServiceKeyServiceWithMock(t)
	defer cleanup()

	mock.ExpectExec(deactivateServiceKeys).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deactivateServiceKeys).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := svc.Revoke(context.Background(), "jobs")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 revoked, got %d (%v)", n, err)
	}
	if _, err := svc.Revoke(context.Background(), "ghost"); !errors.Is(err, service.ErrServiceHasNoActiveKey) {
		t.Fatalf("expected ErrServiceHasNoActiveKey, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
