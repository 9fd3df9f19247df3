package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/campusjobs/jobboard-auth/app/mail"
	"github.com/campusjobs/jobboard-auth/app/oauth"
	"github.com/campusjobs/jobboard-auth/app/repository"
	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/config"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"
)

var (
	userColumns = []string{
		"id",
		"username",
		"email",
		"password_hash",
		"phone",
		"credential_version",
		"created_at",
		"updated_at",
	}
	resetColumns = []string{
		"id",
		"user_id",
		"email",
		"role",
		"token_hash",
		"expires_at",
		"used_at",
		"created_at",
	}
	serviceKeyColumns = []string{
		"id",
		"service_name",
		"key_hash",
		"is_active",
		"expires_at",
		"created_at",
		"updated_at",
	}
)

const (
	insertStudentQuery       = `(?s)INSERT INTO students \(username, email, password_hash, phone, credential_version, created_at, updated_at\)`
	insertEmployerQuery      = `(?s)INSERT INTO employers \(username, email, password_hash, phone, credential_version, created_at, updated_at\)`
	insertAdminQuery         = `(?s)INSERT INTO admins \(username, email, password_hash, phone, credential_version, created_at, updated_at\)`
	findStudentByEmailQuery  = `(?s)SELECT id, username, email, password_hash, phone, credential_version, created_at, updated_at\s+FROM students WHERE email = \?`
	findEmployerByEmailQuery = `(?s)SELECT id, username, email, password_hash, phone, credential_version, created_at, updated_at\s+FROM employers WHERE email = \?`
	findAdminByEmailQuery    = `(?s)SELECT id, username, email, password_hash, phone, credential_version, created_at, updated_at\s+FROM admins WHERE email = \?`
	findStudentByIDQuery     = `(?s)SELECT id, username, email, password_hash, phone, credential_version, created_at, updated_at\s+FROM students WHERE id = \?`
	updateStudentPassword    = `(?s)UPDATE students SET\s+password_hash = \?,\s+credential_version = credential_version \+ 1,\s+updated_at = \?\s+WHERE id = \?`
	deleteStudentAppsQuery   = `(?s)DELETE FROM applications WHERE student_id = \?`
	deleteResetsByOwnerQuery = `(?s)DELETE FROM password_resets WHERE email = \? AND role = \?`
	deleteStudentQuery       = `(?s)DELETE FROM students WHERE id = \?`
	insertResetQuery         = `(?s)INSERT INTO password_resets \(user_id, email, role, token_hash, expires_at, created_at\)`
	deleteResetsByEmailQuery = `(?s)DELETE FROM password_resets WHERE email = \?$`
	deleteExpiredResetsQuery = `(?s)DELETE FROM password_resets WHERE expires_at < \?`
	findResetForUpdateQuery  = `(?s)SELECT id, user_id, email, role, token_hash, expires_at, used_at, created_at\s+FROM password_resets WHERE token_hash = \? FOR UPDATE`
	markResetUsedQuery       = `(?s)UPDATE password_resets SET used_at = \? WHERE id = \? AND used_at IS NULL`
	insertServiceKeyQuery    = `(?s)INSERT INTO service_keys \(service_name, key_hash, is_active, expires_at, created_at, updated_at\)`
	findServiceKeyByHash     = `(?s)SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at\s+FROM service_keys\s+WHERE key_hash = \?`
	findServiceKeysByName    = `(?s)SELECT id, service_name, key_hash, is_active, expires_at, created_at, updated_at\s+FROM service_keys\s+WHERE service_name = \?`
	deactivateServiceKeys    = `(?s)UPDATE service_keys SET\s+is_active = 0`
)

var fixedNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeVerifier struct {
	identity *oauth.Identity
	err      error
}

func (v *fakeVerifier) Verify(_ context.Context, _ string) (*oauth.Identity, error) {
	return v.identity, v.err
}

type testHarness struct {
	svc      service.UserAuthService
	mock     sqlmock.Sqlmock
	mailer   *fakeMailer
	sessions *service.SessionManager
	hasher   service.PasswordHasher
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:    config.JWTConfig{Secret: "test-secret", SessionTTL: time.Hour},
		Tokens: config.TokenConfig{ResetTTL: time.Hour},
		Password: config.PasswordConfig{
			Policy: config.PasswordPolicy{
				MinLength:        8,
				RequireUppercase: true,
				RequireLowercase: true,
				RequireNumber:    true,
				RequireSpecial:   true,
			},
			BcryptCost: bcrypt.MinCost,
		},
		Mail:     config.MailConfig{Timeout: time.Second},
		Frontend: config.FrontendConfig{BaseURL: "https://jobs.example.com"},
	}
}

func newServiceWithMock(t *testing.T, opts ...service.UserAuthServiceOption) (*testHarness, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	cfg := testConfig()
	userRepo := repository.NewUserRepository(db)
	hasher := service.NewBcryptHasher(cfg.Password.BcryptCost)
	sessions := service.NewSessionManager(cfg.JWT.Secret, cfg.JWT.SessionTTL, userRepo, service.WithSessionClock(func() time.Time { return fixedNow }))
	mailer := &fakeMailer{}

	allOpts := append([]service.UserAuthServiceOption{
		service.WithMailer(mailer),
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithResetTokenGenerator(func() (string, error) { return "raw-reset-token", nil }),
	}, opts...)

	svc := service.NewUserAuthService(
		db,
		userRepo,
		repository.NewPasswordResetRepository(db),
		hasher,
		sessions,
		cfg,
		allOpts...,
	)

	return &testHarness{
		svc:      svc,
		mock:     mock,
		mailer:   mailer,
		sessions: sessions,
		hasher:   hasher,
	}, func() { _ = db.Close() }
}

func mustHash(t *testing.T, h service.PasswordHasher, password string) string {
	t.Helper()
	hashed, err := h.Hash(password)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return hashed
}

func sha256Hex(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func userRow(id uint64, username, email, hash string, version uint64) *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).AddRow(id, username, email, hash, nil, version, fixedNow, fixedNow)
}
