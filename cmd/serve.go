package cmd

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusjobs/jobboard-auth/app/controller"
	"github.com/campusjobs/jobboard-auth/app/entity"
	authgrpc "github.com/campusjobs/jobboard-auth/app/grpc"
	"github.com/campusjobs/jobboard-auth/app/mail"
	"github.com/campusjobs/jobboard-auth/app/middleware"
	"github.com/campusjobs/jobboard-auth/app/oauth"
	"github.com/campusjobs/jobboard-auth/app/repository"
	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/config"
	"github.com/campusjobs/jobboard-auth/database"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start the HTTP (Echo) API and the gRPC session introspection server.`,
	Run:   runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

// application holds the wired services shared by the HTTP and gRPC servers.
type application struct {
	cfg         *config.Config
	userAuth    service.UserAuthService
	sessions    *service.SessionManager
	serviceKeys service.ServiceKeyService
}

func newApplication(ctx context.Context, cfg *config.Config, db *sql.DB) *application {
	userRepo := repository.NewUserRepository(db)
	sessions := service.NewSessionManager(cfg.JWT.Secret, cfg.JWT.SessionTTL, userRepo)

	opts := []service.UserAuthServiceOption{service.WithMailer(newMailer(cfg.Mail))}
	if verifier := newIdentityVerifier(ctx, cfg.OAuth); verifier != nil {
		opts = append(opts, service.WithIdentityVerifier(verifier))
	}

	userAuth := service.NewUserAuthService(
		db,
		userRepo,
		repository.NewPasswordResetRepository(db),
		service.NewBcryptHasher(cfg.Password.BcryptCost),
		sessions,
		cfg,
		opts...,
	)

	return &application{
		cfg:         cfg,
		userAuth:    userAuth,
		sessions:    sessions,
		serviceKeys: service.NewServiceKeyService(repository.NewServiceKeyRepository(db)),
	}
}

func newMailer(cfg config.MailConfig) mail.Sender {
	if cfg.Mock {
		logrus.Warn("MAIL_MOCK enabled, password reset emails will be logged instead of sent")
		return mail.NewLogSender(nil)
	}
	if cfg.Host == "" {
		logrus.Error("SMTP_HOST not set, password reset emails cannot be delivered")
		return mail.UnconfiguredSender{}
	}
	return mail.NewSMTPSender(cfg)
}

// newIPExtractor identifies the client by the TCP peer unless proxies are
// configured, in which case only their X-Forwarded-For entries are trusted.
func newIPExtractor(cfg config.HTTPConfig) echo.IPExtractor {
	if len(cfg.TrustedProxies) == 0 {
		return echo.ExtractIPDirect()
	}

	options := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, ipNet := range cfg.TrustedProxies {
		options = append(options, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(options...)
}

func newIdentityVerifier(ctx context.Context, cfg config.OAuthConfig) oauth.Verifier {
	if cfg.GoogleClientID == "" {
		logrus.Info("GOOGLE_CLIENT_ID not set, Google login disabled")
		return nil
	}

	verifier, err := oauth.NewGoogleVerifier(ctx, cfg.GoogleClientID)
	if err != nil {
		logrus.WithError(err).Error("Failed to initialize Google token verifier, Google login disabled")
		return nil
	}
	return verifier
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if migrateOnStart {
		if err := database.Migrate(ctx, db, "up"); err != nil {
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	app := newApplication(ctx, cfg, db)
	e := newHTTPServer(app)
	grpcServer := newGRPCServer(app)

	go startGRPCServer(cfg, grpcServer)
	go startHTTPServer(cfg, e)

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()
}

func newHTTPServer(app *application) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = newIPExtractor(app.cfg.HTTP)

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	userController := controller.NewUserAuthController(app.userAuth)
	internalController := controller.NewInternalAuthController(app.sessions)
	authMiddleware := middleware.NewAuthMiddleware(app.sessions)
	serviceKeyMiddleware := middleware.NewServiceKeyMiddleware(app.serviceKeys)
	forgotLimiter := middleware.ForgotRateLimiter(app.cfg.RateLimit)

	e.POST("/signup/:role", userController.Signup)
	e.POST("/login/:role", userController.Login)
	e.POST("/api/google-login", userController.GoogleLogin)
	e.POST("/forgot", userController.ForgotPassword, forgotLimiter)
	e.POST("/forgot/:role", userController.ForgotPassword, forgotLimiter)
	e.POST("/reset-password", userController.ResetPassword)

	requireAuth := authMiddleware.RequireAuth
	e.GET("/me", userController.Me, requireAuth)

	for _, role := range []entity.Role{entity.RoleStudent, entity.RoleEmployer} {
		requireRole := middleware.RequireRole(role)
		e.POST("/"+string(role)+"/change-password", userController.ChangePassword, requireAuth, requireRole)
		e.DELETE("/delete/"+string(role), userController.DeleteAccount, requireAuth, requireRole)
	}

	e.DELETE("/admin/users/:role/:id", userController.AdminDeleteUser, requireAuth, middleware.RequireRole(entity.RoleAdmin))

	internal := e.Group("/internal", serviceKeyMiddleware.RequireServiceKey)
	internal.POST("/authenticate", internalController.Authenticate)

	return e
}

func newGRPCServer(app *application) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(authgrpc.APIKeyUnaryInterceptor(app.serviceKeys)),
		grpc.StreamInterceptor(authgrpc.APIKeyStreamInterceptor(app.serviceKeys)),
	)
	authgrpc.RegisterSessionServiceServer(grpcServer, authgrpc.NewSessionServer(app.sessions))
	return grpcServer
}

func startHTTPServer(cfg *config.Config, e *echo.Echo) {
	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func startGRPCServer(cfg *config.Config, grpcServer *grpc.Server) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
}
