// Package app initializes and runs the blogs service.
// It configures logging, storage, authentication, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/blogsbook/internal/auth"
	"github.com/patric-chuzhbe/blogsbook/internal/config"
	"github.com/patric-chuzhbe/blogsbook/internal/db/jsondb"
	"github.com/patric-chuzhbe/blogsbook/internal/db/memorystorage"
	"github.com/patric-chuzhbe/blogsbook/internal/db/postgresdb"
	"github.com/patric-chuzhbe/blogsbook/internal/grpcserver"
	"github.com/patric-chuzhbe/blogsbook/internal/ipchecker"
	"github.com/patric-chuzhbe/blogsbook/internal/logger"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
	"github.com/patric-chuzhbe/blogsbook/internal/router"
	"github.com/patric-chuzhbe/blogsbook/internal/service"
	"github.com/patric-chuzhbe/blogsbook/internal/tokensweeper"
)

const shutdownTimeout = 10 * time.Second

type usersKeeper interface {
	CreateUser(ctx context.Context, usr *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID string) error
	DeleteAllUsers(ctx context.Context) error
}

type accessTokensKeeper interface {
	InsertAccessToken(ctx context.Context, token *models.AccessToken) error
	FindAccessTokenByValue(ctx context.Context, token string) (*models.AccessToken, error)
	FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error)
	DeleteAccessTokensByUserIDs(ctx context.Context, userIDs []string) (int64, error)
}

type blogsKeeper interface {
	InsertBlog(ctx context.Context, blog *models.Blog) error
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)
	GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error)
	UpdateBlog(ctx context.Context, blogID, authorID string, patch models.BlogPatch) (*models.Blog, error)
	DeleteBlog(ctx context.Context, blogID, authorID string) error
}

type storage interface {
	usersKeeper
	accessTokensKeeper
	blogsKeeper
	Ping(ctx context.Context) error
	Close() error
}

// App encapsulates the configuration, handlers, storage backend and the
// background token sweeper needed to run the service.
type App struct {
	cfg          *config.Config
	db           storage
	sweeper      *tokensweeper.TokenSweeper
	stopSweeper  context.CancelFunc
	httpHandler  http.Handler
	grpcServer   *grpc.Server
	grpcListener net.Listener
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up the token issuer, verifier and guard for the secret policy
// - starting the background token sweeper
// - setting up the router and, when configured, the gRPC server
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	secrets, err := auth.NewSecretResolver(app.cfg.SecretPolicy, app.db, app.db)
	if err != nil {
		return nil, err
	}
	logger.Log.Infoln("bearer token secret policy", "policy", secrets.Name())

	app.sweeper = tokensweeper.New(
		app.db,
		app.cfg.SweepQueueCapacity,
		app.cfg.SweepInterval,
	)
	sweeperRunCtx, stopSweeper := context.WithCancel(context.Background())
	app.stopSweeper = stopSweeper

	app.sweeper.Run(sweeperRunCtx)
	app.sweeper.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.sweeper.ListenErrors()`:", zap.Error(err))
	})

	svc := service.New(
		app.db,
		auth.NewIssuer(
			app.db,
			app.db,
			secrets,
			auth.WithAccessTokenBytes(app.cfg.AccessTokenBytes),
			auth.WithBearerTokenTTL(app.cfg.BearerTokenTTL),
		),
		auth.NewGuard(auth.NewVerifier(secrets)),
		app.sweeper,
	)

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		stopSweeper()
		return nil, err
	}
	if checker.IsTrustedSubnetEmpty() {
		logger.Log.Infoln("no trusted subnet configured, the administrative endpoints are disabled")
	}

	app.httpHandler = router.New(svc, checker)

	if app.cfg.GRPCAddr != "" {
		app.grpcServer, app.grpcListener, err = grpcserver.NewGRPCServer(
			app.cfg.GRPCAddr,
			grpcserver.NewAuthHandler(svc),
		)
		if err != nil {
			stopSweeper()
			return nil, err
		}
	}

	return app, nil
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server (and the gRPC server when configured) with
// graceful shutdown support. It listens for system signals and cleans up
// resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:         a.cfg.RunAddr,
		Handler:      a.httpHandler,
		ReadTimeout:  a.cfg.HTTPReadTimeout,
		WriteTimeout: a.cfg.HTTPWriteTimeout,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infoln("gRPC server running", "GRPCAddr", a.grpcListener.Addr().String())
		go func() {
			serverErrCh <- a.grpcServer.Serve(a.grpcListener)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Flushing the token sweeper and exiting...")
		return a.shutdown(server)

	case err := <-serverErrCh:
		a.stopSweeper()
		<-a.sweeper.Done()
		if closeErr := a.db.Close(); closeErr != nil {
			logger.Log.Debugln("Error calling the `a.db.Close()`: ", zap.Error(closeErr))
		}
		return fmt.Errorf("server error: %w", err)
	}
}

func (a *App) shutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}

	a.stopSweeper()
	select {
	case <-a.sweeper.Done():
	case <-shutdownCtx.Done():
		logger.Log.Infoln("token sweeper did not finish before the shutdown timeout")
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
