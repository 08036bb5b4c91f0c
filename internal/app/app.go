package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-engine/internal/cache"
	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/database"
	"github.com/segyhp/loan-engine/internal/handler"
	"github.com/segyhp/loan-engine/internal/lock"
	"github.com/segyhp/loan-engine/internal/repository"
	"github.com/segyhp/loan-engine/internal/repository/memory"
	"github.com/segyhp/loan-engine/internal/service"
	"github.com/segyhp/loan-engine/pkg/logger"
)

// App holds the process-wide dependencies shared by the server and scheduler.
// DB is nil with the memory driver; Redis is nil when disabled.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	UoW    repository.UnitOfWork
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		logger.Log.Warn("using in-memory store, data is lost on restart")
		a.UoW = memory.NewStore(cfg.Database.TxTimeout)
	default:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db.DB, cfg.Database.Name); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.UoW = repository.NewSQLUnitOfWork(db, cfg.Database.TxTimeout)
	}

	if cfg.Redis.Enabled {
		client, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
	}

	return a, nil
}

func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}
	return client, nil
}

// LoanService builds the lifecycle engine with cache and lock when redis is on.
func (a *App) LoanService() *service.LoanService {
	opts := []service.Option{}

	if a.Redis != nil {
		opts = append(opts, service.WithCache(cache.NewRedisLoanCache(a.Redis, a.Config.Cache.LoanTTL)))

		if a.Config.Lock.Enabled {
			opts = append(opts, service.WithLocker(lock.NewRedisLocker(a.Redis, lock.Options{
				Expiry:     a.Config.Lock.Expiry,
				Tries:      a.Config.Lock.Tries,
				RetryDelay: a.Config.Lock.RetryDelay,
			})))
		}
	}

	return service.NewLoanService(a.UoW, service.LimitsFromConfig(a.Config.Loan), opts...)
}

func (a *App) ReminderService() *service.ReminderService {
	return service.NewReminderService(a.UoW, service.LogNotifier{}, a.Config.Scheduler.ReminderWindow, service.SystemClock{})
}

func (a *App) Router() http.Handler {
	var checks []handler.Check
	if a.DB != nil {
		checks = append(checks, handler.DatabaseCheck(a.DB))
	}
	if a.Redis != nil {
		checks = append(checks, handler.RedisCheck(a.Redis))
	}

	return handler.NewRouter(
		handler.NewLoanHandler(a.LoanService()),
		handler.NewHealthHandler(a.Config.Health.Timeout, checks...),
		a.Config.Auth.JWTSecret,
	)
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight requests.
func (a *App) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:         net.JoinHostPort(a.Config.Server.Host, a.Config.Server.Port),
		Handler:      a.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("server stopped")
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Error("error closing redis", logger.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Log.Error("error closing database", logger.Error(err))
		}
	}
}
