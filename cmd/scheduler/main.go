package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/segyhp/loan-engine/internal/app"
	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/service"
	"github.com/segyhp/loan-engine/pkg/logger"
)

const jobTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize application", logger.Error(err))
	}
	defer a.Close()

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Scheduler.Location()))

	if err := setupCronJobs(c, cfg.Scheduler, a.ReminderService()); err != nil {
		logger.Log.Fatal("failed to schedule jobs", logger.Error(err))
	}

	// Start the scheduler
	c.Start()
	logger.Log.Info("scheduler started", logger.String("timezone", cfg.Scheduler.Timezone))

	<-ctx.Done()

	logger.Log.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Log.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg config.SchedulerConfig, reminders *service.ReminderService) error {
	// Daily scan for pending installments due within the reminder window
	if _, err := c.AddFunc(cfg.ReminderSpec, runJob("upcoming_reminders", reminders.SendUpcomingReminders)); err != nil {
		return err
	}

	// Daily scan for pending installments past due
	if _, err := c.AddFunc(cfg.OverdueSpec, runJob("overdue_report", reminders.ReportOverdue)); err != nil {
		return err
	}

	logger.Log.Info("cron jobs scheduled",
		logger.String("reminder_spec", cfg.ReminderSpec),
		logger.String("overdue_spec", cfg.OverdueSpec),
	)
	return nil
}

func runJob(name string, job func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		count, err := job(ctx)
		if err != nil {
			logger.Log.Error("job failed", logger.String("job", name), logger.Error(err))
			return
		}

		logger.Log.Info("job finished",
			logger.String("job", name),
			logger.Int("count", count),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
