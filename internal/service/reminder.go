package service

import (
	"context"
	"time"

	"github.com/segyhp/loan-engine/internal/domain"
	"github.com/segyhp/loan-engine/internal/repository"
	customError "github.com/segyhp/loan-engine/pkg/errors"
	"github.com/segyhp/loan-engine/pkg/logger"
	"github.com/segyhp/loan-engine/pkg/utils"
)

// Notifier delivers installment reminders to borrowers.
type Notifier interface {
	NotifyUpcoming(ctx context.Context, due *domain.DueInstallment, daysLeft int) error
	NotifyOverdue(ctx context.Context, due *domain.DueInstallment, daysOverdue int) error
}

// LogNotifier writes reminders to the application log.
type LogNotifier struct{}

func (LogNotifier) NotifyUpcoming(_ context.Context, due *domain.DueInstallment, daysLeft int) error {
	logger.Log.Info("installment due soon",
		logger.Stringer("loan_id", due.LoanID),
		logger.Stringer("user_id", due.UserID),
		logger.Int("sequence", due.Sequence),
		logger.String("amount", due.Amount.StringFixed(2)),
		logger.Time("due_date", due.DueDate),
		logger.Int("days_left", daysLeft),
	)
	return nil
}

func (LogNotifier) NotifyOverdue(_ context.Context, due *domain.DueInstallment, daysOverdue int) error {
	logger.Log.Warn("installment overdue",
		logger.Stringer("loan_id", due.LoanID),
		logger.Stringer("user_id", due.UserID),
		logger.Int("sequence", due.Sequence),
		logger.String("amount", due.Amount.StringFixed(2)),
		logger.Time("due_date", due.DueDate),
		logger.Int("days_overdue", daysOverdue),
	)
	return nil
}

// ReminderService scans pending installments for the scheduler.
// It never changes installment or loan state.
type ReminderService struct {
	uow      repository.UnitOfWork
	notifier Notifier
	window   time.Duration
	clock    Clock
}

func NewReminderService(uow repository.UnitOfWork, notifier Notifier, window time.Duration, clock Clock) *ReminderService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReminderService{
		uow:      uow,
		notifier: notifier,
		window:   window,
		clock:    clock,
	}
}

// SendUpcomingReminders notifies borrowers of installments due within the window.
// It returns how many reminders were delivered.
func (s *ReminderService) SendUpcomingReminders(ctx context.Context) (int, error) {
	now := s.clock.Now()

	due, err := s.uow.Repos().Installments.ListDueBetween(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	sent := 0
	for _, installment := range due {
		if err := s.notifier.NotifyUpcoming(ctx, installment, utils.DaysUntil(installment.DueDate, now)); err != nil {
			logger.Log.Warn("failed to send reminder",
				logger.Stringer("installment_id", installment.InstallmentID),
				logger.Error(err),
			)
			continue
		}
		sent++
	}

	logger.Log.Info("upcoming reminders sent", logger.Int("due", len(due)), logger.Int("sent", sent))
	return sent, nil
}

// ReportOverdue notifies borrowers of pending installments already past due.
func (s *ReminderService) ReportOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()

	overdue, err := s.uow.Repos().Installments.ListDueBetween(ctx, time.Time{}, now)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	reported := 0
	for _, installment := range overdue {
		if err := s.notifier.NotifyOverdue(ctx, installment, -utils.DaysUntil(installment.DueDate, now)); err != nil {
			logger.Log.Warn("failed to report overdue installment",
				logger.Stringer("installment_id", installment.InstallmentID),
				logger.Error(err),
			)
			continue
		}
		reported++
	}

	logger.Log.Info("overdue installments reported", logger.Int("overdue", len(overdue)), logger.Int("reported", reported))
	return reported, nil
}
