package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/repository/memory"
	"github.com/segyhp/loan-engine/internal/service"
)

func TestSetupCronJobs(t *testing.T) {
	c := cron.New(cron.WithSeconds())
	reminders := service.NewReminderService(memory.NewStore(time.Second), service.LogNotifier{}, time.Hour, nil)

	err := setupCronJobs(c, config.SchedulerConfig{
		ReminderSpec: "0 0 9 * * *",
		OverdueSpec:  "0 0 0 * * *",
	}, reminders)

	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestSetupCronJobs_InvalidSpec(t *testing.T) {
	c := cron.New(cron.WithSeconds())
	reminders := service.NewReminderService(memory.NewStore(time.Second), service.LogNotifier{}, time.Hour, nil)

	err := setupCronJobs(c, config.SchedulerConfig{
		ReminderSpec: "every morning",
		OverdueSpec:  "0 0 0 * * *",
	}, reminders)

	assert.Error(t, err)
}

func TestRunJob(t *testing.T) {
	calls := 0
	runJob("ok", func(ctx context.Context) (int, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return 3, nil
	})()

	runJob("failing", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})()

	assert.Equal(t, 2, calls)
}
