package temporal

import (
	"context"

	"github.com/openforge/forge-api/internal/notification"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	tc "go.temporal.io/sdk/client"
)

// Scheduler starts delivery workflows on Temporal. It satisfies
// notification.FanoutScheduler so the notification package stays unaware of
// the task backend.
type Scheduler struct {
	client tc.Client
	logger zerolog.Logger
}

func NewScheduler(client tc.Client, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		client: client,
		logger: logger.With().Str("component", "temporal-scheduler").Logger(),
	}
}

// Schedule starts a fan-out workflow for the stored notification. The
// workflow id embeds the notification id, so retrying a failed Post call
// cannot fan the same notification out twice.
func (s *Scheduler) Schedule(ctx context.Context, task notification.FanoutTask) error {
	opts := tc.StartWorkflowOptions{
		ID:        NotifyWorkflowIDPrefix + task.NotificationID,
		TaskQueue: TaskQueueName,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, NotifyWorkflowName, task)
	if err != nil {
		return errors.Wrap(err, "start notify workflow")
	}
	s.logger.Debug().
		Str("workflow_id", run.GetID()).
		Str("notification_id", task.NotificationID).
		Msg("fan-out scheduled")
	return nil
}

// EnsureFireReadySweep starts the singleton cron workflow that drains ready
// mailboxes. Starting it when a run already exists returns the existing run,
// so calling this on every boot is safe.
func (s *Scheduler) EnsureFireReadySweep(ctx context.Context, cron string) error {
	opts := tc.StartWorkflowOptions{
		ID:           FireReadyWorkflowID,
		TaskQueue:    TaskQueueName,
		CronSchedule: cron,
	}
	_, err := s.client.ExecuteWorkflow(ctx, opts, FireReadyWorkflowName)
	if err != nil {
		return errors.Wrap(err, "start fire-ready cron workflow")
	}
	return nil
}
