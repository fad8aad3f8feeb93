package workflows

import (
	"github.com/openforge/forge-api/internal/notification"
	"github.com/openforge/forge-api/internal/temporal"
	"github.com/openforge/forge-api/internal/temporal/activities"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// NotifyWorkflow fans one stored notification out to subscribed mailboxes.
// The append is idempotent at the workflow level (one workflow id per
// notification), so Temporal's retries cannot double-queue.
func NotifyWorkflow(ctx workflow.Context, task notification.FanoutTask) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Fanning out notification", "NotificationID", task.NotificationID)

	// Proxy; the implementation is registered on the worker.
	var a *activities.Activities
	return workflow.ExecuteActivity(ctx, a.DeliverActivity, task).Get(ctx, nil)
}

// FireReadyWorkflow runs the periodic sweep that drains due mailboxes and
// mails their contents. It is started once with a cron schedule.
func FireReadyWorkflow(ctx workflow.Context) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
		RetryPolicy: &sdktemporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *activities.Activities
	return workflow.ExecuteActivity(ctx, a.FireReadyActivity).Get(ctx, nil)
}
