package activities

import (
	"context"

	"github.com/openforge/forge-api/internal/notification"
	"go.temporal.io/sdk/activity"
)

type Activities struct {
	Dispatcher *notification.Dispatcher
}

// DeliverActivity appends the notification id to every subscribed mailbox.
func (a *Activities) DeliverActivity(ctx context.Context, task notification.FanoutTask) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Delivering notification to mailboxes", "NotificationID", task.NotificationID)

	err := a.Dispatcher.Deliver(ctx, task)
	if err != nil {
		logger.Error("Fan-out failed", "NotificationID", task.NotificationID, "error", err)
	}
	return err
}

// FireReadyActivity drains and sends every mailbox whose queue is due.
func (a *Activities) FireReadyActivity(ctx context.Context) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Sweeping ready mailboxes")

	err := a.Dispatcher.FireReady(ctx)
	if err != nil {
		logger.Error("Mailbox sweep failed", "error", err)
	}
	return err
}
