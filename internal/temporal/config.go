package temporal

import "time"

// TaskQueueName is the Temporal task queue for notification delivery work.
const TaskQueueName = "FORGE_NOTIFY"

// NotifyWorkflowName and FireReadyWorkflowName are referenced by string so
// callers can start workflows without importing the workflows package.
const (
	NotifyWorkflowName    = "NotifyWorkflow"
	FireReadyWorkflowName = "FireReadyWorkflow"
)

// NotifyWorkflowIDPrefix keys fan-out workflows by notification id, which
// also deduplicates accidental double-scheduling of the same notification.
const NotifyWorkflowIDPrefix = "forge-notify-"

// FireReadyWorkflowID is the fixed id of the singleton cron sweep workflow.
const FireReadyWorkflowID = "forge-fire-ready"

// DefaultActivityTimeout bounds a single delivery or sweep attempt.
const DefaultActivityTimeout = 5 * time.Minute
