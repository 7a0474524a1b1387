package tasks

import (
	"context"
	"time"

	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

// Sweeper reconciles payments still awaiting a final status.
type Sweeper interface {
	SweepAwaiting(ctx context.Context, olderThan time.Time, limit int) (map[string]int, error)
}

// OrderReader loads orders for notifications.
type OrderReader interface {
	Get(ctx context.Context, id uint) (*models.Order, error)
}

// Dependencies are the services the task handlers need.
type Dependencies struct {
	Sweeper     Sweeper
	Orders      OrderReader
	Notifier    services.Notifier
	GracePeriod time.Duration
	SweepLimit  int
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Dependencies) {
	// Register general tasks
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Register payment tasks
	reconcile := NewReconcileOpenPaymentsTask(deps.Sweeper, deps.GracePeriod, deps.SweepLimit)
	r.Register(reconcile.TaskID(), reconcile.HandleExecution)

	// Register notification tasks
	notify := NewSendNotificationTask(deps.Orders, deps.Notifier)
	r.Register(notify.TaskID(), notify.HandleExecution)
}
