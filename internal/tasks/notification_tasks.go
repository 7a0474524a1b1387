package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

// SendNotificationTaskDef tells a customer that the status of their order changed.
// Retries are driven by the runner through the task's MaxAttempt.
type SendNotificationTaskDef struct {
	orders   OrderReader
	notifier services.Notifier
}

func NewSendNotificationTask(orders OrderReader, notifier services.Notifier) *SendNotificationTaskDef {
	return &SendNotificationTaskDef{orders: orders, notifier: notifier}
}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return models.TaskSendNotification
}

// HandleExecution sends the notification through the configured channel
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var args services.NotificationArgs
	if err := json.Unmarshal(argsBytes, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args.OrderID == 0 {
		return nil, fmt.Errorf("order_id not provided")
	}
	if t.notifier == nil {
		return nil, fmt.Errorf("no notification channel configured")
	}

	order, err := t.orders.Get(ctx, args.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", args.OrderID, err)
	}

	subject, body := notificationMessage(order, args)
	if err := t.notifier.Notify(ctx, order, subject, body); err != nil {
		return nil, err
	}

	log.Info().Uint("order_id", order.ID).Str("status", args.Status).Msg("customer notified")

	return map[string]interface{}{
		"status":   "success",
		"order_id": order.ID,
		"subject":  subject,
	}, nil
}

func notificationMessage(order *models.Order, args services.NotificationArgs) (subject, body string) {
	subject = fmt.Sprintf("Order #%d update", order.ID)

	var b strings.Builder
	if order.CustomerName != "" {
		fmt.Fprintf(&b, "Dear %s,\n\n", order.CustomerName)
	}
	if args.Comment != "" {
		b.WriteString(args.Comment + "\n\n")
	}
	fmt.Fprintf(&b, "Order #%d is now %s.", order.ID, args.Status)

	return subject, b.String()
}
