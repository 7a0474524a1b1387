package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/models"
)

const defaultSweepLimit = 100

// ReconcileOpenPaymentsTaskDef re-checks payments whose order still awaits
// payment, covering payments created without a webhook and lost notifications.
type ReconcileOpenPaymentsTaskDef struct {
	sweeper Sweeper
	grace   time.Duration
	limit   int
	now     func() time.Time
}

func NewReconcileOpenPaymentsTask(sweeper Sweeper, grace time.Duration, limit int) *ReconcileOpenPaymentsTaskDef {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return &ReconcileOpenPaymentsTaskDef{sweeper: sweeper, grace: grace, limit: limit, now: time.Now}
}

// TaskID returns the unique identifier for this task
func (t *ReconcileOpenPaymentsTaskDef) TaskID() string {
	return models.TaskReconcileOpenPayments
}

// HandleExecution runs one sweep. A "limit" argument overrides the batch size.
func (t *ReconcileOpenPaymentsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	if t.sweeper == nil {
		return nil, errors.New("reconciler not configured")
	}

	limit := t.limit
	if v, ok := task.Arguments["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	counts, err := t.sweeper.SweepAwaiting(ctx, t.now().Add(-t.grace), limit)
	if err != nil {
		return nil, fmt.Errorf("sweep failed: %w", err)
	}

	result := map[string]interface{}{"limit": limit}
	total := 0
	for outcome, n := range counts {
		result[outcome] = n
		total += n
	}
	result["checked"] = total

	log.Info().Interface("counts", counts).Msg("reconciliation sweep finished")
	return result, nil
}

// EnsureRecurring makes sure one recurring task named taskName exists. An
// existing task gets its rule updated; otherwise a new one is created, due now.
func EnsureRecurring(ctx context.Context, db *gorm.DB, taskName, rule string, args interface{}, now time.Time) (*models.ScheduledTask, bool, error) {
	var existing models.ScheduledTask
	err := db.WithContext(ctx).
		Where("task_name = ? AND task_type = ? AND status IN ?", taskName, models.ScheduledTaskTypeRecurring,
			[]models.ScheduledTaskStatus{models.ScheduledTaskStatusActive, models.ScheduledTaskStatusFailure}).
		Order("id ASC").
		First(&existing).Error

	switch {
	case err == nil:
		if existing.RecurringInterval == nil || *existing.RecurringInterval != rule {
			candidate, err := models.NewScheduledTask(taskName, args, existing.Due, &rule, existing.MaxAttempt)
			if err != nil {
				return nil, false, err
			}
			if err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"recurring_interval": candidate.RecurringInterval,
				"status":             models.ScheduledTaskStatusActive,
			}).Error; err != nil {
				return nil, false, err
			}
		}
		return &existing, false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		task, err := models.NewScheduledTask(taskName, args, now, &rule, 1)
		if err != nil {
			return nil, false, err
		}
		if err := db.WithContext(ctx).Create(task).Error; err != nil {
			return nil, false, err
		}
		return task, true, nil

	default:
		return nil, false, err
	}
}
