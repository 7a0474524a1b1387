package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/models"
)

// Run statuses written to the task history.
const (
	RunSuccess         = "success"
	RunFailure         = "failure"
	RunHandlerNotFound = "handler_not_found"
)

// Runner executes due scheduled tasks and records their history.
type Runner struct {
	db         *gorm.DB
	registry   *Registry
	retryDelay time.Duration
	now        func() time.Time
}

// NewRunner creates a Runner. A failed attempt is retried after
// retryDelay multiplied by the number of attempts so far.
func NewRunner(db *gorm.DB, registry *Registry, retryDelay time.Duration) *Runner {
	return &Runner{
		db:         db,
		registry:   registry,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

// RunDue executes every active task whose due time has passed and returns
// how many were run.
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	var pendingTasks []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due ASC").
		Find(&pendingTasks).Error
	if err != nil {
		return 0, err
	}

	if len(pendingTasks) == 0 {
		log.Debug().Msg("no pending tasks found")
		return 0, nil
	}
	log.Info().Int("count", len(pendingTasks)).Msg("found pending tasks")

	ran := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.Execute(ctx, task)
		ran++
	}
	return ran, nil
}

// Execute runs one task attempt and returns the run status.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) string {
	logger := log.With().Str("task", task.TaskName).Uint("task_id", task.ID).Logger()
	startTime := r.now()
	attempt := task.Attempts + 1

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		logger.Warn().Msg("task handler not found, marking as failure")
		r.update(ctx, task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &startTime,
			"attempts": attempt,
		})
		r.recordHistory(ctx, task, startTime, 0, RunHandlerNotFound, attempt,
			map[string]interface{}{"error": "Handler not found"})
		return RunHandlerNotFound
	}

	result, err := handler(ctx, r.db, task)
	runtimeMs := int(r.now().Sub(startTime).Milliseconds())

	status := RunSuccess
	resultData := result
	if err != nil {
		status = RunFailure
		resultData = map[string]interface{}{"error": err.Error()}
		logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempt", task.MaxAttempt).Msg("task failed")
	} else {
		logger.Info().Int("runtime_ms", runtimeMs).Msg("task completed")
	}

	r.recordHistory(ctx, task, startTime, runtimeMs, status, attempt, resultData)

	updates := map[string]interface{}{
		"last_run": &startTime,
	}

	switch {
	case err != nil && attempt < task.MaxAttempt:
		updates["attempts"] = attempt
		updates["due"] = startTime.Add(r.retryDelay * time.Duration(attempt))

	case err != nil && task.TaskType != models.ScheduledTaskTypeRecurring:
		updates["attempts"] = attempt
		updates["status"] = models.ScheduledTaskStatusFailure

	case task.TaskType == models.ScheduledTaskTypeRecurring:
		// Recurring tasks move on to the next occurrence even after a failed run.
		updates["attempts"] = 0
		nextDue := task.NextDue(startTime)
		// A next due that is not in the future means the rule is exhausted.
		if nextDue.After(task.Due) && nextDue.After(startTime) {
			updates["due"] = nextDue
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}

	default:
		updates["attempts"] = attempt
		updates["status"] = models.ScheduledTaskStatusDone
	}

	r.update(ctx, task, updates)
	return status
}

func (r *Runner) update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		log.Error().Err(err).Uint("task_id", task.ID).Msg("failed to update scheduled task")
	}
}

func (r *Runner) recordHistory(ctx context.Context, task models.ScheduledTask, runAt time.Time, runtimeMs int, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		Runtime:         runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		log.Error().Err(err).Uint("task_id", task.ID).Msg("failed to record task history")
	}
}
