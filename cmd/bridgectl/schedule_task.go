package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mollie_bridge_echo/internal/models"
)

func scheduleTaskCmd() *cobra.Command {
	var (
		taskName   string
		argsStr    string
		dueStr     string
		recurring  string
		maxAttempt int
	)

	cmd := &cobra.Command{
		Use:   "schedule-task",
		Short: "Create a scheduled task for the worker",
		Example: `  bridgectl schedule-task --task-name send_notification \
    --arguments '{"order_id":42,"comment":"Payment received"}' --due "2026-03-02 10:00"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
				return fmt.Errorf("invalid JSON arguments: %w", err)
			}

			due, err := parseDue(dueStr, time.Local)
			if err != nil {
				return err
			}

			var recurringPtr *string
			if recurring != "" {
				recurringPtr = &recurring
			}

			task, err := models.NewScheduledTask(taskName, args, due, recurringPtr, maxAttempt)
			if err != nil {
				return err
			}

			db, err := openDB(loadConfig())
			if err != nil {
				return err
			}
			if err := db.WithContext(cmd.Context()).Create(task).Error; err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Successfully created task ID: %d\n", task.ID)
			fmt.Fprintf(out, "Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskName, "task-name", "", "Name of the task")
	cmd.Flags().StringVar(&argsStr, "arguments", "{}", "JSON arguments for the task")
	cmd.Flags().StringVar(&dueStr, "due", "", "Due date (2006-01-02 15:04 local time, or RFC3339)")
	cmd.Flags().StringVar(&recurring, "recurring", "", "RRULE for recurring tasks")
	cmd.Flags().IntVar(&maxAttempt, "max-attempt", 3, "Max attempts")
	_ = cmd.MarkFlagRequired("task-name")
	_ = cmd.MarkFlagRequired("due")

	return cmd
}

// parseDue accepts RFC3339 or "2006-01-02 15:04" in loc.
func parseDue(value string, loc *time.Location) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, value); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q: use '2006-01-02 15:04' or RFC3339", value)
	}
	return due, nil
}
