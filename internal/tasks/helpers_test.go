package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mollie_bridge_echo/internal/models"
	"mollie_bridge_echo/internal/services"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, services.AutoMigrate(db))
	return db
}

func newTestRunner(db *gorm.DB, registry *Registry, now *time.Time) *Runner {
	r := NewRunner(db, registry, 5*time.Minute)
	r.now = func() time.Time { return *now }
	return r
}

func createTask(t *testing.T, db *gorm.DB, name string, args interface{}, due time.Time, rule *string, maxAttempt int) *models.ScheduledTask {
	t.Helper()
	task, err := models.NewScheduledTask(name, args, due, rule, maxAttempt)
	require.NoError(t, err)
	require.NoError(t, db.Create(task).Error)
	return task
}

func reload(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func histories(t *testing.T, db *gorm.DB, taskID uint) []models.ScheduledTaskHistory {
	t.Helper()
	var out []models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", taskID).Order("id ASC").Find(&out).Error)
	return out
}

type sentNotification struct {
	orderID uint
	subject string
	body    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, order *models.Order, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{orderID: order.ID, subject: subject, body: body})
	return nil
}

type fakeSweeper struct {
	olderThan time.Time
	limit     int
	counts    map[string]int
	err       error
}

func (f *fakeSweeper) SweepAwaiting(ctx context.Context, olderThan time.Time, limit int) (map[string]int, error) {
	f.olderThan = olderThan
	f.limit = limit
	return f.counts, f.err
}
