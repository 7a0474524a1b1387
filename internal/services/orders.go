package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/models"
)

// NotificationArgs are the arguments of a send_notification task.
type NotificationArgs struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// notificationMaxAttempt bounds delivery retries of customer notifications.
const notificationMaxAttempt = 3

// OrderStore reads orders and applies status changes with their history.
type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Get loads an order by id.
func (s *OrderStore) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return &order, nil
}

// Transition moves an order from one status to another in a single conditional
// update. If the order is no longer in from, nothing is written and
// apperr.ErrStatusChanged is returned. With notify set, a customer notification
// task is queued in the same transaction.
func (s *OrderStore) Transition(ctx context.Context, id uint, from, to, comment string, notify bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrStatusChanged
		}
		return addHistory(tx, id, to, comment, notify)
	})
}

// Histories returns the status history of an order, oldest first.
func (s *OrderStore) Histories(ctx context.Context, id uint) ([]models.OrderHistory, error) {
	var histories []models.OrderHistory
	err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&histories).Error
	return histories, err
}

func addHistory(tx *gorm.DB, orderID uint, status, comment string, notify bool) error {
	history := models.OrderHistory{
		OrderID: orderID,
		Status:  status,
		Comment: comment,
		Notify:  notify,
	}
	if err := tx.Create(&history).Error; err != nil {
		return err
	}
	if !notify {
		return nil
	}

	task, err := models.NewScheduledTask(models.TaskSendNotification, NotificationArgs{
		OrderID: orderID,
		Status:  status,
		Comment: comment,
	}, time.Now(), nil, notificationMaxAttempt)
	if err != nil {
		return err
	}
	return tx.Create(task).Error
}
