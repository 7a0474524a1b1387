package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/models"
)

// Ledger persists the order to remote payment mapping.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Find returns the payment record of an order, or nil when the order has none.
func (l *Ledger) Find(ctx context.Context, orderID uint) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := l.db.WithContext(ctx).Where("order_id = ?", orderID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find payment for order %d: %w", orderID, err)
	}
	return &rec, nil
}

// FindByRemoteID returns the record holding a remote payment id.
func (l *Ledger) FindByRemoteID(ctx context.Context, remoteID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := l.db.WithContext(ctx).Where("remote_payment_id = ?", remoteID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRecordNotFound
		}
		return nil, fmt.Errorf("find payment %s: %w", remoteID, err)
	}
	return &rec, nil
}

// Create inserts rec unless the order already has a record, in which case
// apperr.ErrPaymentExists is returned and the existing row is left untouched.
func (l *Ledger) Create(ctx context.Context, rec *models.PaymentRecord) error {
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(rec)
	if result.Error != nil {
		return fmt.Errorf("create payment for order %d: %w", rec.OrderID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrPaymentExists
	}
	return nil
}

// UpdateStatus stores the last remote status seen for a payment.
// Writing the same status again succeeds.
func (l *Ledger) UpdateStatus(ctx context.Context, remoteID, status string) error {
	result := l.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("remote_payment_id = ?", remoteID).
		Update("remote_status", status)
	if result.Error != nil {
		return fmt.Errorf("update payment %s: %w", remoteID, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrRecordNotFound
	}
	return nil
}

// ListAwaiting returns records whose order is still in awaitingStatus and that
// were created before olderThan, oldest first.
func (l *Ledger) ListAwaiting(ctx context.Context, awaitingStatus string, olderThan time.Time, limit int) ([]models.PaymentRecord, error) {
	var recs []models.PaymentRecord
	err := l.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = payment_records.order_id AND orders.deleted_at IS NULL").
		Where("orders.status = ? AND payment_records.created_at < ?", awaitingStatus, olderThan).
		Order("payment_records.created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list awaiting payments: %w", err)
	}
	return recs, nil
}
