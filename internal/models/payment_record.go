package models

import (
	"time"
)

// PaymentRecord links a local order to its remote gateway payment.
// There is at most one record per order, and RemotePaymentID never changes
// after creation. Records are never deleted so a reinstall cannot double-charge.
type PaymentRecord struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OrderID         uint           `gorm:"uniqueIndex;not null" json:"order_id"`
	PaymentGateway  PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	Method          string         `gorm:"type:varchar(50)" json:"method"`
	RemotePaymentID string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"remote_payment_id"`
	RemoteStatus    string         `gorm:"type:varchar(50)" json:"remote_status"`
	CheckoutURL     string         `gorm:"type:text" json:"checkout_url"`
	// WebhookEnabled is false when the payment was created without a webhook URL
	// and only the return page or the sweep can reconcile it.
	WebhookEnabled bool      `json:"webhook_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
