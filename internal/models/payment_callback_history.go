package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayMollie   PaymentGateway = "mollie"
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
)

// PaymentCallbackHistory is the audit trail of inbound webhook deliveries.
type PaymentCallbackHistory struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PaymentGateway  PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	RemotePaymentID string          `gorm:"type:varchar(100);index" json:"remote_payment_id"`
	OrderID         *uint           `gorm:"index" json:"order_id"`
	RemoteStatus    string          `gorm:"type:varchar(50)" json:"remote_status"`
	Outcome         string          `gorm:"type:varchar(50)" json:"outcome"`
	Metadata        datatypes.JSON  `json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}
