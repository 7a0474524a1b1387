package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the storefront order paid through the gateway. Total is expressed
// in the store currency; Currency is the currency the customer saw.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Total           decimal.Decimal `gorm:"type:numeric(15,4);not null" json:"total"`
	Currency        string          `gorm:"type:varchar(3)" json:"currency"`
	Status          string          `gorm:"type:varchar(50);index" json:"status"`
	CustomerSegment string          `gorm:"type:varchar(50)" json:"customer_segment"`

	CustomerName  string `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail string `gorm:"type:varchar(255)" json:"customer_email"`
	CustomerPhone string `gorm:"type:varchar(50)" json:"customer_phone"`

	PaymentAddress  string `gorm:"type:varchar(255)" json:"payment_address"`
	PaymentCity     string `gorm:"type:varchar(128)" json:"payment_city"`
	PaymentZone     string `gorm:"type:varchar(128)" json:"payment_zone"`
	PaymentPostcode string `gorm:"type:varchar(20)" json:"payment_postcode"`
	PaymentCountry  string `gorm:"type:varchar(2)" json:"payment_country"`

	ShippingAddress  string `gorm:"type:varchar(255)" json:"shipping_address"`
	ShippingCity     string `gorm:"type:varchar(128)" json:"shipping_city"`
	ShippingZone     string `gorm:"type:varchar(128)" json:"shipping_zone"`
	ShippingPostcode string `gorm:"type:varchar(20)" json:"shipping_postcode"`
	ShippingCountry  string `gorm:"type:varchar(2)" json:"shipping_country"`

	Histories []OrderHistory `gorm:"foreignKey:OrderID" json:"histories,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// HasShippingAddress reports whether the order ships to a separate address.
func (o Order) HasShippingAddress() bool {
	return o.ShippingAddress != "" || o.ShippingCity != ""
}

// OrderHistory is one status change of an order with its audit comment.
type OrderHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	Status    string    `gorm:"type:varchar(50);not null" json:"status"`
	Comment   string    `gorm:"type:text" json:"comment"`
	Notify    bool      `json:"notify"`
	CreatedAt time.Time `json:"created_at"`
}
