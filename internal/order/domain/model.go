package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Order totals are frozen at creation: Total = Subtotal - Discount + Tax.
type Order struct {
	ID           snowflake.ID  `json:"id" gorm:"primaryKey"`
	OutletID     snowflake.ID  `json:"outlet_id" gorm:"not null;index"`
	Type         OrderType     `json:"type" gorm:"type:text;not null"`
	Status       Status        `json:"status" gorm:"type:text;not null;index"`
	Subtotal     int64         `json:"subtotal" gorm:"not null"`
	Discount     int64         `json:"discount" gorm:"not null"`
	Tax          int64         `json:"tax" gorm:"not null"`
	TaxRate      *float64      `json:"tax_rate,omitempty" gorm:"type:numeric(6,4)"`
	Total        int64         `json:"total" gorm:"not null"`
	PaidAmount   int64         `json:"paid_amount" gorm:"not null"`
	Note         string        `json:"note,omitempty" gorm:"type:text"`
	CreatedBy    snowflake.ID  `json:"created_by" gorm:"not null"`
	CancelReason string        `json:"cancel_reason,omitempty" gorm:"type:text"`
	CancelledBy  *snowflake.ID `json:"cancelled_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time     `json:"updated_at" gorm:"not null"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	CancelledAt  *time.Time    `json:"cancelled_at,omitempty"`
	Items        []OrderItem   `json:"items,omitempty" gorm:"-"`
}

func (Order) TableName() string { return "orders" }

// Remaining is the balance still owed.
func (o Order) Remaining() int64 {
	if o.PaidAmount >= o.Total {
		return 0
	}
	return o.Total - o.PaidAmount
}

// OrderItem holds a price snapshot. UnitPrice and Modifiers are copied from
// the catalog at creation and never re-derived.
type OrderItem struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrderID       snowflake.ID   `json:"order_id" gorm:"not null;index"`
	ProductID     snowflake.ID   `json:"product_id" gorm:"not null"`
	VariantID     *snowflake.ID  `json:"variant_id,omitempty"`
	ProductName   string         `json:"product_name" gorm:"type:text;not null"`
	VariantName   string         `json:"variant_name,omitempty" gorm:"type:text"`
	Modifiers     datatypes.JSON `json:"modifiers,omitempty" gorm:"type:jsonb"`
	Quantity      int64          `json:"quantity" gorm:"not null"`
	UnitPrice     int64          `json:"unit_price" gorm:"not null"`
	Subtotal      int64          `json:"subtotal" gorm:"not null"`
	KitchenStatus KitchenStatus  `json:"kitchen_status" gorm:"type:text;not null"`
	Note          string         `json:"note,omitempty" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }
