package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Method string

const (
	MethodCash     Method = "CASH"
	MethodCard     Method = "CARD"
	MethodQRIS     Method = "QRIS"
	MethodTransfer Method = "TRANSFER"
)

func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case MethodCash, MethodCard, MethodQRIS, MethodTransfer:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}

// Electronic methods settle outside the till and must carry a reference.
func (m Method) Electronic() bool {
	return m != MethodCash
}

type Kind string

const (
	KindPayment Kind = "payment"
	KindRefund  Kind = "refund"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment is append-only. A refund is a separate row with a negative amount
// pointing at the payment it reverses.
type Payment struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	OrderID        snowflake.ID  `json:"order_id" gorm:"not null;index"`
	OutletID       snowflake.ID  `json:"outlet_id" gorm:"not null;index"`
	Method         Method        `json:"method" gorm:"type:text;not null"`
	Kind           Kind          `json:"kind" gorm:"type:text;not null"`
	Amount         int64         `json:"amount" gorm:"not null"`
	AmountReceived *int64        `json:"amount_received,omitempty"`
	ChangeAmount   int64         `json:"change_amount" gorm:"not null"`
	Reference      string        `json:"reference,omitempty" gorm:"type:text"`
	Reason         string        `json:"reason,omitempty" gorm:"type:text"`
	Status         Status        `json:"status" gorm:"type:text;not null"`
	RefundOf       *snowflake.ID `json:"refund_of,omitempty" gorm:"uniqueIndex:ux_payments_refund_of"`
	ProcessedBy    snowflake.ID  `json:"processed_by" gorm:"not null"`
	ProcessedAt    time.Time     `json:"processed_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

type Summary struct {
	OrderID   snowflake.ID `json:"order_id"`
	Total     int64        `json:"total"`
	Paid      int64        `json:"paid"`
	Remaining int64        `json:"remaining"`
}
