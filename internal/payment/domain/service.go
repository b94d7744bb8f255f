package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
)

type AddPaymentRequest struct {
	OrderID        string       `json:"-"`
	Method         string       `json:"method"`
	Amount         int64        `json:"amount"`
	AmountReceived *int64       `json:"amount_received,omitempty"`
	Reference      string       `json:"reference,omitempty"`
	ProcessedBy    snowflake.ID `json:"-"`
}

type RefundRequest struct {
	OrderID     string       `json:"-"`
	PaymentID   string       `json:"-"`
	Reason      string       `json:"reason"`
	ProcessedBy snowflake.ID `json:"-"`
}

// PaymentResult is the recorded payment and the order as it stands after
// the transaction committed.
type PaymentResult struct {
	Payment       *Payment           `json:"payment"`
	Order         *orderdomain.Order `json:"order"`
	AutoCompleted bool               `json:"auto_completed"`
}

type Service interface {
	AddPayment(ctx context.Context, req AddPaymentRequest) (*PaymentResult, error)
	Refund(ctx context.Context, req RefundRequest) (*PaymentResult, error)
	List(ctx context.Context, orderID string) ([]Payment, error)
	Summary(ctx context.Context, orderID string) (*Summary, error)
}
