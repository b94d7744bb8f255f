package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOutlet        = errors.New("invalid_outlet")
	ErrInvalidCashier       = errors.New("invalid_cashier")
	ErrInvalidOrderType     = errors.New("invalid_order_type")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidKitchenStatus = errors.New("invalid_kitchen_status")
	ErrEmptyItems           = errors.New("empty_items")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidDiscount      = errors.New("invalid_discount")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("order_not_found")
	ErrItemNotFound         = errors.New("order_item_not_found")
	ErrOrderCancelled       = errors.New("order_cancelled")
	ErrOrderHasPayments     = errors.New("order_has_payments")
	ErrInvalidTransition    = errors.New("invalid_transition")
)

// InvalidTransitionError carries the current and requested states.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ItemError pins a validation failure to one requested line.
type ItemError struct {
	Index int
	Field string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("items[%d].%s: %v", e.Index, e.Field, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
