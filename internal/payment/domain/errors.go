package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidMethod      = errors.New("invalid_method")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrReferenceRequired  = errors.New("reference_required")
	ErrPaymentOverpay     = errors.New("payment_overpay")
	ErrPaymentUnderpay    = errors.New("payment_underpay")
	ErrPaymentNotFound    = errors.New("payment_not_found")
	ErrAlreadyRefunded    = errors.New("payment_already_refunded")
	ErrNotRefundable      = errors.New("payment_not_refundable")
	ErrInvalidProcessedBy = errors.New("invalid_processed_by")
)

// OverpayError reports how much the order could still accept.
type OverpayError struct {
	Requested int64
	Remaining int64
}

func (e *OverpayError) Error() string {
	return fmt.Sprintf("payment_overpay: requested %d, remaining %d", e.Requested, e.Remaining)
}

func (e *OverpayError) Is(target error) bool { return target == ErrPaymentOverpay }

// UnderpayError reports a cash tender smaller than the amount due.
type UnderpayError struct {
	Amount   int64
	Received int64
}

func (e *UnderpayError) Error() string {
	return fmt.Sprintf("payment_underpay: amount %d, received %d", e.Amount, e.Received)
}

func (e *UnderpayError) Is(target error) bool { return target == ErrPaymentUnderpay }
