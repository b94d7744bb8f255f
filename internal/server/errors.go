package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
	paymentdomain "github.com/smallbiznis/kasir/internal/payment/domain"
	"github.com/smallbiznis/kasir/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Current   string            `json:"current,omitempty"`
	Requested string            `json:"requested,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrPaymentInProgress  = errors.New("payment_in_progress")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalPayload()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var itemErr *orderdomain.ItemError
	if errors.As(err, &itemErr) {
		code := itemErr.Err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   fmt.Sprintf("items[%d].%s", itemErr.Index, itemErr.Field),
				Code:    code,
				Message: validationErrorMessage(code),
			}},
		}
	}

	var transitionErr *orderdomain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusConflict, errorPayload{
			Type:      "invalid_transition",
			Message:   fmt.Sprintf("cannot move order from %s to %s", transitionErr.From, transitionErr.To),
			Current:   transitionErr.From,
			Requested: transitionErr.To,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, authdomain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "missing or invalid credentials",
		}
	case errors.Is(err, authdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "not allowed to access this resource",
		}
	case errors.Is(err, paymentdomain.ErrPaymentOverpay),
		errors.Is(err, paymentdomain.ErrPaymentUnderpay):
		return http.StatusUnprocessableEntity, paymentRejectedPayload(err)
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many orders, retry shortly",
		}
	case errors.Is(err, ErrPaymentInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "payment_in_progress",
			Message: "another payment for this order is in progress",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

func internalPayload() errorPayload {
	return errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func paymentRejectedPayload(err error) errorPayload {
	payload := errorPayload{
		Type:    "payment_rejected",
		Message: "payment rejected",
	}

	var overpay *paymentdomain.OverpayError
	var underpay *paymentdomain.UnderpayError
	switch {
	case errors.As(err, &overpay):
		payload.Message = fmt.Sprintf("amount %d exceeds remaining balance %d", overpay.Requested, overpay.Remaining)
		payload.Errors = []ValidationError{{Field: "amount", Code: paymentdomain.ErrPaymentOverpay.Error(), Message: payload.Message}}
	case errors.As(err, &underpay):
		payload.Message = fmt.Sprintf("amount received %d is less than amount %d", underpay.Received, underpay.Amount)
		payload.Errors = []ValidationError{{Field: "amount_received", Code: paymentdomain.ErrPaymentUnderpay.Error(), Message: payload.Message}}
	}
	return payload
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isOrderValidationError(err),
		isPaymentValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrItemNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid_page_token"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "invalid_id":
		return "id"
	case "empty_items", "invalid_quantity":
		return "items"
	case "reference_required":
		return "reference"
	case "order_cancelled", "order_has_payments", "payment_already_refunded", "payment_not_refundable":
		return ""
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "unknown_") {
		return strings.TrimPrefix(code, "unknown_") + "_id"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "order_cancelled":
		return "order is cancelled"
	case "order_has_payments":
		return "order has recorded payments, refund them first"
	case "payment_already_refunded":
		return "payment was already refunded"
	case "payment_not_refundable":
		return "payment cannot be refunded"
	case "reference_required":
		return "reference is required for non-cash payments"
	case "unknown_product", "unknown_variant", "unknown_modifier":
		return "not found in this outlet's catalog"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog reports the error type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
