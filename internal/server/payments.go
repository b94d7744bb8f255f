package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	paymentdomain "github.com/smallbiznis/kasir/internal/payment/domain"
)

func (s *Server) AddPayment(c *gin.Context) {
	var req paymentdomain.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claims, _ := authdomain.ClaimsFromContext(c.Request.Context())
	req.OrderID = strings.TrimSpace(c.Param("order_id"))
	req.ProcessedBy = claims.UserID

	resp, err := s.paymentSvc.AddPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	ctx := c.Request.Context()

	summary, err := s.paymentSvc.Summary(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	payments, err := s.paymentSvc.List(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if payments == nil {
		payments = []paymentdomain.Payment{}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"payments": payments,
		"summary":  summary,
	}})
}

type refundPaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RefundPayment(c *gin.Context) {
	var req refundPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	claims, _ := authdomain.ClaimsFromContext(c.Request.Context())
	resp, err := s.paymentSvc.Refund(c.Request.Context(), paymentdomain.RefundRequest{
		OrderID:     strings.TrimSpace(c.Param("order_id")),
		PaymentID:   strings.TrimSpace(c.Param("payment_id")),
		Reason:      strings.TrimSpace(req.Reason),
		ProcessedBy: claims.UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrReferenceRequired),
		errors.Is(err, paymentdomain.ErrInvalidProcessedBy),
		errors.Is(err, paymentdomain.ErrAlreadyRefunded),
		errors.Is(err, paymentdomain.ErrNotRefundable):
		return true
	default:
		return false
	}
}
