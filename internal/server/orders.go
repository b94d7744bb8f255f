package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	"github.com/smallbiznis/kasir/internal/authorization"
	catalogdomain "github.com/smallbiznis/kasir/internal/catalog/domain"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
)

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	claims, _ := authdomain.ClaimsFromContext(c.Request.Context())
	req.CashierID = claims.UserID

	resp, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		Status    string `form:"status"`
		PageToken string `form:"page_token"`
		PageSize  string `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	pageSize, err := parseOptionalInt(query.PageSize)
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page size"))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrderRequest{
		Status:    strings.TrimSpace(query.Status),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("order_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := strings.TrimSpace(req.Status)
	// Cancelling through the status route needs the same grant as /cancel.
	if strings.EqualFold(status, string(orderdomain.StatusCancelled)) {
		if err := s.authorizeOutletActionWithContext(c, authorization.ObjectOrder, authorization.ActionOrderCancel); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	claims, _ := authdomain.ClaimsFromContext(c.Request.Context())
	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), orderdomain.UpdateStatusRequest{
		OrderID: strings.TrimSpace(c.Param("order_id")),
		Status:  status,
		ActorID: claims.UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	claims, _ := authdomain.ClaimsFromContext(c.Request.Context())
	resp, err := s.orderSvc.Cancel(c.Request.Context(), orderdomain.CancelOrderRequest{
		OrderID: strings.TrimSpace(c.Param("order_id")),
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: claims.UserID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateKitchenStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateItemKitchenStatus(c *gin.Context) {
	var req updateKitchenStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.UpdateItemKitchenStatus(c.Request.Context(), orderdomain.UpdateItemKitchenStatusRequest{
		OrderID: strings.TrimSpace(c.Param("order_id")),
		ItemID:  strings.TrimSpace(c.Param("item_id")),
		Status:  strings.TrimSpace(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isOrderValidationError(err error) bool {
	var itemErr *orderdomain.ItemError
	if errors.As(err, &itemErr) {
		return true
	}
	switch {
	case errors.Is(err, orderdomain.ErrInvalidOutlet),
		errors.Is(err, orderdomain.ErrInvalidCashier),
		errors.Is(err, orderdomain.ErrInvalidOrderType),
		errors.Is(err, orderdomain.ErrInvalidStatus),
		errors.Is(err, orderdomain.ErrInvalidKitchenStatus),
		errors.Is(err, orderdomain.ErrEmptyItems),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, orderdomain.ErrInvalidDiscount),
		errors.Is(err, orderdomain.ErrInvalidID),
		errors.Is(err, orderdomain.ErrOrderCancelled),
		errors.Is(err, orderdomain.ErrOrderHasPayments),
		errors.Is(err, catalogdomain.ErrUnknownProduct),
		errors.Is(err, catalogdomain.ErrUnknownVariant),
		errors.Is(err, catalogdomain.ErrUnknownModifier):
		return true
	default:
		return false
	}
}
