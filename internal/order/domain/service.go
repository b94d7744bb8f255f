package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/pkg/db/pagination"
)

type CreateItemRequest struct {
	ProductID   string   `json:"product_id"`
	VariantID   string   `json:"variant_id,omitempty"`
	ModifierIDs []string `json:"modifier_ids,omitempty"`
	Quantity    int64    `json:"quantity"`
	Note        string   `json:"note,omitempty"`
}

type CreateOrderRequest struct {
	CashierID snowflake.ID        `json:"-"`
	Type      string              `json:"type"`
	Discount  int64               `json:"discount"`
	Note      string              `json:"note,omitempty"`
	Items     []CreateItemRequest `json:"items"`
}

type ListOrderRequest struct {
	Status    string
	PageToken string
	PageSize  int
}

type ListOrderResponse struct {
	pagination.PageInfo
	Orders []*Order `json:"orders"`
}

type UpdateStatusRequest struct {
	OrderID string
	Status  string
	ActorID snowflake.ID
}

type CancelOrderRequest struct {
	OrderID string
	Reason  string
	ActorID snowflake.ID
}

type UpdateItemKitchenStatusRequest struct {
	OrderID string
	ItemID  string
	Status  string
}

// Service operates on the outlet carried by the request context.
type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	Get(ctx context.Context, orderID string) (*Order, error)
	List(ctx context.Context, req ListOrderRequest) (ListOrderResponse, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*Order, error)
	Cancel(ctx context.Context, req CancelOrderRequest) (*Order, error)
	UpdateItemKitchenStatus(ctx context.Context, req UpdateItemKitchenStatusRequest) (*OrderItem, error)
}
