package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type StatusChange struct {
	From   Status
	To     Status
	At     time.Time
	Reason string
	Actor  *snowflake.ID
}

type ListOrderFilter struct {
	Status   Status
	BeforeID snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID) (*Order, error)
	// FindByIDForUpdate row-locks the order on databases that support it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, outletID snowflake.ID, filter ListOrderFilter) ([]*Order, error)
	ListItems(ctx context.Context, db *gorm.DB, orderIDs ...snowflake.ID) ([]OrderItem, error)
	FindItem(ctx context.Context, db *gorm.DB, orderID, itemID snowflake.ID) (*OrderItem, error)
	// UpdateStatus applies change only while the row is still in change.From.
	UpdateStatus(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID, change StatusChange) (bool, error)
	UpdateItemKitchenStatus(ctx context.Context, db *gorm.DB, orderID, itemID snowflake.ID, from, to KitchenStatus, at time.Time) (bool, error)
	UpdatePaidAmount(ctx context.Context, db *gorm.DB, id snowflake.ID, paid int64, at time.Time) error
}
