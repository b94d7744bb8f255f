package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, orderID, id snowflake.ID) (*Payment, error)
	FindRefundOf(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*Payment, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Payment, error)
	// SumSucceeded totals every non-failed row for the order, refunds included.
	SumSucceeded(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error)
}
