package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	GetActiveTaxDefinition(ctx context.Context, db *gorm.DB, outletID snowflake.ID) (*TaxDefinition, error)
}

// TaxResolver returns the tax definition that applies to a new order, or nil
// when the outlet charges no tax.
type TaxResolver interface {
	ResolveForOrder(ctx context.Context, db *gorm.DB, outletID snowflake.ID) (*TaxDefinition, error)
}
