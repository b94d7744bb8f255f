package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PriceLookup resolves current catalog prices. db may be a transaction.
type PriceLookup interface {
	Resolve(ctx context.Context, db *gorm.DB, outletID snowflake.ID, ref ItemRef) (ResolvedItem, error)
}

var (
	ErrUnknownProduct  = errors.New("unknown_product")
	ErrUnknownVariant  = errors.New("unknown_variant")
	ErrUnknownModifier = errors.New("unknown_modifier")
)
