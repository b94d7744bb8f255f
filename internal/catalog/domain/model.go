package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a sellable menu item. Rows are owned by the menu service; this
// core only reads them when an order is created.
type Product struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OutletID  snowflake.ID `json:"outlet_id" gorm:"not null;index"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Price     int64        `json:"price" gorm:"not null"`
	Active    bool         `json:"active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// ProductVariant replaces the product's base price when chosen.
type ProductVariant struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID snowflake.ID `json:"product_id" gorm:"not null;index"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Price     int64        `json:"price" gorm:"not null"`
	Active    bool         `json:"active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (ProductVariant) TableName() string { return "product_variants" }

// ProductModifier is an add-on whose price is added to the unit price.
type ProductModifier struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	OutletID  snowflake.ID `json:"outlet_id" gorm:"not null;index"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Price     int64        `json:"price" gorm:"not null"`
	Active    bool         `json:"active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (ProductModifier) TableName() string { return "product_modifiers" }

// ItemRef names the catalog rows a requested order line refers to.
type ItemRef struct {
	ProductID   snowflake.ID
	VariantID   *snowflake.ID
	ModifierIDs []snowflake.ID
}

type ResolvedModifier struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Price int64        `json:"price"`
}

// ResolvedItem is the price snapshot copied onto an order item.
type ResolvedItem struct {
	ProductID   snowflake.ID
	ProductName string
	VariantID   *snowflake.ID
	VariantName string
	Modifiers   []ResolvedModifier
	UnitPrice   int64
}
