package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TaxMode represents how tax is applied to the order total.
type TaxMode string

const (
	TaxModeExclusive TaxMode = "exclusive" // subtotal - discount + tax
)

// TaxDefinition is an outlet-scoped tax rate. Definitions are maintained by
// the back office; orders only read the active one at creation time.
type TaxDefinition struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	OutletID snowflake.ID `gorm:"column:outlet_id;not null;index"`

	Name    string   `gorm:"type:text;not null"`
	Code    string   `gorm:"type:text;not null"`
	TaxMode TaxMode  `gorm:"column:tax_mode;type:text;not null"`
	Rate    *float64 `gorm:"type:numeric(6,4)"` // fraction (e.g. 0.1100 for 11%)

	IsEnabled bool `gorm:"column:is_enabled;not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TaxDefinition) TableName() string { return "tax_definitions" }

func (t *TaxDefinition) Validate() error {
	if t.Code == "" {
		return ErrInvalidTaxCode
	}
	if t.TaxMode != TaxModeExclusive {
		return ErrInvalidTaxMode
	}
	if t.Rate != nil && *t.Rate < 0 {
		return ErrInvalidTaxRate
	}
	return nil
}
