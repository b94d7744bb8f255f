package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() taxdomain.Repository {
	return &repository{}
}

func (r *repository) GetActiveTaxDefinition(ctx context.Context, db *gorm.DB, outletID snowflake.ID) (*taxdomain.TaxDefinition, error) {
	var def taxdomain.TaxDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT id, outlet_id, name, code, tax_mode, rate, is_enabled, created_at, updated_at
		 FROM tax_definitions
		 WHERE outlet_id = ? AND is_enabled = ? AND tax_mode = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		outletID,
		true,
		taxdomain.TaxModeExclusive,
	).Scan(&def).Error
	if err != nil {
		return nil, err
	}
	if def.ID == 0 {
		return nil, nil
	}
	return &def, nil
}
