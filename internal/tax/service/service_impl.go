package service

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	Repository taxdomain.Repository
}

type resolver struct {
	repo taxdomain.Repository
}

func NewResolver(p ResolverParams) taxdomain.TaxResolver {
	return &resolver{repo: p.Repository}
}

func (r *resolver) ResolveForOrder(ctx context.Context, db *gorm.DB, outletID snowflake.ID) (*taxdomain.TaxDefinition, error) {
	def, err := r.repo.GetActiveTaxDefinition(ctx, db, outletID)
	if err != nil {
		return nil, err
	}
	if def == nil || def.Rate == nil || *def.Rate <= 0 {
		return nil, nil
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// ComputeTaxExclusive calculates tax added on top of the taxable base.
// Rounding happens only here to keep stored values integer-safe.
func ComputeTaxExclusive(base int64, rate *float64) int64 {
	if base <= 0 || rate == nil || *rate <= 0 {
		return 0
	}

	tax := float64(base) * (*rate)
	result := int64(math.Round(tax))
	if result < 0 {
		return 0
	}
	return result
}
