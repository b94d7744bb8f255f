package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/catalog/domain"
	"gorm.io/gorm"
)

type lookup struct{}

func Provide() domain.PriceLookup {
	return &lookup{}
}

func (l *lookup) Resolve(ctx context.Context, db *gorm.DB, outletID snowflake.ID, ref domain.ItemRef) (domain.ResolvedItem, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, outlet_id, name, price, active, created_at, updated_at
		 FROM products WHERE outlet_id = ? AND id = ? AND active = ?`,
		outletID,
		ref.ProductID,
		true,
	).Scan(&product).Error
	if err != nil {
		return domain.ResolvedItem{}, err
	}
	if product.ID == 0 {
		return domain.ResolvedItem{}, domain.ErrUnknownProduct
	}

	item := domain.ResolvedItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
	}

	if ref.VariantID != nil {
		var variant domain.ProductVariant
		err := db.WithContext(ctx).Raw(
			`SELECT id, product_id, name, price, active, created_at, updated_at
			 FROM product_variants WHERE product_id = ? AND id = ? AND active = ?`,
			product.ID,
			*ref.VariantID,
			true,
		).Scan(&variant).Error
		if err != nil {
			return domain.ResolvedItem{}, err
		}
		if variant.ID == 0 {
			return domain.ResolvedItem{}, domain.ErrUnknownVariant
		}
		variantID := variant.ID
		item.VariantID = &variantID
		item.VariantName = variant.Name
		item.UnitPrice = variant.Price
	}

	if len(ref.ModifierIDs) == 0 {
		return item, nil
	}

	var modifiers []domain.ProductModifier
	err = db.WithContext(ctx).
		Model(&domain.ProductModifier{}).
		Where("outlet_id = ? AND id IN ? AND active = ?", outletID, ref.ModifierIDs, true).
		Find(&modifiers).Error
	if err != nil {
		return domain.ResolvedItem{}, err
	}
	byID := make(map[snowflake.ID]domain.ProductModifier, len(modifiers))
	for _, m := range modifiers {
		byID[m.ID] = m
	}

	// keep request order; a repeated modifier is charged each time
	item.Modifiers = make([]domain.ResolvedModifier, 0, len(ref.ModifierIDs))
	for _, id := range ref.ModifierIDs {
		m, ok := byID[id]
		if !ok {
			return domain.ResolvedItem{}, domain.ErrUnknownModifier
		}
		item.Modifiers = append(item.Modifiers, domain.ResolvedModifier{ID: m.ID, Name: m.Name, Price: m.Price})
		item.UnitPrice += m.Price
	}

	return item, nil
}
