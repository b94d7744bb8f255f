package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/kasir/internal/catalog/domain"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	"gorm.io/gorm"
)

type demoProduct struct {
	name     string
	price    int64
	variants []demoVariant
}

type demoVariant struct {
	name  string
	price int64
}

var demoProducts = []demoProduct{
	{name: "Kopi Susu", price: 18000, variants: []demoVariant{{"Regular", 18000}, {"Large", 22000}}},
	{name: "Americano", price: 20000},
	{name: "Teh Tarik", price: 15000},
	{name: "Roti Bakar", price: 15000},
	{name: "Nasi Goreng", price: 28000, variants: []demoVariant{{"Biasa", 28000}, {"Spesial", 35000}}},
}

var demoModifiers = []struct {
	name  string
	price int64
}{
	{"Extra Shot", 5000},
	{"Less Sugar", 0},
	{"Telur Ceplok", 4000},
}

const demoTaxRate = 0.11

// Result reports what EnsureDemoCatalog wrote.
type Result struct {
	Products  int
	Variants  int
	Modifiers int
	Tax       bool
}

// EnsureDemoCatalog seeds a small menu and an 11% exclusive tax for an
// outlet that has no products yet. It is a no-op otherwise.
func EnsureDemoCatalog(ctx context.Context, db *gorm.DB, node *snowflake.Node, outletID snowflake.ID, now time.Time) (Result, error) {
	if db == nil || node == nil {
		return Result{}, errors.New("seed database handle and id generator are required")
	}
	if outletID == 0 {
		return Result{}, errors.New("seed outlet id is required")
	}

	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&catalogdomain.Product{}).Where("outlet_id = ?", outletID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		for _, p := range demoProducts {
			product := catalogdomain.Product{
				ID:        node.Generate(),
				OutletID:  outletID,
				Name:      p.name,
				Price:     p.price,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			res.Products++

			for _, v := range p.variants {
				variant := catalogdomain.ProductVariant{
					ID:        node.Generate(),
					ProductID: product.ID,
					Name:      v.name,
					Price:     v.price,
					Active:    true,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := tx.Create(&variant).Error; err != nil {
					return err
				}
				res.Variants++
			}
		}

		for _, m := range demoModifiers {
			modifier := catalogdomain.ProductModifier{
				ID:        node.Generate(),
				OutletID:  outletID,
				Name:      m.name,
				Price:     m.price,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&modifier).Error; err != nil {
				return err
			}
			res.Modifiers++
		}

		var taxCount int64
		if err := tx.Model(&taxdomain.TaxDefinition{}).Where("outlet_id = ?", outletID).Count(&taxCount).Error; err != nil {
			return err
		}
		if taxCount > 0 {
			return nil
		}
		rate := demoTaxRate
		def := taxdomain.TaxDefinition{
			ID:        node.Generate(),
			OutletID:  outletID,
			Name:      "PPN",
			Code:      "PPN",
			TaxMode:   taxdomain.TaxModeExclusive,
			Rate:      &rate,
			IsEnabled: true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&def).Error; err != nil {
			return err
		}
		res.Tax = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
