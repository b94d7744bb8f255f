package seed

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(seedDemoCatalog),
)

func seedDemoCatalog(cfg config.Config, conn *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
	raw := strings.TrimSpace(cfg.SeedDemoOutletID)
	if raw == "" {
		return nil
	}
	outletID, err := snowflake.ParseString(raw)
	if err != nil {
		return err
	}

	res, err := EnsureDemoCatalog(context.Background(), conn, node, outletID, clk.Now().UTC())
	if err != nil {
		return err
	}
	if res.Products > 0 {
		log.Info("seeded demo catalog",
			zap.String("outlet_id", outletID.String()),
			zap.Int("products", res.Products),
			zap.Int("variants", res.Variants),
			zap.Int("modifiers", res.Modifiers),
			zap.Bool("tax", res.Tax),
		)
	}
	return nil
}
