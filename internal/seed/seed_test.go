package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/kasir/internal/catalog/domain"
	"github.com/smallbiznis/kasir/internal/migration"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	"github.com/smallbiznis/kasir/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDemoCatalogIsIdempotent(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Run(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	res, err := EnsureDemoCatalog(ctx, conn, node, 10, now)
	require.NoError(t, err)
	assert.Equal(t, len(demoProducts), res.Products)
	assert.Equal(t, 4, res.Variants)
	assert.Equal(t, len(demoModifiers), res.Modifiers)
	assert.True(t, res.Tax)

	again, err := EnsureDemoCatalog(ctx, conn, node, 10, now)
	require.NoError(t, err)
	assert.Equal(t, Result{}, again)

	var products int64
	require.NoError(t, conn.Model(&catalogdomain.Product{}).Where("outlet_id = ?", 10).Count(&products).Error)
	assert.Equal(t, int64(len(demoProducts)), products)

	var def taxdomain.TaxDefinition
	require.NoError(t, conn.Where("outlet_id = ?", 10).First(&def).Error)
	require.NoError(t, def.Validate())
	require.NotNil(t, def.Rate)
	assert.InDelta(t, 0.11, *def.Rate, 1e-9)
}

func TestEnsureDemoCatalogRequiresOutlet(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	_, err = EnsureDemoCatalog(context.Background(), conn, node, 0, time.Now())
	assert.Error(t, err)
}
