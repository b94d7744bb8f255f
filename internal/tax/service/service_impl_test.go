package service

import (
	"context"
	"testing"
	"time"

	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	"github.com/smallbiznis/kasir/internal/tax/repository"
	"github.com/smallbiznis/kasir/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTaxExclusive(t *testing.T) {
	rate := 0.11
	assert.Equal(t, int64(5500), ComputeTaxExclusive(50000, &rate))
	assert.Equal(t, int64(0), ComputeTaxExclusive(0, &rate))
	assert.Equal(t, int64(0), ComputeTaxExclusive(50000, nil))

	// half rounds away from zero
	tenth := 0.1
	assert.Equal(t, int64(101), ComputeTaxExclusive(1005, &tenth))
}

func TestResolveForOrderPicksEnabledOutletRate(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&taxdomain.TaxDefinition{}))

	now := time.Now().UTC()
	rate := 0.1
	zero := 0.0
	require.NoError(t, conn.Create(&taxdomain.TaxDefinition{ID: 1, OutletID: 10, Name: "Disabled", Code: "PB1", TaxMode: taxdomain.TaxModeExclusive, Rate: &rate, IsEnabled: false, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&taxdomain.TaxDefinition{ID: 2, OutletID: 10, Name: "PB1", Code: "PB1", TaxMode: taxdomain.TaxModeExclusive, Rate: &rate, IsEnabled: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&taxdomain.TaxDefinition{ID: 3, OutletID: 20, Name: "Zero", Code: "NONE", TaxMode: taxdomain.TaxModeExclusive, Rate: &zero, IsEnabled: true, CreatedAt: now, UpdatedAt: now}).Error)

	r := NewResolver(ResolverParams{Repository: repository.NewRepository()})

	def, err := r.ResolveForOrder(context.Background(), conn, 10)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.EqualValues(t, 2, def.ID)

	def, err = r.ResolveForOrder(context.Background(), conn, 20)
	require.NoError(t, err)
	assert.Nil(t, def, "zero rate means no tax")

	def, err = r.ResolveForOrder(context.Background(), conn, 30)
	require.NoError(t, err)
	assert.Nil(t, def)
}
