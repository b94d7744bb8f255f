package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	ledgerdomain "github.com/smallbiznis/kasir/internal/ledger/domain"
	"github.com/smallbiznis/kasir/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (ledgerdomain.Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)),
		Config: config.Config{Currency: "IDR"},
	})
	return svc, conn
}

func salePosting(sourceID snowflake.ID, amount int64) ledgerdomain.Posting {
	return ledgerdomain.Posting{
		OutletID:   10,
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   sourceID,
		OccurredAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		Lines: []ledgerdomain.PostingLine{
			{Account: ledgerdomain.AccountCodeCash, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: amount},
			{Account: ledgerdomain.AccountCodeSales, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: amount},
		},
	}
}

func TestPostTxWritesBalancedEntryOnce(t *testing.T) {
	svc, conn := newTestLedger(t)
	ctx := context.Background()

	var inserted bool
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = svc.PostTx(ctx, tx, salePosting(500, 50000))
		return err
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	err = conn.Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = svc.PostTx(ctx, tx, salePosting(500, 50000))
		return err
	})
	require.NoError(t, err)
	assert.False(t, inserted, "same source must not post twice")

	cash, err := svc.Balance(ctx, 10, ledgerdomain.AccountCodeCash)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), cash)

	sales, err := svc.Balance(ctx, 10, ledgerdomain.AccountCodeSales)
	require.NoError(t, err)
	assert.Equal(t, int64(-50000), sales)

	var lines int64
	require.NoError(t, conn.Model(&ledgerdomain.LedgerEntryLine{}).Count(&lines).Error)
	assert.Equal(t, int64(2), lines)
}

func TestPostTxRejectsUnbalanced(t *testing.T) {
	svc, conn := newTestLedger(t)

	posting := salePosting(501, 1000)
	posting.Lines[1].Amount = 900

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.PostTx(context.Background(), tx, posting)
		return err
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrUnbalancedEntry)

	var entries int64
	require.NoError(t, conn.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestPostTxRollsBackWithCaller(t *testing.T) {
	svc, conn := newTestLedger(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.PostTx(context.Background(), tx, salePosting(502, 1000)); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	var entries int64
	require.NoError(t, conn.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}
