package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/kasir/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/kasir/internal/catalog/repository"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/events"
	"github.com/smallbiznis/kasir/internal/order/domain"
	"github.com/smallbiznis/kasir/internal/order/repository"
	"github.com/smallbiznis/kasir/internal/outletcontext"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	taxrepo "github.com/smallbiznis/kasir/internal/tax/repository"
	taxservice "github.com/smallbiznis/kasir/internal/tax/service"
	"github.com/smallbiznis/kasir/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outletA  = snowflake.ID(10)
	outletB  = snowflake.ID(20)
	cashier  = snowflake.ID(500)
	kopiID   = snowflake.ID(1)
	rotiID   = snowflake.ID(2)
	largeID  = snowflake.ID(11)
	shotID   = snowflake.ID(21)
	tehOther = snowflake.ID(3)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc       domain.Service
	db        *gorm.DB
	publisher *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.ProductVariant{},
		&catalogdomain.ProductModifier{},
		&taxdomain.TaxDefinition{},
		&domain.Order{},
		&domain.OrderItem{},
	))

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&catalogdomain.Product{ID: kopiID, OutletID: outletA, Name: "Kopi Susu", Price: 18000, Active: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&catalogdomain.Product{ID: rotiID, OutletID: outletA, Name: "Roti Bakar", Price: 15000, Active: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&catalogdomain.Product{ID: tehOther, OutletID: outletB, Name: "Teh", Price: 8000, Active: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&catalogdomain.ProductVariant{ID: largeID, ProductID: kopiID, Name: "Large", Price: 22000, Active: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&catalogdomain.ProductModifier{ID: shotID, OutletID: outletA, Name: "Extra Shot", Price: 5000, Active: true, CreatedAt: now, UpdatedAt: now}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewFakeClock(now),
		Repo:      repository.Provide(),
		Catalog:   catalogrepo.Provide(),
		Tax:       taxservice.NewResolver(taxservice.ResolverParams{Repository: taxrepo.NewRepository()}),
		Publisher: publisher,
	})
	return fixture{svc: svc, db: conn, publisher: publisher}
}

func outletCtx(id snowflake.ID) context.Context {
	return outletcontext.WithOutletID(context.Background(), id)
}

func simpleOrder() domain.CreateOrderRequest {
	return domain.CreateOrderRequest{
		CashierID: cashier,
		Type:      "dine_in",
		Items: []domain.CreateItemRequest{
			{ProductID: kopiID.String(), Quantity: 2},
			{ProductID: rotiID.String(), Quantity: 1},
		},
	}
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(outletCtx(outletA), simpleOrder())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, order.Status)
	assert.Equal(t, domain.OrderTypeDineIn, order.Type)
	assert.Equal(t, int64(51000), order.Subtotal)
	assert.Equal(t, int64(0), order.Tax)
	assert.Equal(t, int64(51000), order.Total)
	require.Len(t, order.Items, 2)
	assert.Equal(t, domain.KitchenPending, order.Items[0].KitchenStatus)
	assert.Equal(t, []events.Type{events.OrderCreated}, f.publisher.types())
}

func TestCreateAppliesDiscountThenTax(t *testing.T) {
	f := newFixture(t)
	rate := 0.1
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&taxdomain.TaxDefinition{ID: 1, OutletID: outletA, Name: "PB1", Code: "PB1", TaxMode: taxdomain.TaxModeExclusive, Rate: &rate, IsEnabled: true, CreatedAt: now, UpdatedAt: now}).Error)

	req := simpleOrder()
	req.Discount = 1000
	order, err := f.svc.Create(outletCtx(outletA), req)
	require.NoError(t, err)

	assert.Equal(t, int64(51000), order.Subtotal)
	assert.Equal(t, int64(5000), order.Tax)
	assert.Equal(t, int64(55000), order.Total)
	assert.Equal(t, order.Subtotal-order.Discount+order.Tax, order.Total)
}

func TestCreateRejectsDiscountAboveSubtotal(t *testing.T) {
	f := newFixture(t)
	req := simpleOrder()
	req.Discount = 60000
	_, err := f.svc.Create(outletCtx(outletA), req)
	assert.ErrorIs(t, err, domain.ErrInvalidDiscount)
}

func TestCreateVariantAndModifierSnapshot(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(outletCtx(outletA), domain.CreateOrderRequest{
		CashierID: cashier,
		Type:      "TAKEAWAY",
		Items: []domain.CreateItemRequest{
			{ProductID: kopiID.String(), VariantID: largeID.String(), ModifierIDs: []string{shotID.String()}, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(27000), order.Items[0].UnitPrice)
	assert.Equal(t, "Large", order.Items[0].VariantName)
	assert.JSONEq(t, `[{"id":"21","name":"Extra Shot","price":5000}]`, string(order.Items[0].Modifiers))

	require.NoError(t, f.db.Model(&catalogdomain.ProductVariant{}).Where("id = ?", largeID).Update("price", 30000).Error)

	reloaded, err := f.svc.Get(outletCtx(outletA), order.ID.String())
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, int64(27000), reloaded.Items[0].UnitPrice)
	assert.Equal(t, order.Total, reloaded.Total)
}

func TestCreateUnknownProductWritesNothing(t *testing.T) {
	f := newFixture(t)
	req := simpleOrder()
	req.Items = append(req.Items, domain.CreateItemRequest{ProductID: tehOther.String(), Quantity: 1})

	_, err := f.svc.Create(outletCtx(outletA), req)
	require.ErrorIs(t, err, catalogdomain.ErrUnknownProduct)

	var itemErr *domain.ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 2, itemErr.Index)
	assert.Equal(t, "product_id", itemErr.Field)

	var orders, items int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&domain.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Empty(t, f.publisher.types())
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), simpleOrder())
	assert.ErrorIs(t, err, domain.ErrInvalidOutlet)

	req := simpleOrder()
	req.Items = nil
	_, err = f.svc.Create(outletCtx(outletA), req)
	assert.ErrorIs(t, err, domain.ErrEmptyItems)

	req = simpleOrder()
	req.Items[1].Quantity = 0
	_, err = f.svc.Create(outletCtx(outletA), req)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	req = simpleOrder()
	req.Type = "DRIVE_THRU"
	_, err = f.svc.Create(outletCtx(outletA), req)
	assert.ErrorIs(t, err, domain.ErrInvalidOrderType)
}

func TestGetIsScopedToOutlet(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(outletCtx(outletA), simpleOrder())
	require.NoError(t, err)

	_, err = f.svc.Get(outletCtx(outletB), order.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatusFollowsEdges(t *testing.T) {
	f := newFixture(t)
	ctx := outletCtx(outletA)
	order, err := f.svc.Create(ctx, simpleOrder())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID.String(), Status: "READY"})
	var transitionErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "NEW", transitionErr.From)
	assert.Equal(t, "READY", transitionErr.To)

	for _, next := range []string{"PREPARING", "READY", "COMPLETED"} {
		updated, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID.String(), Status: next})
		require.NoError(t, err)
		assert.Equal(t, domain.Status(next), updated.Status)
	}

	reloaded, err := f.svc.Get(ctx, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, reloaded.Status)
	assert.NotNil(t, reloaded.CompletedAt)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID.String(), Status: "CANCELLED"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, []events.Type{
		events.OrderCreated,
		events.OrderStatusChanged,
		events.OrderStatusChanged,
		events.OrderStatusChanged,
	}, f.publisher.types())
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := outletCtx(outletA)
	order, err := f.svc.Create(ctx, simpleOrder())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, domain.CancelOrderRequest{OrderID: order.ID.String(), Reason: "customer left", ActorID: cashier})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "customer left", cancelled.CancelReason)

	again, err := f.svc.Cancel(ctx, domain.CancelOrderRequest{OrderID: order.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, again.Status)

	assert.Equal(t, []events.Type{events.OrderCreated, events.OrderStatusChanged}, f.publisher.types())
}

func TestCancelRejectsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := outletCtx(outletA)
	order, err := f.svc.Create(ctx, simpleOrder())
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&domain.Order{}).Where("id = ?", order.ID).Update("paid_amount", 10000).Error)

	_, err = f.svc.Cancel(ctx, domain.CancelOrderRequest{OrderID: order.ID.String()})
	assert.ErrorIs(t, err, domain.ErrOrderHasPayments)
}

func TestKitchenStatusOnlyMovesForward(t *testing.T) {
	f := newFixture(t)
	ctx := outletCtx(outletA)
	order, err := f.svc.Create(ctx, simpleOrder())
	require.NoError(t, err)
	itemID := order.Items[0].ID.String()

	item, err := f.svc.UpdateItemKitchenStatus(ctx, domain.UpdateItemKitchenStatusRequest{OrderID: order.ID.String(), ItemID: itemID, Status: "READY"})
	require.NoError(t, err)
	assert.Equal(t, domain.KitchenReady, item.KitchenStatus)

	_, err = f.svc.UpdateItemKitchenStatus(ctx, domain.UpdateItemKitchenStatusRequest{OrderID: order.ID.String(), ItemID: itemID, Status: "PREPARING"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Cancel(ctx, domain.CancelOrderRequest{OrderID: order.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.UpdateItemKitchenStatus(ctx, domain.UpdateItemKitchenStatusRequest{OrderID: order.ID.String(), ItemID: order.Items[1].ID.String(), Status: "PREPARING"})
	assert.ErrorIs(t, err, domain.ErrOrderCancelled)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := outletCtx(outletA)
	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		order, err := f.svc.Create(ctx, simpleOrder())
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}
	_, err := f.svc.Create(outletCtx(outletB), domain.CreateOrderRequest{
		CashierID: cashier,
		Type:      "TAKEAWAY",
		Items:     []domain.CreateItemRequest{{ProductID: tehOther.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	first, err := f.svc.List(ctx, domain.ListOrderRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, ids[2], first.Orders[0].ID)
	assert.Equal(t, ids[1], first.Orders[1].ID)
	assert.Len(t, first.Orders[0].Items, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := f.svc.List(ctx, domain.ListOrderRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, ids[0], second.Orders[0].ID)
	assert.False(t, second.HasMore)

	_, err = f.svc.List(ctx, domain.ListOrderRequest{PageToken: "%%%"})
	assert.Error(t, err)
}
