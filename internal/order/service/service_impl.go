package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/kasir/internal/catalog/domain"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/events"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	"github.com/smallbiznis/kasir/internal/order/domain"
	"github.com/smallbiznis/kasir/internal/outletcontext"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	taxservice "github.com/smallbiznis/kasir/internal/tax/service"
	"github.com/smallbiznis/kasir/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxItemQuantity = 999

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Catalog    catalogdomain.PriceLookup
	Tax        taxdomain.TaxResolver
	Publisher  events.Publisher    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	catalog    catalogdomain.PriceLookup
	tax        taxdomain.TaxResolver
	publisher  events.Publisher
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		catalog:    p.Catalog,
		tax:        p.Tax,
		publisher:  publisher,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOutlet
	}
	if req.CashierID == 0 {
		return nil, domain.ErrInvalidCashier
	}
	orderType, err := domain.ParseOrderType(req.Type)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	if req.Discount < 0 {
		return nil, domain.ErrInvalidDiscount
	}

	refs := make([]catalogdomain.ItemRef, len(req.Items))
	for i, item := range req.Items {
		ref, err := parseItemRef(i, item)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:        s.genID.Generate(),
		OutletID:  outletID,
		Type:      orderType,
		Status:    domain.StatusNew,
		Discount:  req.Discount,
		Note:      strings.TrimSpace(req.Note),
		CreatedBy: req.CashierID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := make([]domain.OrderItem, 0, len(refs))
		var subtotal int64
		for i, ref := range refs {
			resolved, err := s.catalog.Resolve(ctx, tx, outletID, ref)
			if err != nil {
				return itemLookupError(i, err)
			}
			if resolved.Modifiers == nil {
				resolved.Modifiers = []catalogdomain.ResolvedModifier{}
			}
			modifiers, err := json.Marshal(resolved.Modifiers)
			if err != nil {
				return err
			}
			quantity := req.Items[i].Quantity
			lineTotal := resolved.UnitPrice * quantity
			subtotal += lineTotal
			items = append(items, domain.OrderItem{
				ID:            s.genID.Generate(),
				OrderID:       order.ID,
				ProductID:     resolved.ProductID,
				VariantID:     resolved.VariantID,
				ProductName:   resolved.ProductName,
				VariantName:   resolved.VariantName,
				Modifiers:     datatypes.JSON(modifiers),
				Quantity:      quantity,
				UnitPrice:     resolved.UnitPrice,
				Subtotal:      lineTotal,
				KitchenStatus: domain.KitchenPending,
				Note:          strings.TrimSpace(req.Items[i].Note),
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if order.Discount > subtotal {
			return domain.ErrInvalidDiscount
		}

		def, err := s.tax.ResolveForOrder(ctx, tx, outletID)
		if err != nil {
			return err
		}
		order.Subtotal = subtotal
		if def != nil {
			order.TaxRate = def.Rate
			order.Tax = taxservice.ComputeTaxExclusive(subtotal-order.Discount, def.Rate)
		}
		order.Total = order.Subtotal - order.Discount + order.Tax

		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordOrderCreated(ctx, string(order.Type))
	s.publisher.Publish(ctx, events.Event{
		Type:       events.OrderCreated,
		OutletID:   order.OutletID,
		Payload:    order,
		OccurredAt: now,
	})
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("outlet_id", outletID.String()),
		zap.Int("items", len(order.Items)),
		zap.Int64("total", order.Total),
	)
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOutlet
	}
	id, err := parseID(orderID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, s.db, outletID, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOrderRequest) (domain.ListOrderResponse, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return domain.ListOrderResponse{}, domain.ErrInvalidOutlet
	}

	filter := domain.ListOrderFilter{}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return domain.ListOrderResponse{}, err
		}
		filter.Status = status
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return domain.ListOrderResponse{}, err
	}
	if cursor != nil {
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListOrderResponse{}, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = beforeID
	}
	limit := page.Limit()
	filter.Limit = limit + 1

	orders, err := s.repo.List(ctx, s.db, outletID, filter)
	if err != nil {
		return domain.ListOrderResponse{}, err
	}

	orders, pageInfo := pagination.BuildCursorPageInfo(orders, limit, func(o *domain.Order) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: o.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	if err := s.attachItems(ctx, orders); err != nil {
		return domain.ListOrderResponse{}, err
	}

	return domain.ListOrderResponse{
		PageInfo: *pageInfo,
		Orders:   orders,
	}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (*domain.Order, error) {
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if to == domain.StatusCancelled {
		return s.Cancel(ctx, domain.CancelOrderRequest{OrderID: req.OrderID, ActorID: req.ActorID})
	}

	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOutlet
	}
	id, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		order *domain.Order
		from  domain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, outletID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		from = current.Status
		if !domain.CanTransition(from, to) {
			return &domain.InvalidTransitionError{From: string(from), To: string(to)}
		}

		updated, err := s.repo.UpdateStatus(ctx, tx, outletID, id, domain.StatusChange{From: from, To: to, At: now})
		if err != nil {
			return err
		}
		if !updated {
			return s.staleTransition(ctx, tx, outletID, id, to)
		}

		current.Status = to
		current.UpdatedAt = now
		if to == domain.StatusCompleted {
			current.CompletedAt = &now
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, order, from, "request")
	return order, nil
}

// Cancel is idempotent: cancelling a cancelled order succeeds without a
// second event.
func (s *Service) Cancel(ctx context.Context, req domain.CancelOrderRequest) (*domain.Order, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOutlet
	}
	id, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		order   *domain.Order
		from    domain.Status
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, outletID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		order = current
		from = current.Status
		if from == domain.StatusCancelled {
			return nil
		}
		if !domain.CanTransition(from, domain.StatusCancelled) {
			return &domain.InvalidTransitionError{From: string(from), To: string(domain.StatusCancelled)}
		}
		if current.PaidAmount > 0 {
			return domain.ErrOrderHasPayments
		}

		change := domain.StatusChange{
			From:   from,
			To:     domain.StatusCancelled,
			At:     now,
			Reason: strings.TrimSpace(req.Reason),
		}
		if req.ActorID != 0 {
			actor := req.ActorID
			change.Actor = &actor
		}
		updated, err := s.repo.UpdateStatus(ctx, tx, outletID, id, change)
		if err != nil {
			return err
		}
		if !updated {
			return s.staleTransition(ctx, tx, outletID, id, domain.StatusCancelled)
		}

		current.Status = domain.StatusCancelled
		current.UpdatedAt = now
		current.CancelledAt = &now
		current.CancelReason = change.Reason
		current.CancelledBy = change.Actor
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.emitStatusChanged(ctx, order, from, "cancel")
	}
	return order, nil
}

func (s *Service) UpdateItemKitchenStatus(ctx context.Context, req domain.UpdateItemKitchenStatusRequest) (*domain.OrderItem, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOutlet
	}
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}
	itemID, err := parseID(req.ItemID)
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseKitchenStatus(req.Status)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		item *domain.OrderItem
		from domain.KitchenStatus
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, outletID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if order.Status == domain.StatusCancelled {
			return domain.ErrOrderCancelled
		}

		current, err := s.repo.FindItem(ctx, tx, orderID, itemID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrItemNotFound
		}
		from = current.KitchenStatus
		if !domain.CanAdvanceKitchen(from, to) {
			return &domain.InvalidTransitionError{From: string(from), To: string(to)}
		}

		updated, err := s.repo.UpdateItemKitchenStatus(ctx, tx, orderID, itemID, from, to, now)
		if err != nil {
			return err
		}
		if !updated {
			latest, err := s.repo.FindItem(ctx, tx, orderID, itemID)
			if err != nil {
				return err
			}
			if latest != nil {
				from = latest.KitchenStatus
			}
			return &domain.InvalidTransitionError{From: string(from), To: string(to)}
		}

		current.KitchenStatus = to
		current.UpdatedAt = now
		item = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.Event{
		Type:     events.OrderItemStatusChanged,
		OutletID: outletID,
		Payload: map[string]any{
			"order_id": orderID.String(),
			"item_id":  itemID.String(),
			"from":     from,
			"to":       to,
		},
		OccurredAt: now,
	})
	return item, nil
}

func (s *Service) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(orders))
	byID := make(map[snowflake.ID]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}
	items, err := s.repo.ListItems(ctx, s.db, ids...)
	if err != nil {
		return err
	}
	for _, item := range items {
		if o := byID[item.OrderID]; o != nil {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}

// staleTransition reports the state another writer moved the order to.
func (s *Service) staleTransition(ctx context.Context, tx *gorm.DB, outletID, id snowflake.ID, to domain.Status) error {
	latest, err := s.repo.FindByID(ctx, tx, outletID, id)
	if err != nil {
		return err
	}
	if latest == nil {
		return domain.ErrNotFound
	}
	return &domain.InvalidTransitionError{From: string(latest.Status), To: string(to)}
}

func (s *Service) emitStatusChanged(ctx context.Context, order *domain.Order, from domain.Status, trigger string) {
	s.obsMetrics.RecordOrderTransition(ctx, string(from), string(order.Status), trigger)
	s.publisher.Publish(ctx, events.Event{
		Type:     events.OrderStatusChanged,
		OutletID: order.OutletID,
		Payload: map[string]any{
			"order_id":    order.ID.String(),
			"from":        from,
			"to":          order.Status,
			"trigger":     trigger,
			"total":       order.Total,
			"paid_amount": order.PaidAmount,
		},
		OccurredAt: order.UpdatedAt,
	})
}

func parseItemRef(index int, item domain.CreateItemRequest) (catalogdomain.ItemRef, error) {
	if item.Quantity <= 0 || item.Quantity > maxItemQuantity {
		return catalogdomain.ItemRef{}, &domain.ItemError{Index: index, Field: "quantity", Err: domain.ErrInvalidQuantity}
	}
	productID, err := parseID(item.ProductID)
	if err != nil {
		return catalogdomain.ItemRef{}, &domain.ItemError{Index: index, Field: "product_id", Err: catalogdomain.ErrUnknownProduct}
	}
	ref := catalogdomain.ItemRef{ProductID: productID}

	if strings.TrimSpace(item.VariantID) != "" {
		variantID, err := parseID(item.VariantID)
		if err != nil {
			return catalogdomain.ItemRef{}, &domain.ItemError{Index: index, Field: "variant_id", Err: catalogdomain.ErrUnknownVariant}
		}
		ref.VariantID = &variantID
	}

	for _, raw := range item.ModifierIDs {
		modifierID, err := parseID(raw)
		if err != nil {
			return catalogdomain.ItemRef{}, &domain.ItemError{Index: index, Field: "modifier_ids", Err: catalogdomain.ErrUnknownModifier}
		}
		ref.ModifierIDs = append(ref.ModifierIDs, modifierID)
	}
	return ref, nil
}

func itemLookupError(index int, err error) error {
	switch {
	case errors.Is(err, catalogdomain.ErrUnknownProduct):
		return &domain.ItemError{Index: index, Field: "product_id", Err: err}
	case errors.Is(err, catalogdomain.ErrUnknownVariant):
		return &domain.ItemError{Index: index, Field: "variant_id", Err: err}
	case errors.Is(err, catalogdomain.ErrUnknownModifier):
		return &domain.ItemError{Index: index, Field: "modifier_ids", Err: err}
	default:
		return err
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
