package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	"github.com/smallbiznis/kasir/internal/events"
	ledgerdomain "github.com/smallbiznis/kasir/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
	"github.com/smallbiznis/kasir/internal/outletcontext"
	paymentdomain "github.com/smallbiznis/kasir/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Orders     orderdomain.Repository
	LedgerSvc  ledgerdomain.Service
	Policy     *config.OrderPolicyHolder
	Publisher  events.Publisher    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	orders     orderdomain.Repository
	ledgerSvc  ledgerdomain.Service
	policy     *config.OrderPolicyHolder
	publisher  events.Publisher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		orders:     p.Orders,
		ledgerSvc:  p.LedgerSvc,
		policy:     p.Policy,
		publisher:  publisher,
		obsMetrics: p.ObsMetrics,
	}
}

// AddPayment records a settlement against an order. Every check runs
// against the locked order row before anything is written, so a rejected
// payment leaves no trace.
func (s *Service) AddPayment(ctx context.Context, req paymentdomain.AddPaymentRequest) (*paymentdomain.PaymentResult, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOutlet
	}
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.ProcessedBy == 0 {
		return nil, paymentdomain.ErrInvalidProcessedBy
	}
	method, err := paymentdomain.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	reference := strings.TrimSpace(req.Reference)
	var change int64
	if method == paymentdomain.MethodCash {
		if req.AmountReceived == nil || *req.AmountReceived < req.Amount {
			var received int64
			if req.AmountReceived != nil {
				received = *req.AmountReceived
			}
			return nil, &paymentdomain.UnderpayError{Amount: req.Amount, Received: received}
		}
		change = *req.AmountReceived - req.Amount
	} else if reference == "" {
		return nil, paymentdomain.ErrReferenceRequired
	}

	now := s.clock.Now()
	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		OrderID:     orderID,
		OutletID:    outletID,
		Method:      method,
		Kind:        paymentdomain.KindPayment,
		Amount:      req.Amount,
		Reference:   reference,
		Status:      paymentdomain.StatusSucceeded,
		ProcessedBy: req.ProcessedBy,
		ProcessedAt: now,
	}
	if method == paymentdomain.MethodCash {
		received := *req.AmountReceived
		payment.AmountReceived = &received
		payment.ChangeAmount = change
	}

	var (
		order      *orderdomain.Order
		fromStatus orderdomain.Status
		completed  bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.orders.FindByIDForUpdate(ctx, tx, outletID, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return orderdomain.ErrNotFound
		}
		if current.Status == orderdomain.StatusCancelled {
			return orderdomain.ErrOrderCancelled
		}

		paid, err := s.repo.SumSucceeded(ctx, tx, orderID)
		if err != nil {
			return err
		}
		remaining := current.Total - paid
		if remaining < 0 {
			remaining = 0
		}
		if req.Amount > remaining {
			return &paymentdomain.OverpayError{Requested: req.Amount, Remaining: remaining}
		}

		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		paid += req.Amount
		if err := s.orders.UpdatePaidAmount(ctx, tx, orderID, paid, now); err != nil {
			return err
		}
		if _, err := s.ledgerSvc.PostTx(ctx, tx, ledgerdomain.Posting{
			OutletID:   outletID,
			SourceType: ledgerdomain.SourceTypePayment,
			SourceID:   payment.ID,
			OccurredAt: now,
			Lines: []ledgerdomain.PostingLine{
				{Account: settlementAccount(method), Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: req.Amount},
				{Account: ledgerdomain.AccountCodeSales, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: req.Amount},
			},
		}); err != nil {
			return err
		}

		current.PaidAmount = paid
		current.UpdatedAt = now
		fromStatus = current.Status

		if paid >= current.Total && s.policy.Get().AutoCompletes(string(current.Status)) {
			updated, err := s.orders.UpdateStatus(ctx, tx, outletID, orderID, orderdomain.StatusChange{
				From: current.Status,
				To:   orderdomain.StatusCompleted,
				At:   now,
			})
			if err != nil {
				return err
			}
			if updated {
				current.Status = orderdomain.StatusCompleted
				current.CompletedAt = &now
				completed = true
			}
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPayment(ctx, string(method), string(paymentdomain.KindPayment))
	s.publisher.Publish(ctx, events.Event{
		Type:       events.PaymentRecorded,
		OutletID:   outletID,
		Payload:    paymentPayload(payment, order),
		OccurredAt: now,
	})
	if completed {
		s.emitCompleted(ctx, order, fromStatus, now)
	}

	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("method", string(method)),
		zap.Int64("amount", payment.Amount),
		zap.Bool("auto_completed", completed),
	)
	return &paymentdomain.PaymentResult{Payment: payment, Order: order, AutoCompleted: completed}, nil
}

// Refund appends an offsetting record for one payment. The order status is
// left unchanged.
func (s *Service) Refund(ctx context.Context, req paymentdomain.RefundRequest) (*paymentdomain.PaymentResult, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOutlet
	}
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}
	paymentID, err := parseID(req.PaymentID)
	if err != nil {
		return nil, err
	}
	if req.ProcessedBy == 0 {
		return nil, paymentdomain.ErrInvalidProcessedBy
	}

	now := s.clock.Now()
	var (
		refund *paymentdomain.Payment
		order  *orderdomain.Order
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.orders.FindByIDForUpdate(ctx, tx, outletID, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return orderdomain.ErrNotFound
		}
		if current.Status == orderdomain.StatusCancelled {
			return orderdomain.ErrOrderCancelled
		}

		original, err := s.repo.FindByID(ctx, tx, orderID, paymentID)
		if err != nil {
			return err
		}
		if original == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		if original.Kind != paymentdomain.KindPayment || original.Status != paymentdomain.StatusSucceeded {
			return paymentdomain.ErrNotRefundable
		}
		existing, err := s.repo.FindRefundOf(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return paymentdomain.ErrAlreadyRefunded
		}

		refundOf := original.ID
		refund = &paymentdomain.Payment{
			ID:          s.genID.Generate(),
			OrderID:     orderID,
			OutletID:    outletID,
			Method:      original.Method,
			Kind:        paymentdomain.KindRefund,
			Amount:      -original.Amount,
			Reference:   original.Reference,
			Reason:      strings.TrimSpace(req.Reason),
			Status:      paymentdomain.StatusSucceeded,
			RefundOf:    &refundOf,
			ProcessedBy: req.ProcessedBy,
			ProcessedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, refund); err != nil {
			return err
		}

		paid, err := s.repo.SumSucceeded(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := s.orders.UpdatePaidAmount(ctx, tx, orderID, paid, now); err != nil {
			return err
		}
		if _, err := s.ledgerSvc.PostTx(ctx, tx, ledgerdomain.Posting{
			OutletID:   outletID,
			SourceType: ledgerdomain.SourceTypeRefund,
			SourceID:   refund.ID,
			OccurredAt: now,
			Lines: []ledgerdomain.PostingLine{
				{Account: ledgerdomain.AccountCodeSales, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: original.Amount},
				{Account: settlementAccount(original.Method), Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: original.Amount},
			},
		}); err != nil {
			return err
		}

		current.PaidAmount = paid
		current.UpdatedAt = now
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPayment(ctx, string(refund.Method), string(paymentdomain.KindRefund))
	s.publisher.Publish(ctx, events.Event{
		Type:       events.PaymentRefunded,
		OutletID:   outletID,
		Payload:    paymentPayload(refund, order),
		OccurredAt: now,
	})
	s.log.Info("payment refunded",
		zap.String("refund_id", refund.ID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("order_id", orderID.String()),
		zap.Int64("amount", refund.Amount),
	)
	return &paymentdomain.PaymentResult{Payment: refund, Order: order}, nil
}

func (s *Service) List(ctx context.Context, orderID string) ([]paymentdomain.Payment, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, s.db, order.ID)
}

func (s *Service) Summary(ctx context.Context, orderID string) (*paymentdomain.Summary, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.SumSucceeded(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	remaining := order.Total - paid
	if remaining < 0 {
		remaining = 0
	}
	return &paymentdomain.Summary{
		OrderID:   order.ID,
		Total:     order.Total,
		Paid:      paid,
		Remaining: remaining,
	}, nil
}

func (s *Service) loadOrder(ctx context.Context, rawID string) (*orderdomain.Order, error) {
	outletID, ok := outletcontext.OutletIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOutlet
	}
	orderID, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, s.db, outletID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	return order, nil
}

func (s *Service) emitCompleted(ctx context.Context, order *orderdomain.Order, from orderdomain.Status, at time.Time) {
	s.obsMetrics.RecordOrderTransition(ctx, string(from), string(order.Status), "payment")
	s.publisher.Publish(ctx, events.Event{
		Type:     events.OrderStatusChanged,
		OutletID: order.OutletID,
		Payload: map[string]any{
			"order_id":    order.ID.String(),
			"from":        from,
			"to":          order.Status,
			"trigger":     "payment",
			"total":       order.Total,
			"paid_amount": order.PaidAmount,
		},
		OccurredAt: at,
	})
}

func paymentPayload(payment *paymentdomain.Payment, order *orderdomain.Order) map[string]any {
	return map[string]any{
		"payment":      payment,
		"order_id":     order.ID.String(),
		"order_status": order.Status,
		"total":        order.Total,
		"paid_amount":  order.PaidAmount,
		"remaining":    order.Remaining(),
	}
}

func settlementAccount(method paymentdomain.Method) ledgerdomain.LedgerAccountCode {
	if method == paymentdomain.MethodCash {
		return ledgerdomain.AccountCodeCash
	}
	return ledgerdomain.AccountCodePaymentClearing
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, paymentdomain.ErrInvalidID
	}
	return id, nil
}
