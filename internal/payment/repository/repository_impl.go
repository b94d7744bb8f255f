package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, order_id, outlet_id, method, kind, amount, amount_received,
			change_amount, reference, reason, status, refund_of, processed_by, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrderID,
		payment.OutletID,
		payment.Method,
		payment.Kind,
		payment.Amount,
		payment.AmountReceived,
		payment.ChangeAmount,
		payment.Reference,
		payment.Reason,
		payment.Status,
		payment.RefundOf,
		payment.ProcessedBy,
		payment.ProcessedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orderID, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).
		Where("order_id = ? AND id = ?", orderID, id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindRefundOf(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).
		Where("refund_of = ?", paymentID).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("processed_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumSucceeded(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = ? AND status <> ?`,
		orderID,
		domain.StatusFailed,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
