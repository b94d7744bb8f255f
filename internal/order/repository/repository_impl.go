package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, outlet_id, type, status, subtotal, discount, tax, tax_rate, total,
			paid_amount, note, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OutletID,
		order.Type,
		order.Status,
		order.Subtotal,
		order.Discount,
		order.Tax,
		order.TaxRate,
		order.Total,
		order.PaidAmount,
		order.Note,
		order.CreatedBy,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db, outletID, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID) (*domain.Order, error) {
	return r.find(ctx, db, outletID, id, true)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID, lock bool) (*domain.Order, error) {
	var orders []domain.Order
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("outlet_id = ? AND id = ?", outletID, id).
		Limit(1)
	// SQLite serializes writers already and has no row locks
	if lock && db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := stmt.Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, outletID snowflake.ID, filter domain.ListOrderFilter) ([]*domain.Order, error) {
	var orders []*domain.Order
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("outlet_id = ?", outletID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	err := stmt.
		Order("id desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, orderIDs ...snowflake.ID) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var items []domain.OrderItem
	err := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Where("order_id IN ?", orderIDs).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, orderID, itemID snowflake.ID) (*domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Where("order_id = ? AND id = ?", orderID, itemID).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, outletID, id snowflake.ID, change domain.StatusChange) (bool, error) {
	updates := map[string]any{
		"status":     change.To,
		"updated_at": change.At,
	}
	switch change.To {
	case domain.StatusCompleted:
		updates["completed_at"] = change.At
	case domain.StatusCancelled:
		updates["cancelled_at"] = change.At
		updates["cancel_reason"] = change.Reason
		updates["cancelled_by"] = change.Actor
	}

	result := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("outlet_id = ? AND id = ? AND status = ?", outletID, id, change.From).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) UpdateItemKitchenStatus(ctx context.Context, db *gorm.DB, orderID, itemID snowflake.ID, from, to domain.KitchenStatus, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE order_items SET kitchen_status = ?, updated_at = ?
		 WHERE order_id = ? AND id = ? AND kitchen_status = ?`,
		to,
		at,
		orderID,
		itemID,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) UpdatePaidAmount(ctx context.Context, db *gorm.DB, id snowflake.ID, paid int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET paid_amount = ?, updated_at = ? WHERE id = ?`,
		paid,
		at,
		id,
	).Error
}
