package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// PostTx writes posting inside tx. It reports false when an entry for the
	// same source already exists.
	PostTx(ctx context.Context, tx *gorm.DB, posting Posting) (bool, error)
	// Balance returns debits minus credits for an outlet account.
	Balance(ctx context.Context, outletID snowflake.ID, account LedgerAccountCode) (int64, error)
}

var (
	ErrInvalidOutlet        = errors.New("invalid_outlet")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)
