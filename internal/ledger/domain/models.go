package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypePayment LedgerSourceType = "payment" // settlement taken at the till
	SourceTypeRefund  LedgerSourceType = "refund"  // money returned to the guest
)

type LedgerAccountCode string

const (
	// Assets
	AccountCodeCash            LedgerAccountCode = "cash"
	AccountCodePaymentClearing LedgerAccountCode = "payment_clearing" // card, QRIS and transfer awaiting settlement

	// Revenue
	AccountCodeSales LedgerAccountCode = "sales"
)

// LedgerAccount defines a chart-of-accounts entry for one outlet.
type LedgerAccount struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	OutletID  snowflake.ID      `gorm:"not null;uniqueIndex:ux_ledger_accounts_outlet_code,priority:1"`
	Code      LedgerAccountCode `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_outlet_code,priority:2"`
	Name      string            `gorm:"type:text;not null"`
	CreatedAt time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID         snowflake.ID     `gorm:"primaryKey"`
	OutletID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceType LedgerSourceType `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	SourceID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:3"`
	Currency   string           `gorm:"type:text;not null"`
	OccurredAt time.Time        `gorm:"not null"`
	CreatedAt  time.Time        `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        int64                `gorm:"not null"`
	CreatedAt     time.Time            `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// PostingLine is one side of an entry, addressed by account code.
type PostingLine struct {
	Account   LedgerAccountCode
	Direction LedgerEntryDirection
	Amount    int64
}

// Posting is a balanced entry to write for one source document.
type Posting struct {
	OutletID   snowflake.ID
	SourceType LedgerSourceType
	SourceID   snowflake.ID
	OccurredAt time.Time
	Lines      []PostingLine
}

// ValidateBalanced checks that debits equal credits.
func ValidateBalanced(lines []PostingLine) error {
	var debit, credit int64
	for _, line := range lines {
		switch line.Direction {
		case LedgerEntryDirectionDebit:
			debit += line.Amount
		case LedgerEntryDirectionCredit:
			credit += line.Amount
		default:
			return ErrInvalidLineDirection
		}
	}
	if debit != credit {
		return ErrUnbalancedEntry
	}
	return nil
}
