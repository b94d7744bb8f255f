package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	ledgerdomain "github.com/smallbiznis/kasir/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
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
	Config     config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	currency   string
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		currency:   strings.ToUpper(strings.TrimSpace(p.Config.Currency)),
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) PostTx(ctx context.Context, tx *gorm.DB, posting ledgerdomain.Posting) (bool, error) {
	if posting.OutletID == 0 {
		return false, ledgerdomain.ErrInvalidOutlet
	}
	sourceType := ledgerdomain.LedgerSourceType(strings.TrimSpace(string(posting.SourceType)))
	if sourceType == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if posting.SourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	if s.currency == "" {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if posting.OccurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(posting.Lines) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.PostingLine, 0, len(posting.Lines))
	for _, line := range posting.Lines {
		if strings.TrimSpace(string(line.Account)) == "" {
			return false, ledgerdomain.ErrInvalidAccount
		}
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return false, err
		}
		if line.Amount < 0 {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		normalized = append(normalized, ledgerdomain.PostingLine{
			Account:   line.Account,
			Direction: direction,
			Amount:    line.Amount,
		})
	}
	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return false, err
	}

	now := s.clock.Now()
	entryID := s.genID.Generate()
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, outlet_id, source_type, source_id, currency, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (outlet_id, source_type, source_id) DO NOTHING`,
		entryID,
		posting.OutletID,
		string(sourceType),
		posting.SourceID,
		s.currency,
		posting.OccurredAt.UTC(),
		now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", posting.SourceID.String()),
		)
		return false, nil
	}

	for _, line := range normalized {
		accountID, err := s.ensureAccount(ctx, tx, posting.OutletID, line.Account, now)
		if err != nil {
			return false, err
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_entry_lines (
				id, ledger_entry_id, account_id, direction, amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			entryID,
			accountID,
			string(line.Direction),
			line.Amount,
			now,
		).Error; err != nil {
			return false, err
		}
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(sourceType))
	}
	return true, nil
}

func (s *Service) Balance(ctx context.Context, outletID snowflake.ID, account ledgerdomain.LedgerAccountCode) (int64, error) {
	var row struct {
		Debit  int64
		Credit int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN l.direction = ? THEN l.amount ELSE 0 END), 0) AS debit,
			COALESCE(SUM(CASE WHEN l.direction = ? THEN l.amount ELSE 0 END), 0) AS credit
		 FROM ledger_entry_lines l
		 JOIN ledger_accounts a ON a.id = l.account_id
		 WHERE a.outlet_id = ? AND a.code = ?`,
		string(ledgerdomain.LedgerEntryDirectionDebit),
		string(ledgerdomain.LedgerEntryDirectionCredit),
		outletID,
		string(account),
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Debit - row.Credit, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, outletID snowflake.ID, code ledgerdomain.LedgerAccountCode, now time.Time) (snowflake.ID, error) {
	var accountID snowflake.ID
	if err := tx.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE outlet_id = ? AND code = ?`,
		outletID,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID != 0 {
		return accountID, nil
	}

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, outlet_id, code, name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (outlet_id, code) DO NOTHING`,
		s.genID.Generate(),
		outletID,
		string(code),
		string(code),
		now,
	).Error; err != nil {
		return 0, err
	}

	if err := tx.WithContext(ctx).Raw(
		`SELECT id FROM ledger_accounts WHERE outlet_id = ? AND code = ?`,
		outletID,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, errors.New("ledger_account_not_found")
	}
	return accountID, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	normalized := strings.ToLower(strings.TrimSpace(string(direction)))
	switch normalized {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
