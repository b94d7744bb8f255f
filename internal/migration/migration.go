package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	catalogdomain "github.com/smallbiznis/kasir/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/kasir/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
	paymentdomain "github.com/smallbiznis/kasir/internal/payment/domain"
	taxdomain "github.com/smallbiznis/kasir/internal/tax/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the core owns, in dependency order.
func Models() []any {
	return []any{
		&catalogdomain.Product{},
		&catalogdomain.ProductVariant{},
		&catalogdomain.ProductModifier{},
		&taxdomain.TaxDefinition{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&paymentdomain.Payment{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL files;
// other dialects are local or test setups and use AutoMigrate.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}
