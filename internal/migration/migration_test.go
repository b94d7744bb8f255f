package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/kasir/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAutoMigratesNonPostgres(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, Run(conn))

	for _, table := range []string{"orders", "order_items", "payments", "ledger_entries", "products", "tax_definitions"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}
