package migration

import (
	"io/fs"
	"strings"
	"testing"

	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	transactiondomain "github.com/smallbiznis/posbridge/internal/transaction/domain"
	"github.com/smallbiznis/posbridge/pkg/db"
	"github.com/smallbiznis/posbridge/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunCreatesTablesOnSQLite(t *testing.T) {
	conn := dbtest.Open(t)

	require.NoError(t, Run(conn, db.TypePureSQLite, zaptest.NewLogger(t)))

	assert.True(t, conn.Migrator().HasTable(&transactiondomain.TransactionRecord{}))
	assert.True(t, conn.Migrator().HasTable(&catalogdomain.Variant{}))
	assert.True(t, conn.Migrator().HasColumn(&catalogdomain.Variant{}, "last_known_inventory"))
	assert.True(t, conn.Migrator().HasColumn(&transactiondomain.TransactionRecord{}, "pos_document"))
}

func TestRunRequiresConnection(t *testing.T) {
	assert.Error(t, Run(nil, db.TypePostgres, zaptest.NewLogger(t)))
	assert.Error(t, RunMigrations(nil))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}
