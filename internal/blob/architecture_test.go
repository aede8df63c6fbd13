package blob

import (
	"testing"

	"organcore/testutil"
)

// TestOnlyBlobPackageImportsInfra ensures other packages depend on blob.Store
// rather than importing a backend directly.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	testutil.AssertImportedOnlyBy(t, "organcore/...", "organcore/internal/blob", "organcore/internal/infra/blob",
		"blob backends are reached through internal/blob")
}

// TestOnlyRelationalPackageImportsDrivers keeps SQL drivers behind the
// relational store package.
func TestOnlyRelationalPackageImportsDrivers(t *testing.T) {
	for _, driver := range []string{"github.com/jackc/pgx/v5", "modernc.org/sqlite"} {
		testutil.AssertImportedOnlyBy(t, "organcore/...", "organcore/internal/infra/persistence/relational", driver,
			"sql drivers are reached through the relational store")
	}
}
