package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dupcheck/internal/config"
	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
	"dupcheck/internal/repository/sqlstore"
)

func openStore(t *testing.T) (*sqlx.DB, port.ReferenceStore) {
	t.Helper()
	cfg := &config.StoreConfig{
		Driver:     sqlstore.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "data", "invoices.db"),
	}
	db, err := sqlstore.NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlstore.Migrate(db, sqlstore.DriverSQLite))
	return db, sqlstore.NewInvoiceRepo(db, sqlstore.DriverSQLite, "", 2, zap.NewNop())
}

func invoice(row int, number, date, amount, supplier string) domain.InvoiceRecord {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return domain.InvoiceRecord{
		Row:            row,
		InvoiceNumber:  number,
		InvoiceDate:    d,
		GrossAmount:    decimal.RequireFromString(amount),
		SupplierNumber: supplier,
	}
}

func count(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM invoices"))
	return n
}

func TestInvoiceRepo_AppendAndLoad(t *testing.T) {
	_, repo := openStore(t)
	ctx := context.Background()

	result, err := repo.Append(ctx, []domain.InvoiceRecord{
		invoice(4, "INV-1", "2024-01-15", "1250.5", "S100"),
		invoice(7, "INV-2", "2024-02-01", "80", "S200"),
	}, domain.MergeModeAtomic)

	require.NoError(t, err)
	assert.Equal(t, domain.MergeStatusSuccess, result.Status)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, []domain.MergeRowResult{
		{Row: 4, Outcome: domain.MergeOutcomeInserted},
		{Row: 7, Outcome: domain.MergeOutcomeInserted},
	}, result.Rows)

	raws, err := repo.LoadReference(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RawRecord{
		{Row: 1, InvoiceNumber: "INV-1", InvoiceDate: "2024-01-15", GrossAmount: "1250.50", SupplierNumber: "S100"},
		{Row: 2, InvoiceNumber: "INV-2", InvoiceDate: "2024-02-01", GrossAmount: "80.00", SupplierNumber: "S200"},
	}, raws)
}

func TestInvoiceRepo_MergedRowsMatchOnNextRun(t *testing.T) {
	_, repo := openStore(t)
	ctx := context.Background()
	rec := invoice(1, "INV-1", "2024-01-15", "1250.50", "S100")

	_, err := repo.Append(ctx, []domain.InvoiceRecord{rec}, domain.MergeModeAtomic)
	require.NoError(t, err)

	raws, err := repo.LoadReference(ctx)
	require.NoError(t, err)

	m := matcher.New(matcher.DefaultOptions())
	index, _, excluded := m.Index(raws)
	require.Empty(t, excluded)

	cands, _ := m.Prepare([]domain.RawRecord{{
		Row: 1, InvoiceNumber: "INV-1", InvoiceDate: "01/15/2024", GrossAmount: "1,250.50", SupplierNumber: "S100",
	}})
	res, err := index.Match(cands[0].Keys)
	require.NoError(t, err)
	assert.Equal(t, domain.RuleDateAmountSupplierNumber, res.Rule)
}

func TestInvoiceRepo_RemergeIsRejectedAsExisting(t *testing.T) {
	db, repo := openStore(t)
	ctx := context.Background()
	batch := []domain.InvoiceRecord{invoice(1, "INV-1", "2024-01-15", "10", "S1")}

	_, err := repo.Append(ctx, batch, domain.MergeModeAtomic)
	require.NoError(t, err)

	result, err := repo.Append(ctx, batch, domain.MergeModeAtomic)

	require.NoError(t, err)
	assert.Equal(t, domain.MergeStatusSuccess, result.Status)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Existing)
	assert.Equal(t, domain.MergeOutcomeAlreadyExists, result.Rows[0].Outcome)
	assert.Equal(t, 1, count(t, db))
}

func TestInvoiceRepo_AtomicRollsBackOnFailure(t *testing.T) {
	db, repo := openStore(t)

	result, err := repo.Append(context.Background(), []domain.InvoiceRecord{
		invoice(1, "INV-1", "2024-01-15", "10", "S1"),
		invoice(2, "", "2024-01-16", "20", "S1"),
		invoice(3, "INV-3", "2024-01-17", "30", "S1"),
	}, domain.MergeModeAtomic)

	require.NoError(t, err)
	assert.Equal(t, domain.MergeStatusFailed, result.Status)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, domain.MergeOutcomeRolledBack, result.Rows[0].Outcome)
	assert.Equal(t, domain.MergeOutcomeFailed, result.Rows[1].Outcome)
	assert.NotEmpty(t, result.Rows[1].Error)
	assert.Equal(t, domain.MergeOutcomeRolledBack, result.Rows[2].Outcome)
	assert.Equal(t, 0, count(t, db))
}

func TestInvoiceRepo_PerRowKeepsSuccesses(t *testing.T) {
	db, repo := openStore(t)

	result, err := repo.Append(context.Background(), []domain.InvoiceRecord{
		invoice(1, "INV-1", "2024-01-15", "10", "S1"),
		invoice(2, "", "2024-01-16", "20", "S1"),
		invoice(3, "INV-3", "2024-01-17", "30", "S1"),
	}, domain.MergeModePerRow)

	require.NoError(t, err)
	assert.Equal(t, domain.MergeStatusPartial, result.Status)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, domain.MergeOutcomeFailed, result.Rows[1].Outcome)
	assert.Equal(t, 2, count(t, db))
}

func TestInvoiceRepo_UnknownMode(t *testing.T) {
	_, repo := openStore(t)

	_, err := repo.Append(context.Background(), nil, domain.MergeMode("bulk"))

	assert.Error(t, err)
}

func TestInvoiceRepo_Ping(t *testing.T) {
	_, repo := openStore(t)

	assert.NoError(t, repo.Ping(context.Background()))
}

func TestMigrate_Idempotent(t *testing.T) {
	db, _ := openStore(t)

	assert.NoError(t, sqlstore.Migrate(db, sqlstore.DriverSQLite))
}

func TestNewDB_UnknownDriver(t *testing.T) {
	_, err := sqlstore.NewDB(&config.StoreConfig{Driver: "access"})

	assert.Error(t, err)
}
