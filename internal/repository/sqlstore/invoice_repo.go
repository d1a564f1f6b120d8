package sqlstore

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
)

var invoiceColumns = []string{"invoice_number", "invoice_date", "gross_amount", "supplier_number"}

type invoiceRepo struct {
	db      *sqlx.DB
	flavor  sqlbuilder.Flavor
	table   string
	formats *matcher.KeyGenerator
	logger  *zap.Logger
}

// NewInvoiceRepo creates a SQL-backed ReferenceStore over table. Amounts are
// written at the given scale so that the natural-key index sees the same
// canonical values the matcher compares.
func NewInvoiceRepo(db *sqlx.DB, driver, table string, amountScale int32, logger *zap.Logger) port.ReferenceStore {
	flavor := sqlbuilder.PostgreSQL
	if driver == DriverSQLite {
		flavor = sqlbuilder.SQLite
	}
	if table == "" {
		table = DefaultTable
	}
	return &invoiceRepo{
		db:      db,
		flavor:  flavor,
		table:   table,
		formats: matcher.NewKeyGenerator(amountScale),
		logger:  logger,
	}
}

func (r *invoiceRepo) LoadReference(ctx context.Context) ([]domain.RawRecord, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(
		"invoice_number",
		"CAST(invoice_date AS TEXT) AS invoice_date",
		"CAST(gross_amount AS TEXT) AS gross_amount",
		"supplier_number",
	)
	sb.From(r.table)
	sb.OrderBy("id")

	query, args := sb.Build()
	var records []domain.RawRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", r.table, err)
	}
	for i := range records {
		records[i].Row = i + 1
	}
	return records, nil
}

// Append inserts records. A row whose four fields already exist is reported
// as already_exists and is not a failure. In atomic mode the first failure
// rolls back the whole batch.
func (r *invoiceRepo) Append(ctx context.Context, records []domain.InvoiceRecord, mode domain.MergeMode) (*domain.MergeResult, error) {
	result := &domain.MergeResult{Mode: mode}

	switch mode {
	case domain.MergeModePerRow:
		for i := range records {
			result.Rows = append(result.Rows, r.insert(ctx, r.db, &records[i]))
		}

	case domain.MergeModeAtomic:
		rows, err := r.appendAtomic(ctx, records)
		if err != nil {
			return nil, err
		}
		result.Rows = rows

	default:
		return nil, fmt.Errorf("unknown merge mode %q", mode)
	}

	result.Tally()
	r.logger.Debug("append finished",
		zap.String("table", r.table),
		zap.String("mode", string(mode)),
		zap.String("status", string(result.Status)),
		zap.Int("inserted", result.Inserted),
		zap.Int("existing", result.Existing),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *invoiceRepo) appendAtomic(ctx context.Context, records []domain.InvoiceRecord) ([]domain.MergeRowResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows := make([]domain.MergeRowResult, 0, len(records))
	for i := range records {
		row := r.insert(ctx, tx, &records[i])
		if row.Outcome != domain.MergeOutcomeFailed {
			rows = append(rows, row)
			continue
		}

		if err := tx.Rollback(); err != nil {
			r.logger.Warn("rollback failed", zap.Error(err))
		}
		rows = rows[:0]
		for j := range records {
			if j == i {
				rows = append(rows, row)
				continue
			}
			rows = append(rows, domain.MergeRowResult{Row: records[j].Row, Outcome: domain.MergeOutcomeRolledBack})
		}
		return rows, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing merge: %w", err)
	}
	return rows, nil
}

func (r *invoiceRepo) insert(ctx context.Context, ex sqlx.ExecerContext, rec *domain.InvoiceRecord) domain.MergeRowResult {
	ib := r.flavor.NewInsertBuilder()
	ib.InsertInto(r.table)
	ib.Cols(invoiceColumns...)
	ib.Values(
		rec.InvoiceNumber,
		r.formats.FormatDate(rec.InvoiceDate),
		r.formats.FormatAmount(rec.GrossAmount),
		rec.SupplierNumber,
	)
	ib.SQL("ON CONFLICT DO NOTHING")

	query, args := ib.Build()
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.MergeRowResult{Row: rec.Row, Outcome: domain.MergeOutcomeFailed, Error: err.Error()}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.MergeRowResult{Row: rec.Row, Outcome: domain.MergeOutcomeFailed, Error: err.Error()}
	}
	if n == 0 {
		return domain.MergeRowResult{Row: rec.Row, Outcome: domain.MergeOutcomeAlreadyExists}
	}
	return domain.MergeRowResult{Row: rec.Row, Outcome: domain.MergeOutcomeInserted}
}

func (r *invoiceRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
