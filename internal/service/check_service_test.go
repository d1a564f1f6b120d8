package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
	"dupcheck/internal/service"
	"dupcheck/internal/tabular"
	"dupcheck/mocks"
)

var candidateColumns = []string{"Invoice Number", "Invoice Date", "Gross Amount", "Supplier Number", "Notes"}

func referenceRows() []domain.RawRecord {
	return []domain.RawRecord{
		{Row: 1, InvoiceNumber: "INV-001", InvoiceDate: "2024-01-15", GrossAmount: "1250.00", SupplierNumber: "S100"},
		{Row: 2, InvoiceNumber: "INV-002", InvoiceDate: "2024-02-01", GrossAmount: "80.00", SupplierNumber: "S200"},
		{Row: 3, InvoiceNumber: "INV-003", InvoiceDate: "garbage", GrossAmount: "1.00", SupplierNumber: "S300"},
	}
}

func candidateTable() *domain.Table {
	return &domain.Table{
		Name:    "batch.xlsx",
		Sheet:   "Sheet1",
		Columns: candidateColumns,
		Rows: [][]string{
			{"INV-001", "2024-01-15", "1250.00", "S100", "exact"},
			{"INV-999", "01/15/2024", "1,250.00", "S100", "number changed"},
			{"INV-001", "2024-01-20", "1250", "S100", "date changed"},
			{"INV-001", "2024-01-15", "1300.00", "S100", "amount changed"},
			{"INV-500", "2024-03-01", "10.00", "S900", "new"},
			{"INV-501", "not-a-date", "10.00", "S900", "bad date"},
		},
	}
}

type fixture struct {
	tables   *mocks.MockTableLoader
	store    *mocks.MockReferenceStore
	notifier *mocks.MockRunNotifier
	csv      *mocks.MockResultExporter
	svc      service.CheckService
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	f := &fixture{
		tables:   new(mocks.MockTableLoader),
		store:    new(mocks.MockReferenceStore),
		notifier: new(mocks.MockRunNotifier),
		csv:      new(mocks.MockResultExporter),
	}
	f.csv.On("FileType").Return(domain.FileTypeCSV)

	deps := service.CheckDeps{
		Matcher:   matcher.New(matcher.DefaultOptions()),
		Tables:    f.tables,
		Exporters: []port.ResultExporter{f.csv},
		Notifier:  f.notifier,
		Columns:   tabular.DefaultColumns(),
	}
	if withStore {
		deps.Store = f.store
	}
	f.svc = service.NewCheckService(deps)
	return f
}

var candidateRef = port.SourceRef{Location: "batch.xlsx"}

func TestCheckService_Run_Scenarios(t *testing.T) {
	f := newFixture(t, true)
	f.store.On("LoadReference", mock.Anything).Return(referenceRows(), nil)
	f.tables.On("Load", mock.Anything, candidateRef).Return(candidateTable(), nil)
	f.notifier.On("SendRunSummary", mock.Anything, mock.AnythingOfType("*domain.CheckRun")).Return(nil)

	run, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})

	require.NoError(t, err)
	assert.Equal(t, service.ReferenceStoreSource, run.ReferenceSource)
	assert.Equal(t, "batch.xlsx", run.CandidateSource)
	require.Len(t, run.Results, 5)

	want := []struct {
		row  int
		rule domain.MatchRule
		dup  bool
	}{
		{1, domain.RuleDateAmountSupplierNumber, true},
		{2, domain.RuleDateAmountSupplier, true},
		{3, domain.RuleNumberAmountSupplier, true},
		{4, domain.RuleNumberDateSupplier, true},
		{5, domain.RuleUnique, false},
	}
	for i, w := range want {
		got := run.Results[i]
		assert.Equal(t, w.row, got.Record.Row)
		assert.Equal(t, w.rule, got.Result.Rule, "row %d", w.row)
		assert.Equal(t, w.dup, got.Result.IsDuplicate, "row %d", w.row)
	}

	require.Len(t, run.CandidateExclusion, 1)
	assert.Equal(t, 6, run.CandidateExclusion[0].Row)
	assert.Equal(t, domain.FieldInvoiceDate, run.CandidateExclusion[0].Field)
	require.Len(t, run.ReferenceExclusion, 1)
	assert.Equal(t, 3, run.ReferenceExclusion[0].Row)

	assert.Equal(t, domain.RunSummary{
		ReferenceRows:     3,
		ReferenceExcluded: 1,
		CandidateRows:     6,
		CandidateExcluded: 1,
		Duplicates:        4,
		Unique:            1,
		ByRule: map[domain.MatchRule]int{
			domain.RuleDateAmountSupplierNumber: 1,
			domain.RuleDateAmountSupplier:       1,
			domain.RuleNumberAmountSupplier:     1,
			domain.RuleNumberDateSupplier:       1,
			domain.RuleUnique:                   1,
		},
	}, run.Summary)
	assert.False(t, run.CompletedAt.Before(run.StartedAt))

	f.store.AssertExpectations(t)
	f.tables.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestCheckService_Run_FileReference(t *testing.T) {
	f := newFixture(t, false)
	refSrc := port.SourceRef{Location: "/exports/invoices.csv"}
	f.tables.On("Load", mock.Anything, refSrc).Return(&domain.Table{
		Name:    "invoices.csv",
		Columns: []string{"Supplier Number", "Gross Amount", "Invoice Date", "Invoice Number"},
		Rows:    [][]string{{"S100", "1250.00", "2024-01-15", "INV-001"}},
	}, nil)
	f.tables.On("Load", mock.Anything, candidateRef).Return(candidateTable(), nil)
	f.notifier.On("SendRunSummary", mock.Anything, mock.Anything).Return(nil)

	run, err := f.svc.Run(context.Background(), service.CheckInput{Reference: refSrc, Candidate: candidateRef})

	require.NoError(t, err)
	assert.Equal(t, "/exports/invoices.csv", run.ReferenceSource)
	assert.Equal(t, 4, run.Summary.Duplicates)
	assert.Equal(t, 1, run.Summary.Unique)
}

func TestCheckService_Run_ReferenceStoreFailureIsFatal(t *testing.T) {
	f := newFixture(t, true)
	f.store.On("LoadReference", mock.Anything).Return(nil, errors.New("connection refused"))

	run, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})

	assert.Nil(t, run)
	assert.ErrorIs(t, err, domain.ErrSourceAccess)
	f.tables.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendRunSummary", mock.Anything, mock.Anything)
}

func TestCheckService_Run_NoStoreConfigured(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestCheckService_Run_CandidateFailureIsFatal(t *testing.T) {
	f := newFixture(t, true)
	f.store.On("LoadReference", mock.Anything).Return(referenceRows(), nil)
	f.tables.On("Load", mock.Anything, candidateRef).Return(nil, domain.ErrSourceAccess)

	run, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})

	assert.Nil(t, run)
	assert.ErrorIs(t, err, domain.ErrSourceAccess)
}

func TestCheckService_Run_MissingColumn(t *testing.T) {
	f := newFixture(t, true)
	f.store.On("LoadReference", mock.Anything).Return(referenceRows(), nil)
	f.tables.On("Load", mock.Anything, candidateRef).Return(&domain.Table{
		Name:    "batch.xlsx",
		Columns: []string{"Invoice Number", "Invoice Date", "Supplier Number"},
	}, nil)

	_, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})

	assert.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestCheckService_Run_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, true)
	f.store.On("LoadReference", mock.Anything).Return(referenceRows(), nil)
	f.tables.On("Load", mock.Anything, candidateRef).Return(candidateTable(), nil)
	f.notifier.On("SendRunSummary", mock.Anything, mock.Anything).Return(errors.New("ses throttled"))

	run, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})

	require.NoError(t, err)
	assert.NotNil(t, run)
}

func completedRun(t *testing.T, f *fixture) *domain.CheckRun {
	t.Helper()
	f.store.On("LoadReference", mock.Anything).Return(referenceRows(), nil)
	f.tables.On("Load", mock.Anything, candidateRef).Return(candidateTable(), nil)
	f.notifier.On("SendRunSummary", mock.Anything, mock.Anything).Return(nil)

	run, err := f.svc.Run(context.Background(), service.CheckInput{Candidate: candidateRef})
	require.NoError(t, err)
	return run
}

func TestCheckService_Merge_AppendsUniqueOnly(t *testing.T) {
	f := newFixture(t, true)
	run := completedRun(t, f)

	merged := &domain.MergeResult{
		Mode:     domain.MergeModeAtomic,
		Status:   domain.MergeStatusSuccess,
		Inserted: 1,
		Rows:     []domain.MergeRowResult{{Row: 5, Outcome: domain.MergeOutcomeInserted}},
	}
	f.store.On("Append", mock.Anything, mock.MatchedBy(func(recs []domain.InvoiceRecord) bool {
		return len(recs) == 1 && recs[0].Row == 5 && recs[0].InvoiceNumber == "INV-500"
	}), domain.MergeModeAtomic).Return(merged, nil)

	result, err := f.svc.Merge(context.Background(), run, nil)

	require.NoError(t, err)
	assert.Equal(t, merged, result)
	require.NotNil(t, run.Merged)
	assert.Equal(t, merged.Rows, run.Merged.Rows)
	assert.Equal(t, domain.MergeStatusSuccess, run.Merged.Status)
	assert.Equal(t, 1, run.Merged.Inserted)
	f.store.AssertExpectations(t)
}

func TestCheckService_Merge_AlreadyMerged(t *testing.T) {
	f := newFixture(t, true)
	run := completedRun(t, f)
	run.Merged = &domain.MergeResult{
		Status: domain.MergeStatusSuccess,
		Rows:   []domain.MergeRowResult{{Row: 5, Outcome: domain.MergeOutcomeInserted}},
	}

	_, err := f.svc.Merge(context.Background(), run, nil)

	assert.ErrorIs(t, err, domain.ErrAlreadyMerged)
	f.store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

// twoUniqueRun has two UNIQUE candidates, rows 2 and 3, and one duplicate.
func twoUniqueRun() *domain.CheckRun {
	return &domain.CheckRun{
		Results: []domain.CandidateResult{
			{Record: domain.InvoiceRecord{Row: 1, InvoiceNumber: "A"}, Result: domain.MatchResult{IsDuplicate: true, Rule: domain.RuleDateAmountSupplier}},
			{Record: domain.InvoiceRecord{Row: 2, InvoiceNumber: "B"}, Result: domain.MatchResult{Rule: domain.RuleUnique}},
			{Record: domain.InvoiceRecord{Row: 3, InvoiceNumber: "C"}, Result: domain.MatchResult{Rule: domain.RuleUnique}},
		},
	}
}

func onlyRows(rows ...int) interface{} {
	return mock.MatchedBy(func(recs []domain.InvoiceRecord) bool {
		if len(recs) != len(rows) {
			return false
		}
		for i, r := range recs {
			if r.Row != rows[i] {
				return false
			}
		}
		return true
	})
}

func mergeOf(mode domain.MergeMode, rows ...domain.MergeRowResult) *domain.MergeResult {
	m := &domain.MergeResult{Mode: mode, Rows: rows}
	m.Tally()
	return m
}

func TestCheckService_Merge_InPartsMergesRemainingRows(t *testing.T) {
	f := newFixture(t, true)
	run := twoUniqueRun()
	f.store.On("Append", mock.Anything, onlyRows(2), domain.MergeModeAtomic).
		Return(mergeOf(domain.MergeModeAtomic, domain.MergeRowResult{Row: 2, Outcome: domain.MergeOutcomeInserted}), nil).Once()
	f.store.On("Append", mock.Anything, onlyRows(3), domain.MergeModeAtomic).
		Return(mergeOf(domain.MergeModeAtomic, domain.MergeRowResult{Row: 3, Outcome: domain.MergeOutcomeInserted}), nil).Once()

	first, err := f.svc.Merge(context.Background(), run, []int{2})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := f.svc.Merge(context.Background(), run, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Inserted)

	require.NotNil(t, run.Merged)
	assert.Equal(t, 2, run.Merged.Inserted)
	assert.Equal(t, domain.MergeStatusSuccess, run.Merged.Status)
	assert.Equal(t, []domain.MergeRowResult{
		{Row: 2, Outcome: domain.MergeOutcomeInserted},
		{Row: 3, Outcome: domain.MergeOutcomeInserted},
	}, run.Merged.Rows)

	_, err = f.svc.Merge(context.Background(), run, nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyMerged)
	_, err = f.svc.Merge(context.Background(), run, []int{2})
	assert.ErrorIs(t, err, domain.ErrAlreadyMerged)
	f.store.AssertExpectations(t)
}

func TestCheckService_Merge_RetriesFailedRows(t *testing.T) {
	f := newFixture(t, true)
	run := twoUniqueRun()
	run.Merged = mergeOf(domain.MergeModePerRow,
		domain.MergeRowResult{Row: 2, Outcome: domain.MergeOutcomeInserted},
		domain.MergeRowResult{Row: 3, Outcome: domain.MergeOutcomeFailed, Error: "constraint"},
	)
	previous := run.Merged
	f.store.On("Append", mock.Anything, onlyRows(3), domain.MergeModeAtomic).
		Return(mergeOf(domain.MergeModeAtomic, domain.MergeRowResult{Row: 3, Outcome: domain.MergeOutcomeInserted}), nil).Once()

	_, err := f.svc.Merge(context.Background(), run, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.MergeStatusSuccess, run.Merged.Status)
	assert.Equal(t, 2, run.Merged.Inserted)
	assert.Equal(t, 0, run.Merged.Failed)
	assert.Equal(t, domain.MergeStatusPartial, previous.Status, "earlier result is not modified")
	f.store.AssertExpectations(t)
}

func TestCheckService_Merge_RowsSelectDuplicatesOnly(t *testing.T) {
	f := newFixture(t, true)
	run := completedRun(t, f)

	_, err := f.svc.Merge(context.Background(), run, []int{1, 2})

	assert.ErrorIs(t, err, domain.ErrNothingToMerge)
}

func TestCheckService_Merge_NoStore(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.Merge(context.Background(), &domain.CheckRun{}, nil)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestCheckService_Merge_StoreError(t *testing.T) {
	f := newFixture(t, true)
	run := completedRun(t, f)
	f.store.On("Append", mock.Anything, mock.Anything, domain.MergeModeAtomic).Return(nil, errors.New("disk full"))

	_, err := f.svc.Merge(context.Background(), run, nil)

	assert.Error(t, err)
	assert.Nil(t, run.Merged)
}

func TestCheckService_Export(t *testing.T) {
	f := newFixture(t, true)
	run := &domain.CheckRun{}
	var buf bytes.Buffer
	f.csv.On("Export", &buf, run).Return(nil)

	require.NoError(t, f.svc.Export(run, domain.FileTypeCSV, &buf))

	err := f.svc.Export(run, domain.FileTypeXLSX, &buf)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}
