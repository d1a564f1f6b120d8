package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
	"dupcheck/internal/tabular"
)

// ReferenceStoreSource selects the configured reference store as the
// reference set instead of a file.
const ReferenceStoreSource = "store"

// CheckInput names the two sides of a check run. An empty reference
// location means the reference store.
type CheckInput struct {
	Reference port.SourceRef
	Candidate port.SourceRef
}

// CheckService runs duplicate checks and merges unique candidates.
type CheckService interface {
	Run(ctx context.Context, input CheckInput) (*domain.CheckRun, error)
	Merge(ctx context.Context, run *domain.CheckRun, rows []int) (*domain.MergeResult, error)
	Export(run *domain.CheckRun, fileType domain.FileType, w io.Writer) error
}

// CheckDeps holds the collaborators of the check service. Store and
// Notifier are optional.
type CheckDeps struct {
	Matcher   *matcher.Matcher
	Tables    port.TableLoader
	Store     port.ReferenceStore
	Exporters []port.ResultExporter
	Notifier  port.RunNotifier
	Columns   tabular.ColumnMap
	MergeMode domain.MergeMode
	Logger    *zap.Logger
}

type checkService struct {
	// mu serialises runs and merges so a merge never writes to the store
	// while a run is reading it.
	mu sync.Mutex

	matcher   *matcher.Matcher
	tables    port.TableLoader
	store     port.ReferenceStore
	exporters map[domain.FileType]port.ResultExporter
	notifier  port.RunNotifier
	columns   tabular.ColumnMap
	mergeMode domain.MergeMode
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckService creates a new CheckService.
func NewCheckService(deps CheckDeps) CheckService {
	exporters := make(map[domain.FileType]port.ResultExporter, len(deps.Exporters))
	for _, e := range deps.Exporters {
		exporters[e.FileType()] = e
	}
	mode := deps.MergeMode
	if mode == "" {
		mode = domain.MergeModeAtomic
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &checkService{
		matcher:   deps.Matcher,
		tables:    deps.Tables,
		store:     deps.Store,
		exporters: exporters,
		notifier:  deps.Notifier,
		columns:   deps.Columns,
		mergeMode: mode,
		logger:    logger,
		now:       time.Now,
	}
}

// Run loads both sides, matches every candidate and returns the annotated
// run. A source that cannot be read fails the whole run.
func (s *checkService) Run(ctx context.Context, input CheckInput) (*domain.CheckRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &domain.CheckRun{
		ID:              uuid.New(),
		ReferenceSource: referenceName(input.Reference),
		CandidateSource: input.Candidate.Location,
		StartedAt:       s.now().UTC(),
	}
	log := s.logger.With(zap.String("run_id", run.ID.String()))

	refRaws, err := s.loadReference(ctx, input.Reference)
	if err != nil {
		return nil, err
	}
	index, refs, refExcluded := s.matcher.Index(refRaws)
	run.ReferenceExclusion = refExcluded
	log.Info("reference indexed",
		zap.String("source", run.ReferenceSource),
		zap.Int("rows", len(refRaws)),
		zap.Int("indexed", index.Len()),
		zap.Int("excluded", len(refExcluded)),
	)

	table, err := s.tables.Load(ctx, input.Candidate)
	if err != nil {
		return nil, fmt.Errorf("loading candidate batch: %w", err)
	}
	candRaws, err := tabular.Extract(table, s.columns)
	if err != nil {
		return nil, fmt.Errorf("loading candidate batch: %w", err)
	}
	run.Candidates = table

	candidates, candExcluded := s.matcher.Prepare(candRaws)
	run.CandidateExclusion = candExcluded

	results, err := index.MatchAll(candidates)
	if err != nil {
		return nil, fmt.Errorf("matching candidates: %w", err)
	}
	run.Results = results
	run.Summary = summarise(len(refs)+len(refExcluded), len(refExcluded), len(candRaws), len(candExcluded), results)
	run.CompletedAt = s.now().UTC()

	log.Info("check run completed",
		zap.String("candidate", run.CandidateSource),
		zap.Int("candidates", run.Summary.CandidateRows),
		zap.Int("excluded", run.Summary.CandidateExcluded),
		zap.Int("duplicates", run.Summary.Duplicates),
		zap.Int("unique", run.Summary.Unique),
		zap.Duration("elapsed", run.CompletedAt.Sub(run.StartedAt)),
	)

	if s.notifier != nil {
		if err := s.notifier.SendRunSummary(ctx, run); err != nil {
			log.Warn("failed to send run summary", zap.Error(err))
		}
	}
	return run, nil
}

func (s *checkService) loadReference(ctx context.Context, ref port.SourceRef) ([]domain.RawRecord, error) {
	if isStore(ref) {
		if s.store == nil {
			return nil, fmt.Errorf("loading reference set: %w", domain.ErrStoreUnavailable)
		}
		raws, err := s.store.LoadReference(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading reference set: %w", sourceAccess(err))
		}
		return raws, nil
	}

	table, err := s.tables.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("loading reference set: %w", err)
	}
	raws, err := tabular.Extract(table, s.columns)
	if err != nil {
		return nil, fmt.Errorf("loading reference set: %w", err)
	}
	return raws, nil
}

// Merge appends the UNIQUE candidates of run to the reference store. When
// rows is non-empty only those candidate rows are merged; rows that are not
// UNIQUE are ignored. Rows already inserted or found existing by an earlier
// merge of the same run are skipped, so a run can be merged in parts and
// failed rows retried. run.Merged accumulates the outcome of every merge;
// the returned result covers this call only.
func (s *checkService) Merge(ctx context.Context, run *domain.CheckRun, rows []int) (*domain.MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil, domain.ErrStoreUnavailable
	}

	selected := run.Unique()
	if len(rows) > 0 {
		selected = slices.DeleteFunc(selected, func(r domain.InvoiceRecord) bool {
			return !slices.Contains(rows, r.Row)
		})
	}
	if len(selected) == 0 {
		return nil, domain.ErrNothingToMerge
	}

	done := mergedRows(run.Merged)
	pending := slices.DeleteFunc(selected, func(r domain.InvoiceRecord) bool {
		return done[r.Row]
	})
	if len(pending) == 0 {
		return nil, domain.ErrAlreadyMerged
	}

	result, err := s.store.Append(ctx, pending, s.mergeMode)
	if err != nil {
		return nil, fmt.Errorf("merging unique candidates: %w", err)
	}
	run.Merged = accumulate(run.Merged, result)

	s.logger.Info("merge completed",
		zap.String("run_id", run.ID.String()),
		zap.String("mode", string(result.Mode)),
		zap.String("status", string(result.Status)),
		zap.Int("inserted", result.Inserted),
		zap.Int("existing", result.Existing),
		zap.Int("failed", result.Failed),
		zap.Int("previously_merged", len(done)),
	)
	return result, nil
}

// mergedRows returns the candidate rows that an earlier merge persisted.
func mergedRows(prev *domain.MergeResult) map[int]bool {
	done := make(map[int]bool)
	if prev == nil {
		return done
	}
	for _, r := range prev.Rows {
		if r.Outcome == domain.MergeOutcomeInserted || r.Outcome == domain.MergeOutcomeAlreadyExists {
			done[r.Row] = true
		}
	}
	return done
}

// accumulate folds next into a new MergeResult, replacing earlier outcomes
// of retried rows. prev is left untouched.
func accumulate(prev, next *domain.MergeResult) *domain.MergeResult {
	out := &domain.MergeResult{Mode: next.Mode}
	retried := make(map[int]bool, len(next.Rows))
	for _, r := range next.Rows {
		retried[r.Row] = true
	}
	if prev != nil {
		for _, r := range prev.Rows {
			if !retried[r.Row] {
				out.Rows = append(out.Rows, r)
			}
		}
	}
	out.Rows = append(out.Rows, next.Rows...)
	slices.SortFunc(out.Rows, func(a, b domain.MergeRowResult) int { return a.Row - b.Row })
	out.Tally()
	return out
}

// Export writes the annotated report for run in the requested format.
func (s *checkService) Export(run *domain.CheckRun, fileType domain.FileType, w io.Writer) error {
	exp, ok := s.exporters[fileType]
	if !ok {
		return fmt.Errorf("exporting %s: %w", fileType, domain.ErrUnsupportedFileType)
	}
	if err := exp.Export(w, run); err != nil {
		return fmt.Errorf("exporting %s: %w", fileType, err)
	}
	return nil
}

func summarise(refRows, refExcluded, candRows, candExcluded int, results []domain.CandidateResult) domain.RunSummary {
	sum := domain.RunSummary{
		ReferenceRows:     refRows,
		ReferenceExcluded: refExcluded,
		CandidateRows:     candRows,
		CandidateExcluded: candExcluded,
		ByRule:            make(map[domain.MatchRule]int),
	}
	for _, r := range results {
		sum.ByRule[r.Result.Rule]++
		if r.Result.IsDuplicate {
			sum.Duplicates++
		} else {
			sum.Unique++
		}
	}
	return sum
}

func isStore(ref port.SourceRef) bool {
	return ref.Body == nil && (ref.Location == "" || ref.Location == ReferenceStoreSource)
}

func referenceName(ref port.SourceRef) string {
	if isStore(ref) {
		return ReferenceStoreSource
	}
	return ref.Location
}

func sourceAccess(err error) error {
	if errors.Is(err, domain.ErrSourceAccess) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSourceAccess, err)
}
