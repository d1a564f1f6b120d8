package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
	"dupcheck/internal/report"
	"dupcheck/internal/service"
	"dupcheck/internal/state"
	s3storage "dupcheck/internal/storage/s3"
)

type checkOptions struct {
	reference  string
	candidate  string
	sheet      string
	useLast    bool
	reportPath string
	format     string
	showUnique bool
	merge      bool
	yes        bool
	jsonOut    bool
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [candidate]",
		Short: "Check a candidate batch for duplicate invoices",
		Long: `Check compares every row of the candidate batch against the reference set.

The reference is the configured reference store unless --reference names a
spreadsheet, CSV, SQLite store file or s3://bucket/key object. Rows whose
fields cannot be read are excluded and reported, never matched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.candidate = args[0]
			}
			return withApp(root, func(a *app) error {
				return runCheck(cmd, a, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.reference, "reference", "r", "", `reference source, or "store" for the reference store`)
	f.StringVarP(&opts.candidate, "candidate", "c", "", "candidate batch to check")
	f.StringVar(&opts.sheet, "sheet", "", "worksheet to read from xlsx candidates (default: first sheet)")
	f.BoolVar(&opts.useLast, "use-last", false, "re-use the sources of the previous run")
	f.StringVarP(&opts.reportPath, "report", "o", "", "write the annotated report to a file, directory or s3:// URI")
	f.StringVar(&opts.format, "format", "", "report format: xlsx or csv (default: from --report extension, else xlsx)")
	f.BoolVar(&opts.showUnique, "show-unique", false, "list the unique candidates")
	f.BoolVar(&opts.merge, "merge", false, "merge unique candidates into the reference store")
	f.BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation before merging")
	f.BoolVar(&opts.jsonOut, "json", false, "print the run as JSON")
	return cmd
}

func runCheck(cmd *cobra.Command, a *app, opts *checkOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	states, err := state.NewFileStore(a.cfg.State.Path)
	if err != nil {
		return err
	}
	if err := resolveSources(cmd, a, states, opts); err != nil {
		return err
	}
	if opts.candidate == "" {
		return errors.New("no candidate batch given: pass --candidate, a positional argument or --use-last")
	}

	refLocation := opts.reference
	fromStore := refLocation == "" || refLocation == service.ReferenceStoreSource || a.useStoreFile(refLocation)
	if fromStore {
		refLocation = service.ReferenceStoreSource
	}
	needS3 := s3storage.IsURI(refLocation) || s3storage.IsURI(opts.candidate) || s3storage.IsURI(opts.reportPath)

	svc, err := a.checkService(fromStore || opts.merge, needS3)
	if err != nil {
		return err
	}

	run, err := svc.Run(ctx, service.CheckInput{
		Reference: port.SourceRef{Location: refLocation},
		Candidate: port.SourceRef{Location: opts.candidate, Sheet: opts.sheet},
	})
	if err != nil {
		return err
	}

	if err := states.Save(&port.LastUsed{Reference: opts.reference, Candidate: opts.candidate, Sheet: opts.sheet}); err != nil {
		a.logger.Warn("failed to remember sources", zap.String("path", states.Path()), zap.Error(err))
	}

	if opts.reportPath != "" {
		dest, err := writeReport(cmd, a, svc, run, opts)
		if err != nil {
			return err
		}
		if !opts.jsonOut {
			_, _ = fmt.Fprintf(out, "Report written to %s\n", dest)
		}
	}

	if opts.merge {
		if err := mergeRun(cmd, svc, run, opts); err != nil {
			return err
		}
	}

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	printSummary(out, run)
	if opts.showUnique {
		printUnique(out, run, matcher.NewKeyGenerator(a.cfg.Match.AmountScale))
	}
	if run.Merged != nil {
		printMerge(out, run.Merged)
	}
	return nil
}

// resolveSources fills unset sources from the previous run when --use-last
// is given, then from configuration.
func resolveSources(cmd *cobra.Command, a *app, states port.StateStore, opts *checkOptions) error {
	if opts.useLast {
		last, err := states.Load()
		if err != nil {
			return err
		}
		if last.Candidate == "" {
			return errors.New("no previous run remembered")
		}
		if opts.reference == "" {
			opts.reference = last.Reference
		}
		if opts.candidate == "" {
			opts.candidate = last.Candidate
		}
		if opts.sheet == "" {
			opts.sheet = last.Sheet
		}
		if !opts.jsonOut {
			printLastUsed(cmd.OutOrStdout(), last)
		}
	}
	if opts.reference == "" {
		opts.reference = a.cfg.Source.Reference
	}
	if opts.candidate == "" {
		opts.candidate = a.cfg.Source.Candidate
	}
	if opts.sheet == "" {
		opts.sheet = a.cfg.Source.Sheet
	}
	return nil
}

func printLastUsed(w io.Writer, last *port.LastUsed) {
	ref := last.Reference
	if ref == "" {
		ref = service.ReferenceStoreSource
	}
	_, _ = fmt.Fprintf(w, "Using reference %s", ref)
	if mod, ok := state.ModTime(last.Reference); ok {
		_, _ = fmt.Fprintf(w, " (modified %s)", mod.Format(time.DateTime))
	}
	_, _ = fmt.Fprintf(w, "\nUsing candidate %s\n", last.Candidate)
}

// reportFileType picks the report format from --format, then the --report
// extension, defaulting to xlsx.
func reportFileType(opts *checkOptions) (domain.FileType, error) {
	if opts.format != "" {
		ft := domain.FileType(strings.ToLower(opts.format))
		if _, ok := domain.ContentTypes[ft]; !ok {
			return "", fmt.Errorf("report format %q: %w", opts.format, domain.ErrUnsupportedFileType)
		}
		return ft, nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.reportPath)), ".")
	if ft, ok := domain.AllowedExtensions[ext]; ok {
		return ft, nil
	}
	return domain.FileTypeXLSX, nil
}

// writeReport exports the run and stores it locally or in S3, returning
// where it went.
func writeReport(cmd *cobra.Command, a *app, svc service.CheckService, run *domain.CheckRun, opts *checkOptions) (string, error) {
	fileType, err := reportFileType(opts)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := svc.Export(run, fileType, &buf); err != nil {
		return "", fmt.Errorf("exporting report: %w", err)
	}
	filename := report.BuildFilename(report.DefaultBaseName, fileType, run.CompletedAt)

	if bucket, key, ok := s3storage.ParseURI(opts.reportPath); ok {
		if key == "" || strings.HasSuffix(key, "/") {
			key += filename
		}
		storage, err := a.objectStorage()
		if err != nil {
			return "", fmt.Errorf("initializing S3 client: %w", err)
		}
		result, err := storage.Upload(cmd.Context(), port.UploadInput{
			Bucket:      bucket,
			Key:         key,
			Body:        &buf,
			ContentType: domain.ContentTypes[fileType],
		})
		if err != nil {
			a.logger.Error("report upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
			return "", fmt.Errorf("%s: %w", opts.reportPath, domain.ErrUploadFailed)
		}
		return result.Location, nil
	}

	dest := opts.reportPath
	if info, err := os.Stat(dest); (err == nil && info.IsDir()) || strings.HasSuffix(dest, string(os.PathSeparator)) {
		dest = filepath.Join(dest, filename)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return dest, nil
}

func mergeRun(cmd *cobra.Command, svc service.CheckService, run *domain.CheckRun, opts *checkOptions) error {
	if run.Summary.Unique == 0 {
		if !opts.jsonOut {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to merge: no unique candidates.")
		}
		return nil
	}
	if !opts.yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(),
			fmt.Sprintf("Merge %d unique invoice(s) into the reference store? [y/N] ", run.Summary.Unique))
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Merge cancelled.")
			return nil
		}
	}
	_, err := svc.Merge(cmd.Context(), run, nil)
	return err
}

func confirm(in io.Reader, prompt io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprint(prompt, question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func printSummary(w io.Writer, run *domain.CheckRun) {
	s := run.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Reference:\t%s\t%d rows, %d excluded\n", run.ReferenceSource, s.ReferenceRows, s.ReferenceExcluded)
	_, _ = fmt.Fprintf(tw, "Candidate:\t%s\t%d rows, %d excluded\n", run.CandidateSource, s.CandidateRows, s.CandidateExcluded)
	_, _ = fmt.Fprintf(tw, "Duplicates:\t%d\t\n", s.Duplicates)
	for _, rule := range []domain.MatchRule{
		domain.RuleDateAmountSupplierNumber,
		domain.RuleDateAmountSupplier,
		domain.RuleNumberAmountSupplier,
		domain.RuleNumberDateSupplier,
	} {
		if n := s.ByRule[rule]; n > 0 {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\t\n", rule, n)
		}
	}
	_, _ = fmt.Fprintf(tw, "Unique:\t%d\t\n", s.Unique)
	_ = tw.Flush()

	for _, ex := range run.CandidateExclusion {
		_, _ = fmt.Fprintf(w, "excluded candidate row %d: %s\n", ex.Row, ex.Reason)
	}
}

func printUnique(w io.Writer, run *domain.CheckRun, keys *matcher.KeyGenerator) {
	unique := run.Unique()
	if len(unique) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\nROW\tINVOICE NUMBER\tDATE\tAMOUNT\tSUPPLIER")
	for _, rec := range unique {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			rec.Row, rec.InvoiceNumber, keys.FormatDate(rec.InvoiceDate), keys.FormatAmount(rec.GrossAmount), rec.SupplierNumber)
	}
	_ = tw.Flush()
}

func printMerge(w io.Writer, m *domain.MergeResult) {
	_, _ = fmt.Fprintf(w, "Merge (%s): %s, %d inserted, %d already present, %d failed\n",
		m.Mode, m.Status, m.Inserted, m.Existing, m.Failed)
	for _, r := range m.Rows {
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "  row %d %s: %s\n", r.Row, r.Outcome, r.Error)
		}
	}
}
