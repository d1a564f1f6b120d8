// Package tabular reads spreadsheet and CSV sources into domain tables and
// extracts the canonical invoice columns from them.
package tabular

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"dupcheck/internal/domain"
	"dupcheck/internal/port"
	s3storage "dupcheck/internal/storage/s3"
)

// Loader implements port.TableLoader for local files, s3:// objects and
// in-memory uploads.
type Loader struct {
	storage  port.ObjectStorage
	maxBytes int64
	logger   *zap.Logger
}

// NewLoader creates a Loader. storage may be nil, in which case s3:// sources
// are rejected. maxBytes <= 0 disables the size limit.
func NewLoader(storage port.ObjectStorage, maxBytes int64, logger *zap.Logger) *Loader {
	return &Loader{storage: storage, maxBytes: maxBytes, logger: logger}
}

// Load reads src into a Table. Any failure is fatal to the run and wraps
// domain.ErrSourceAccess or a more specific sentinel.
func (l *Loader) Load(ctx context.Context, src port.SourceRef) (*domain.Table, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(src.Location), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%s: %w; allowed: xlsx, xlsm, csv", src.Location, domain.ErrUnsupportedFileType)
	}

	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}

	var table *domain.Table
	switch fileType {
	case domain.FileTypeXLSX:
		table, err = readXLSX(bytes.NewReader(data), src.Sheet)
	default:
		table, err = readCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrSourceAccess, src.Location, err)
	}
	table.Name = filepath.Base(src.Location)

	l.logger.Debug("table loaded",
		zap.String("source", src.Location),
		zap.String("sheet", table.Sheet),
		zap.Int("columns", len(table.Columns)),
		zap.Int("rows", len(table.Rows)),
	)
	return table, nil
}

func (l *Loader) read(ctx context.Context, src port.SourceRef) ([]byte, error) {
	if src.Body != nil {
		return l.readLimited(src.Location, src.Body)
	}

	if bucket, key, ok := s3storage.ParseURI(src.Location); ok {
		if l.storage == nil {
			return nil, fmt.Errorf("%w: %s: object storage is not configured", domain.ErrSourceAccess, src.Location)
		}
		data, err := l.storage.Download(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceAccess, src.Location, err)
		}
		if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
			return nil, fmt.Errorf("%s: %w", src.Location, domain.ErrFileTooLarge)
		}
		return data, nil
	}

	f, err := os.Open(src.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceAccess, err)
	}
	defer func() { _ = f.Close() }()
	return l.readLimited(src.Location, f)
}

func (l *Loader) readLimited(name string, r io.Reader) ([]byte, error) {
	if l.maxBytes > 0 {
		r = io.LimitReader(r, l.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceAccess, name, err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrFileTooLarge)
	}
	return data, nil
}

// normalise trims headers, drops blank rows, names unlabelled overflow
// columns and pads every row to the header width.
func normalise(rows [][]string) (*domain.Table, error) {
	if len(rows) == 0 {
		return nil, domain.ErrEmptySource
	}
	t := &domain.Table{}
	for _, h := range rows[0] {
		t.Columns = append(t.Columns, strings.TrimSpace(h))
	}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		for len(t.Columns) < len(row) {
			t.Columns = append(t.Columns, fmt.Sprintf("Column %d", len(t.Columns)+1))
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Columns) == 0 {
		return nil, domain.ErrEmptySource
	}
	for i, row := range t.Rows {
		if len(row) < len(t.Columns) {
			padded := make([]string, len(t.Columns))
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
