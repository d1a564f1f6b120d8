package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"dupcheck/internal/config"
	"dupcheck/internal/csvexport"
	"dupcheck/internal/domain"
	"dupcheck/internal/email/noop"
	"dupcheck/internal/email/ses"
	"dupcheck/internal/logging"
	"dupcheck/internal/matcher"
	"dupcheck/internal/port"
	"dupcheck/internal/repository/sqlstore"
	"dupcheck/internal/service"
	s3storage "dupcheck/internal/storage/s3"
	"dupcheck/internal/tabular"
	"dupcheck/internal/xlsxexport"
)

// app holds configuration and the collaborators built from it for one
// command invocation.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db      *sqlx.DB
	store   port.ReferenceStore
	storage port.ObjectStorage
}

func newApp(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

// sqliteExtensions mark a reference location as a local store file rather
// than a spreadsheet export.
var sqliteExtensions = map[string]bool{".db": true, ".sqlite": true, ".sqlite3": true}

// useStoreFile points the store at a SQLite file given as the reference and
// reports whether location was such a file.
func (a *app) useStoreFile(location string) bool {
	if !sqliteExtensions[strings.ToLower(filepath.Ext(location))] {
		return false
	}
	a.cfg.Store.Driver = sqlstore.DriverSQLite
	a.cfg.Store.SQLitePath = location
	return true
}

// openStore connects to the reference store, applying migrations when
// configured and the store uses the default table.
func (a *app) openStore() (port.ReferenceStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	db, err := sqlstore.NewDB(&a.cfg.Store)
	if err != nil {
		return nil, err
	}
	if a.cfg.Store.AutoMigrate && a.cfg.Store.Table == sqlstore.DefaultTable {
		if err := sqlstore.Migrate(db, a.cfg.Store.Driver); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	a.db = db
	a.store = sqlstore.NewInvoiceRepo(db, a.cfg.Store.Driver, a.cfg.Store.Table, a.cfg.Match.AmountScale,
		logging.WithComponent(a.logger, "store"))
	return a.store, nil
}

// objectStorage returns the S3 client, creating it on first use.
func (a *app) objectStorage() (port.ObjectStorage, error) {
	if a.storage != nil {
		return a.storage, nil
	}
	client, err := s3storage.NewS3Client(&a.cfg.S3)
	if err != nil {
		return nil, err
	}
	a.storage = client
	return client, nil
}

func (a *app) notifier() (port.RunNotifier, error) {
	if a.cfg.Email.Provider == "ses" {
		return ses.NewSESSender(a.cfg.Email.Region, a.cfg.Email.FromAddress, a.cfg.Email.FromName, a.cfg.Email.Recipients)
	}
	return noop.NewNoopSender(logging.WithComponent(a.logger, "email")), nil
}

func (a *app) matchOptions() matcher.Options {
	opts := matcher.Options{
		DateLayouts:      a.cfg.Match.DateLayouts,
		AmountScale:      a.cfg.Match.AmountScale,
		ExcelSerialDates: a.cfg.Match.ExcelSerialDates,
	}
	if sep := a.cfg.Match.DecimalSeparator; sep != "" {
		opts.DecimalSeparator = rune(sep[0])
	}
	return opts
}

func (a *app) columns() tabular.ColumnMap {
	return tabular.ColumnMap{
		InvoiceNumber:  a.cfg.Columns.InvoiceNumber,
		InvoiceDate:    a.cfg.Columns.InvoiceDate,
		GrossAmount:    a.cfg.Columns.GrossAmount,
		SupplierNumber: a.cfg.Columns.SupplierNumber,
	}
}

// checkService wires the check service. withStore controls whether the
// reference store is opened; s3 whether remote sources can be read.
func (a *app) checkService(withStore, withS3 bool) (service.CheckService, error) {
	var storage port.ObjectStorage
	if withS3 {
		s, err := a.objectStorage()
		if err != nil {
			return nil, fmt.Errorf("initializing S3 client: %w", err)
		}
		storage = s
	}

	var store port.ReferenceStore
	if withStore {
		s, err := a.openStore()
		if err != nil {
			return nil, fmt.Errorf("opening reference store: %w", err)
		}
		store = s
	}

	notifier, err := a.notifier()
	if err != nil {
		return nil, fmt.Errorf("initializing notifier: %w", err)
	}

	maxBytes := a.cfg.S3.MaxFileSizeMB * 1024 * 1024
	return service.NewCheckService(service.CheckDeps{
		Matcher:   matcher.New(a.matchOptions()),
		Tables:    tabular.NewLoader(storage, maxBytes, logging.WithComponent(a.logger, "tabular")),
		Store:     store,
		Exporters: []port.ResultExporter{xlsxexport.NewExporter(), csvexport.NewExporter()},
		Notifier:  notifier,
		Columns:   a.columns(),
		MergeMode: domain.MergeMode(a.cfg.Store.MergeMode),
		Logger:    logging.WithComponent(a.logger, "check"),
	}), nil
}
