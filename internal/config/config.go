package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Columns ColumnsConfig
	Match   MatchConfig
	Source  SourceConfig
	S3      S3Config
	Email   EmailConfig
	Log     LogConfig
	CORS    CORSConfig
	State   StateConfig
}

// ServerConfig holds settings for the local review server.
type ServerConfig struct {
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment" validate:"oneof=development production test"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb" validate:"gt=0"`
}

// StoreConfig holds reference store settings. Driver selects between a
// PostgreSQL server and a local SQLite file.
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"sslmode"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxIdle     int    `mapstructure:"max_idle"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	Table       string `mapstructure:"table" validate:"required,sqlident"`
	MergeMode   string `mapstructure:"merge_mode" validate:"oneof=atomic per_row"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (s *StoreConfig) DSN() string {
	if s.Driver == "sqlite" {
		return s.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode,
	)
}

// ColumnsConfig maps the canonical fields to source column headers.
type ColumnsConfig struct {
	InvoiceNumber  string `mapstructure:"invoice_number" validate:"required"`
	InvoiceDate    string `mapstructure:"invoice_date" validate:"required"`
	GrossAmount    string `mapstructure:"gross_amount" validate:"required"`
	SupplierNumber string `mapstructure:"supplier_number" validate:"required"`
}

// MatchConfig holds field coercion and key formatting settings.
type MatchConfig struct {
	DateLayouts      []string `mapstructure:"date_layouts"`
	AmountScale      int32    `mapstructure:"amount_scale" validate:"gte=0,lte=8"`
	DecimalSeparator string   `mapstructure:"decimal_separator" validate:"oneof=. 0x2C"`
	ExcelSerialDates bool     `mapstructure:"excel_serial_dates"`
}

// SourceConfig holds default source identifiers. Either may be a local path,
// an s3://bucket/key URI, or "store" for the configured reference store.
type SourceConfig struct {
	Reference string `mapstructure:"reference"`
	Candidate string `mapstructure:"candidate"`
	Sheet     string `mapstructure:"sheet"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// EmailConfig holds run-summary delivery settings.
type EmailConfig struct {
	Provider    string   `mapstructure:"provider" validate:"oneof=noop ses"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address" validate:"omitempty,email"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients" validate:"dive,email"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// CORSConfig holds CORS settings for the review server.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StateConfig locates the file remembering last-used sources.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads configuration from an optional config file, a .env file and
// environment variables with the DUPCHECK_ prefix, in increasing precedence.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DUPCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":              "DUPCHECK_SERVER_PORT",
		"server.read_timeout":      "DUPCHECK_SERVER_READ_TIMEOUT",
		"server.write_timeout":     "DUPCHECK_SERVER_WRITE_TIMEOUT",
		"server.environment":       "DUPCHECK_SERVER_ENVIRONMENT",
		"server.max_upload_mb":     "DUPCHECK_SERVER_MAX_UPLOAD_MB",
		"store.driver":             "DUPCHECK_STORE_DRIVER",
		"store.host":               "DUPCHECK_STORE_HOST",
		"store.port":               "DUPCHECK_STORE_PORT",
		"store.user":               "DUPCHECK_STORE_USER",
		"store.password":           "DUPCHECK_STORE_PASSWORD",
		"store.name":               "DUPCHECK_STORE_NAME",
		"store.sslmode":            "DUPCHECK_STORE_SSLMODE",
		"store.max_open":           "DUPCHECK_STORE_MAX_OPEN",
		"store.max_idle":           "DUPCHECK_STORE_MAX_IDLE",
		"store.sqlite_path":        "DUPCHECK_STORE_SQLITE_PATH",
		"store.table":              "DUPCHECK_STORE_TABLE",
		"store.merge_mode":         "DUPCHECK_STORE_MERGE_MODE",
		"store.auto_migrate":       "DUPCHECK_STORE_AUTO_MIGRATE",
		"columns.invoice_number":   "DUPCHECK_COLUMNS_INVOICE_NUMBER",
		"columns.invoice_date":     "DUPCHECK_COLUMNS_INVOICE_DATE",
		"columns.gross_amount":     "DUPCHECK_COLUMNS_GROSS_AMOUNT",
		"columns.supplier_number":  "DUPCHECK_COLUMNS_SUPPLIER_NUMBER",
		"match.date_layouts":       "DUPCHECK_MATCH_DATE_LAYOUTS",
		"match.amount_scale":       "DUPCHECK_MATCH_AMOUNT_SCALE",
		"match.decimal_separator":  "DUPCHECK_MATCH_DECIMAL_SEPARATOR",
		"match.excel_serial_dates": "DUPCHECK_MATCH_EXCEL_SERIAL_DATES",
		"source.reference":         "DUPCHECK_SOURCE_REFERENCE",
		"source.candidate":         "DUPCHECK_SOURCE_CANDIDATE",
		"source.sheet":             "DUPCHECK_SOURCE_SHEET",
		"s3.region":                "DUPCHECK_S3_REGION",
		"s3.endpoint":              "DUPCHECK_S3_ENDPOINT",
		"s3.access_key":            "DUPCHECK_S3_ACCESS_KEY",
		"s3.secret_key":            "DUPCHECK_S3_SECRET_KEY",
		"s3.max_file_size_mb":      "DUPCHECK_S3_MAX_FILE_SIZE_MB",
		"email.provider":           "DUPCHECK_EMAIL_PROVIDER",
		"email.region":             "DUPCHECK_EMAIL_REGION",
		"email.from_address":       "DUPCHECK_EMAIL_FROM_ADDRESS",
		"email.from_name":          "DUPCHECK_EMAIL_FROM_NAME",
		"email.recipients":         "DUPCHECK_EMAIL_RECIPIENTS",
		"log.level":                "DUPCHECK_LOG_LEVEL",
		"log.format":               "DUPCHECK_LOG_FORMAT",
		"cors.allowed_origins":     "DUPCHECK_CORS_ALLOWED_ORIGINS",
		"state.path":               "DUPCHECK_STATE_PATH",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}
	cfg.Server = ServerConfig{
		Port:         v.GetString("server.port"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
	}
	cfg.Store = StoreConfig{
		Driver:      v.GetString("store.driver"),
		Host:        v.GetString("store.host"),
		Port:        v.GetInt("store.port"),
		User:        v.GetString("store.user"),
		Password:    v.GetString("store.password"),
		Name:        v.GetString("store.name"),
		SSLMode:     v.GetString("store.sslmode"),
		MaxOpen:     v.GetInt("store.max_open"),
		MaxIdle:     v.GetInt("store.max_idle"),
		SQLitePath:  v.GetString("store.sqlite_path"),
		Table:       v.GetString("store.table"),
		MergeMode:   v.GetString("store.merge_mode"),
		AutoMigrate: v.GetBool("store.auto_migrate"),
	}
	cfg.Columns = ColumnsConfig{
		InvoiceNumber:  v.GetString("columns.invoice_number"),
		InvoiceDate:    v.GetString("columns.invoice_date"),
		GrossAmount:    v.GetString("columns.gross_amount"),
		SupplierNumber: v.GetString("columns.supplier_number"),
	}
	cfg.Match = MatchConfig{
		DateLayouts:      listValue(v, "match.date_layouts", "|"),
		AmountScale:      v.GetInt32("match.amount_scale"),
		DecimalSeparator: v.GetString("match.decimal_separator"),
		ExcelSerialDates: v.GetBool("match.excel_serial_dates"),
	}
	cfg.Source = SourceConfig{
		Reference: v.GetString("source.reference"),
		Candidate: v.GetString("source.candidate"),
		Sheet:     v.GetString("source.sheet"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		Recipients:  listValue(v, "email.recipients", ","),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: listValue(v, "cors.allowed_origins", ","),
	}
	cfg.State = StateConfig{
		Path: v.GetString("state.path"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 50)

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.host", "localhost")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.user", "dupcheck")
	v.SetDefault("store.password", "dupcheck_secret")
	v.SetDefault("store.name", "dupcheck_db")
	v.SetDefault("store.sslmode", "disable")
	v.SetDefault("store.max_open", 5)
	v.SetDefault("store.max_idle", 2)
	v.SetDefault("store.sqlite_path", "invoices.db")
	v.SetDefault("store.table", "invoices")
	v.SetDefault("store.merge_mode", "atomic")
	v.SetDefault("store.auto_migrate", true)

	// Column defaults follow the usual accounts-payable export headers
	v.SetDefault("columns.invoice_number", "Invoice Number")
	v.SetDefault("columns.invoice_date", "Invoice Date")
	v.SetDefault("columns.gross_amount", "Gross Amount")
	v.SetDefault("columns.supplier_number", "Supplier Number")

	// Match defaults
	v.SetDefault("match.date_layouts", "")
	v.SetDefault("match.amount_scale", 2)
	v.SetDefault("match.decimal_separator", ".")
	v.SetDefault("match.excel_serial_dates", true)

	// Source defaults
	v.SetDefault("source.reference", "store")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 50)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@dupcheck.local")
	v.SetDefault("email.from_name", "dupcheck")
	v.SetDefault("email.recipients", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for the review page)
	v.SetDefault("cors.allowed_origins", "http://localhost:8080,http://127.0.0.1:8080")

	// State defaults
	v.SetDefault("state.path", "")
}

var validate = newValidator()

// sqlIdentifier restricts table names, which are interpolated into SQL.
var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdentifier.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// listValue reads key either as a list from a config file or as a
// separated string from the environment.
func listValue(v *viper.Viper, key, sep string) []string {
	if _, ok := v.Get(key).([]interface{}); ok {
		return v.GetStringSlice(key)
	}
	return splitList(v.GetString(key), sep)
}

// splitList splits a separated string, trimming and dropping empty items.
func splitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
