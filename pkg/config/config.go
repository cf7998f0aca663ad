// Package config resolves run settings from defaults, an optional config
// file, LIFELOG_MIGRATE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	// Embedded zone database so timezone validation works on minimal hosts.
	_ "time/tzdata"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "LIFELOG_MIGRATE"
	AppName   = "lifelog-migrate"
	dateFmt   = "2006-01-02"
)

// Keys double as flag names; env names are derived by upper-casing and
// replacing "-" with "_".
const (
	KeyConfig            = "config"
	KeyLimitlessAPIKey   = "limitless-api-key"
	KeyOmiAPIKey         = "omi-api-key"
	KeyLimitlessBaseURL  = "limitless-base-url"
	KeyOmiBaseURL        = "omi-base-url"
	KeyTimeout           = "timeout"
	KeyTimezone          = "timezone"
	KeyDate              = "date"
	KeyFromDate          = "from-date"
	KeyToDate            = "to-date"
	KeyAll               = "all"
	KeyLimit             = "limit"
	KeyWorkers           = "workers"
	KeyRPM               = "rpm"
	KeyMaxSegments       = "max-segments"
	KeyDryRun            = "dry-run"
	KeyYes               = "yes"
	KeyAllowPartialRange = "allow-partial-range"
	KeyLogLevel          = "log-level"
	KeyMetricsAddr       = "metrics-addr"
	KeyReportMongoURI    = "report-mongo-uri"
	KeyReportMongoDB     = "report-mongo-database"
	KeyReportPostgresDSN = "report-postgres-dsn"
	KeyReportSupabaseURL = "report-supabase-url"
	KeyReportSupabaseKey = "report-supabase-key"
	KeyReportSupabasePwd = "report-supabase-password"
	KeyReportSQLite      = "report-sqlite"
)

var (
	// ErrMissingCredentials is returned when either API key is absent.
	ErrMissingCredentials = errors.New("missing API credentials")
	// ErrInvalid wraps every other validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Mode selects how the import window is resolved.
type Mode string

const (
	ModeRecent    Mode = "recent"
	ModeDate      Mode = "date"
	ModeRange     Mode = "range"
	ModeOpenRange Mode = "open-range"
	ModeAll       Mode = "all"
)

// Report holds the optional run report destinations. At most one is set.
type Report struct {
	MongoURI         string
	MongoDatabase    string
	PostgresDSN      string
	SupabaseURL      string
	SupabaseKey      string
	SupabasePassword string
	SQLitePath       string
}

// Enabled reports whether any sink is configured.
func (r Report) Enabled() bool {
	return r.MongoURI != "" || r.PostgresDSN != "" || r.SupabaseURL != "" || r.SQLitePath != ""
}

func (r Report) count() int {
	n := 0
	for _, s := range []string{r.MongoURI, r.PostgresDSN, r.SupabaseURL, r.SQLitePath} {
		if s != "" {
			n++
		}
	}
	return n
}

// Config is built once per run and passed to constructors.
type Config struct {
	LimitlessAPIKey  string
	OmiAPIKey        string
	LimitlessBaseURL string
	OmiBaseURL       string
	Timeout          time.Duration
	Timezone         string

	Date     string
	FromDate string
	ToDate   string
	All      bool
	Limit    int

	Workers     int
	RPM         int
	MaxSegments int

	DryRun            bool
	Yes               bool
	AllowPartialRange bool

	LogLevel    string
	MetricsAddr string

	Report Report
}

// NewViper returns a viper instance with defaults and env binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers default values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLimitlessBaseURL, "https://api.limitless.ai")
	v.SetDefault(KeyOmiBaseURL, "https://api.omi.me/v1/dev")
	v.SetDefault(KeyTimeout, 60*time.Second)
	v.SetDefault(KeyTimezone, "America/Los_Angeles")
	v.SetDefault(KeyLimit, 3)
	v.SetDefault(KeyWorkers, 3)
	v.SetDefault(KeyRPM, 100)
	v.SetDefault(KeyMaxSegments, 500)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyReportMongoDB, "lifelog_migrate")
}

// ReadConfigFile loads the file named by the config key, or the first of
// $XDG_CONFIG_HOME/lifelog-migrate/config.{toml,yaml} that exists. A missing
// default file is not an error.
func ReadConfigFile(v *viper.Viper) error {
	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(dir, AppName))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load reads every setting from v. It does not validate.
func Load(v *viper.Viper) *Config {
	return &Config{
		LimitlessAPIKey:   strings.TrimSpace(v.GetString(KeyLimitlessAPIKey)),
		OmiAPIKey:         strings.TrimSpace(v.GetString(KeyOmiAPIKey)),
		LimitlessBaseURL:  v.GetString(KeyLimitlessBaseURL),
		OmiBaseURL:        v.GetString(KeyOmiBaseURL),
		Timeout:           v.GetDuration(KeyTimeout),
		Timezone:          v.GetString(KeyTimezone),
		Date:              v.GetString(KeyDate),
		FromDate:          v.GetString(KeyFromDate),
		ToDate:            v.GetString(KeyToDate),
		All:               v.GetBool(KeyAll),
		Limit:             v.GetInt(KeyLimit),
		Workers:           v.GetInt(KeyWorkers),
		RPM:               v.GetInt(KeyRPM),
		MaxSegments:       v.GetInt(KeyMaxSegments),
		DryRun:            v.GetBool(KeyDryRun),
		Yes:               v.GetBool(KeyYes),
		AllowPartialRange: v.GetBool(KeyAllowPartialRange),
		LogLevel:          v.GetString(KeyLogLevel),
		MetricsAddr:       v.GetString(KeyMetricsAddr),
		Report: Report{
			MongoURI:         v.GetString(KeyReportMongoURI),
			MongoDatabase:    v.GetString(KeyReportMongoDB),
			PostgresDSN:      v.GetString(KeyReportPostgresDSN),
			SupabaseURL:      v.GetString(KeyReportSupabaseURL),
			SupabaseKey:      v.GetString(KeyReportSupabaseKey),
			SupabasePassword: v.GetString(KeyReportSupabasePwd),
			SQLitePath:       v.GetString(KeyReportSQLite),
		},
	}
}

// Validate checks credentials, numeric bounds and the date selection.
func (c *Config) Validate() error {
	var missing []string
	if c.LimitlessAPIKey == "" {
		missing = append(missing, EnvPrefix+"_LIMITLESS_API_KEY")
	}
	if c.OmiAPIKey == "" {
		missing = append(missing, EnvPrefix+"_OMI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrMissingCredentials, strings.Join(missing, " and "))
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalid)
	}
	if c.RPM < 1 {
		return fmt.Errorf("%w: rpm must be at least 1", ErrInvalid)
	}
	if c.MaxSegments < 1 {
		return fmt.Errorf("%w: max-segments must be at least 1", ErrInvalid)
	}
	if c.Limit < 1 {
		return fmt.Errorf("%w: limit must be at least 1", ErrInvalid)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	if c.Report.count() > 1 {
		return fmt.Errorf("%w: configure at most one report sink", ErrInvalid)
	}
	if c.Report.SupabaseURL != "" && c.Report.SupabaseKey == "" && c.Report.SupabasePassword == "" {
		return fmt.Errorf("%w: supabase report sink needs a key or password", ErrInvalid)
	}

	return c.validateDates()
}

func (c *Config) validateDates() error {
	for _, d := range []struct{ key, value string }{
		{KeyDate, c.Date}, {KeyFromDate, c.FromDate}, {KeyToDate, c.ToDate},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(dateFmt, d.value); err != nil {
			return fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalid, d.key, d.value)
		}
	}

	if c.Date != "" && (c.FromDate != "" || c.ToDate != "" || c.All) {
		return fmt.Errorf("%w: date cannot be combined with from-date, to-date or all", ErrInvalid)
	}
	if c.All && (c.FromDate != "" || c.ToDate != "") {
		return fmt.Errorf("%w: all cannot be combined with from-date or to-date", ErrInvalid)
	}
	if c.ToDate != "" && c.FromDate == "" {
		return fmt.Errorf("%w: to-date requires from-date", ErrInvalid)
	}
	// Layout is lexically ordered.
	if c.FromDate != "" && c.ToDate != "" && c.FromDate > c.ToDate {
		return fmt.Errorf("%w: from-date %s is after to-date %s", ErrInvalid, c.FromDate, c.ToDate)
	}
	return nil
}

// Mode reports how the import window is chosen.
func (c *Config) Mode() Mode {
	switch {
	case c.Date != "":
		return ModeDate
	case c.All:
		return ModeAll
	case c.FromDate != "" && c.ToDate != "":
		return ModeRange
	case c.FromDate != "":
		return ModeOpenRange
	default:
		return ModeRecent
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
