package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Version returns the bare build version, stamped into the export
// document's exportedWith field.
func Version() string {
	return version
}

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("toneget version %s, commit %s, built at %s", version, commit, date)
}

// Tonal's public OAuth2 client (the one its mobile app ships with) and
// API host. These are fixed: the tool talks to nothing else.
const (
	Auth0Domain = "tonal.auth0.com"
	ClientID    = "ERCyexW-xoVG_Yy3RDe-eV4xsOnRHP6L"
	APIBaseURL  = "https://api.tonal.com"
	Audience    = "https://api.tonal.com"
	OAuthScope  = "openid profile email offline_access"
)

// ExportMode selects how much raw vendor data survives into the output.
type ExportMode string

const (
	ExportModeStandard ExportMode = "standard"
	ExportModeFull     ExportMode = "full"
)

// Config carries everything the run needs except credentials, which are
// resolved separately at authentication time and never stored here.
type Config struct {
	Mode      ExportMode
	Gzip      bool
	OutputDir string
	Timeout   time.Duration
	Logging   LoggingConfig
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.Bool("full", false, "export every raw vendor field (default trims to the documented schema)")
	pflag.Bool("no-gzip", false, "write plain JSON instead of gzip-compressed output")
	pflag.Bool("json-only", false, "alias for --no-gzip")
	pflag.String("output-dir", ".", "directory the export file is written to")
	pflag.Duration("timeout", 30*time.Second, "per-request HTTP timeout")
	pflag.String("log-level", "warn", "log level (debug|info|warn|error)")
	pflag.String("log-format", "console", "log format (console|json)")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("TONAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	// Credentials for unattended runs: TONAL_EMAIL / TONAL_PASSWORD.
	// Bound here, read lazily at authentication time, never unmarshalled
	// into Config.
	if err := viper.BindEnv("email"); err != nil {
		return nil, err
	}
	if err := viper.BindEnv("password"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode:      ExportModeStandard,
		Gzip:      true,
		OutputDir: viper.GetString("output-dir"),
		Timeout:   viper.GetDuration("timeout"),
		Logging: LoggingConfig{
			Level:  viper.GetString("log-level"),
			Format: viper.GetString("log-format"),
		},
	}

	if viper.GetBool("full") {
		cfg.Mode = ExportModeFull
	}
	if viper.GetBool("no-gzip") || viper.GetBool("json-only") {
		cfg.Gzip = false
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}

	return cfg, nil
}
