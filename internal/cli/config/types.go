// Package config provides configuration management for the pkshell CLI.
//
// Values are layered with koanf: built-in defaults, then pkshell.yaml, then
// PKSHELL_* environment variables, then explicitly set command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	APIURL      string        `koanf:"api_url"`
	Timeout     time.Duration `koanf:"timeout"`
	Locale      string        `koanf:"locale"`
	Verbose     bool          `koanf:"verbose"`
	Output      string        `koanf:"output"`
	HistoryFile string        `koanf:"history_file"`
	// AttachSelection sends the selected database and schema with every
	// query.
	AttachSelection bool         `koanf:"attach_selection"`
	Serve           *ServeConfig `koanf:"serve"`
	UI              *UIConfig    `koanf:"ui"`
}

// UIConfig holds configuration for the web front end.
type UIConfig struct {
	Addr string `koanf:"addr"`
	// SessionSecret signs the session cookie. Empty generates a key per
	// process, which ends every browser session on restart.
	SessionSecret string        `koanf:"session_secret"`
	SessionIdle   time.Duration `koanf:"session_idle"`
	Open          bool          `koanf:"open"`
}

// ServeConfig holds configuration for the reference backend.
type ServeConfig struct {
	Addr       string          `koanf:"addr"`
	Driver     string          `koanf:"driver"`
	DataDir    string          `koanf:"data_dir"`
	DSN        string          `koanf:"dsn"`
	Postgres   *PostgresConfig `koanf:"postgres"`
	Migrations string          `koanf:"migrations"`
	Demo       bool            `koanf:"demo"`
	Watch      bool            `koanf:"watch"`
	MaxConns   int             `koanf:"max_conns"`
	MaxRows    int             `koanf:"max_rows"`
	// AllowedOrigins enables CORS for browser clients.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// PostgresConfig describes a PostgreSQL server when no DSN is given.
type PostgresConfig struct {
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Database string            `koanf:"database"`
	Options  map[string]string `koanf:"options"`
}

// Default configuration values.
const (
	DefaultAPIURL      = "http://127.0.0.1:8000"
	DefaultTimeout     = 30 * time.Second
	DefaultLocale      = "en"
	DefaultOutput      = "auto" // Auto-detect: TTY=table, non-TTY=md
	DefaultHistoryFile = ".pkshell_history"
	DefaultServeAddr   = "127.0.0.1:8000"
	DefaultDriver      = DriverSQLite
	DefaultDataDir     = "data"
	DefaultMaxConns    = 64
	DefaultMaxRows     = 10000
	DefaultUIAddr      = "127.0.0.1:8765"
	DefaultSessionIdle = 30 * time.Minute
)

// Backend drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Output formats.
var OutputFormats = []string{"auto", "table", "json", "csv", "md", "yaml"}

// GetServeConfig returns the serve config with defaults applied for any
// unset values.
func (c *Config) GetServeConfig() *ServeConfig {
	if c.Serve == nil {
		return &ServeConfig{
			Addr:     DefaultServeAddr,
			Driver:   DefaultDriver,
			DataDir:  DefaultDataDir,
			MaxConns: DefaultMaxConns,
			MaxRows:  DefaultMaxRows,
		}
	}
	s := c.Serve
	if s.Addr == "" {
		s.Addr = DefaultServeAddr
	}
	if s.Driver == "" {
		s.Driver = DefaultDriver
	}
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
	if s.MaxConns == 0 {
		s.MaxConns = DefaultMaxConns
	}
	if s.MaxRows == 0 {
		s.MaxRows = DefaultMaxRows
	}
	return s
}

// GetUIConfig returns the ui config with defaults applied for any unset
// values.
func (c *Config) GetUIConfig() *UIConfig {
	if c.UI == nil {
		return &UIConfig{Addr: DefaultUIAddr, SessionIdle: DefaultSessionIdle}
	}
	u := c.UI
	if u.Addr == "" {
		u.Addr = DefaultUIAddr
	}
	if u.SessionIdle == 0 {
		u.SessionIdle = DefaultSessionIdle
	}
	return u
}
