package config

import (
	"fmt"
	"net/url"
	"slices"

	"golang.org/x/text/language"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Locale != "" {
		if _, err := language.Parse(c.Locale); err != nil {
			return fmt.Errorf("locale %q is not a language tag: %w", c.Locale, err)
		}
	}
	if !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("output must be one of %v, got %q", OutputFormats, c.Output)
	}
	if c.Serve != nil {
		if err := c.Serve.Validate(); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	if c.UI != nil {
		if err := c.UI.Validate(); err != nil {
			return fmt.Errorf("ui: %w", err)
		}
	}
	return nil
}

// Validate checks the web front end settings.
func (u *UIConfig) Validate() error {
	if u.SessionIdle < 0 {
		return fmt.Errorf("session_idle must not be negative")
	}
	if u.SessionSecret != "" && len(u.SessionSecret) < 32 {
		return fmt.Errorf("session_secret must be at least 32 bytes")
	}
	return nil
}

// Validate checks the reference backend settings.
func (s *ServeConfig) Validate() error {
	switch s.Driver {
	case DriverSQLite:
		if s.DataDir == "" {
			return fmt.Errorf("data_dir is required for the sqlite driver")
		}
	case DriverPostgres:
		// An empty DSN falls back to the postgres block or libpq defaults.
	default:
		return fmt.Errorf("unknown driver %q (want %s or %s)", s.Driver, DriverSQLite, DriverPostgres)
	}
	if s.MaxConns < 0 {
		return fmt.Errorf("max_conns must not be negative")
	}
	if s.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative")
	}
	return nil
}
