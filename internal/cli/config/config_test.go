package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("api-url", "", "")
	fs.Duration("timeout", 0, "")
	fs.String("locale", "", "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("data-dir", "", "")
	fs.String("driver", "", "")
	fs.String("format", "", "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "auto", cfg.Output)
	assert.True(t, cfg.AttachSelection)
	require.NotNil(t, cfg.Serve)
	assert.Equal(t, DefaultServeAddr, cfg.Serve.Addr)
	assert.Equal(t, DriverSQLite, cfg.Serve.Driver)
	assert.Equal(t, DefaultMaxConns, cfg.Serve.MaxConns)
	assert.Equal(t, DefaultMaxRows, cfg.Serve.MaxRows)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	ResetConfig()

	yaml := `api_url: http://file:9000
timeout: 5s
locale: es
serve:
  driver: postgres
  dsn: postgres://u:${PKSHELL_TEST_PW}@db/postgres
  allowed_origins: [http://localhost:5173]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkshell.yaml"), []byte(yaml), 0o600))
	t.Setenv("PKSHELL_TEST_PW", "secret")
	t.Setenv("PKSHELL_API_URL", "http://env:9001")
	t.Setenv("PKSHELL_SERVE__DATA_DIR", "/srv/data")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--timeout", "2s", "-o", "json", "--format", "csv"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "http://env:9001", cfg.APIURL, "env beats file")
	assert.Equal(t, 2*time.Second, cfg.Timeout, "flag beats file")
	assert.Equal(t, "es", cfg.Locale)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, DriverPostgres, cfg.Serve.Driver)
	assert.Equal(t, "/srv/data", cfg.Serve.DataDir)
	assert.Equal(t, "postgres://u:secret@db/postgres", cfg.Serve.DSN)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Serve.AllowedOrigins)
	assert.Equal(t, filepath.Join(dir, "pkshell.yaml"), GetConfigFileUsed())
}

func TestLoadConfig_ServeFlagsMapToServeKeys(t *testing.T) {
	chdir(t, t.TempDir())
	ResetConfig()

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--data-dir", "fixtures", "--driver", "sqlite"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "fixtures", cfg.Serve.DataDir)
}

func TestLoadConfig_UI(t *testing.T) {
	chdir(t, t.TempDir())
	ResetConfig()
	t.Setenv("PKSHELL_UI__SESSION_IDLE", "5m")

	flags := newFlags()
	flags.String("listen", "", "")
	require.NoError(t, flags.Parse([]string{"--listen", "127.0.0.1:9999"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	require.NotNil(t, cfg.UI)
	assert.Equal(t, "127.0.0.1:9999", cfg.UI.Addr)
	assert.Equal(t, 5*time.Minute, cfg.UI.SessionIdle)
	assert.Empty(t, cfg.UI.SessionSecret)
	assert.Equal(t, DefaultServeAddr, cfg.Serve.Addr)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	chdir(t, t.TempDir())
	ResetConfig()

	_, err := LoadConfig("does-not-exist.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.yaml")
}

func TestLoadConfig_SearchesUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkshell.yml"), []byte("locale: es\n"), 0o600))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	chdir(t, nested)
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "es", cfg.Locale)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIURL:  DefaultAPIURL,
			Timeout: time.Second,
			Locale:  "en",
			Output:  "table",
			Serve:   &ServeConfig{Driver: DriverSQLite, DataDir: "data"},
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad scheme", func(c *Config) { c.APIURL = "ftp://host" }, "api_url"},
		{"no host", func(c *Config) { c.APIURL = "http://" }, "api_url"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"bad locale", func(c *Config) { c.Locale = "!!" }, "locale"},
		{"bad output", func(c *Config) { c.Output = "xml" }, "output"},
		{"bad driver", func(c *Config) { c.Serve.Driver = "mysql" }, "unknown driver"},
		{"sqlite without dir", func(c *Config) { c.Serve.DataDir = "" }, "data_dir"},
		{"postgres without dsn", func(c *Config) { c.Serve.Driver = DriverPostgres; c.Serve.DataDir = "" }, ""},
		{"short session secret", func(c *Config) { c.UI = &UIConfig{SessionSecret: "short"} }, "session_secret"},
		{"negative session idle", func(c *Config) { c.UI = &UIConfig{SessionIdle: -time.Second} }, "session_idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PKSHELL_X", "value")
	assert.Equal(t, "a-value-b", expandEnvVars("a-${PKSHELL_X}-b"))
	assert.Equal(t, "${PKSHELL_UNSET_VAR}", expandEnvVars("${PKSHELL_UNSET_VAR}"))
}
