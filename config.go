package execsql

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Config.FromEnv.
const (
	EnvURL = "SUPABASE_URL"
	EnvKey = "SUPABASE_SERVICE_ROLE_KEY"
)

// Backend names accepted by NewExecutor.
const (
	BackendREST     = "rest"
	BackendPostgres = "pg"
)

// Config holds settings for running a migration.
type Config struct {
	// Backend selects how the procedure is reached: "rest" (default) or "pg".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// URL is the project endpoint for rest, or a connection string for pg.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Key is the access credential. For pg it replaces the connection password.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`

	// MigrationsDir is the directory migration names are resolved against.
	MigrationsDir string `json:"migrationsDir,omitempty" yaml:"migrationsDir,omitempty"`

	// Procedure is the remote procedure that executes SQL text.
	Procedure string `json:"procedure,omitempty" yaml:"procedure,omitempty"`

	// Param is the name of the procedure's single SQL text parameter.
	Param string `json:"param,omitempty" yaml:"param,omitempty"`
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	Backend:       BackendREST,
	MigrationsDir: "migrations",
	Procedure:     "exec_sql",
	Param:         "sql",
}

var (
	procedureRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	paramRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// WithDefaults returns a copy of cfg with empty fields taken from DefaultConfig.
func (cfg Config) WithDefaults() Config {
	if cfg.Backend == "" {
		cfg.Backend = DefaultConfig.Backend
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = DefaultConfig.MigrationsDir
	}
	if cfg.Procedure == "" {
		cfg.Procedure = DefaultConfig.Procedure
	}
	if cfg.Param == "" {
		cfg.Param = DefaultConfig.Param
	}
	return cfg
}

// FromEnv fills URL and Key from the environment when they are still empty.
func (cfg *Config) FromEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if cfg.URL == "" {
		cfg.URL = strings.TrimSpace(getenv(EnvURL))
	}
	if cfg.Key == "" {
		cfg.Key = strings.TrimSpace(getenv(EnvKey))
	}
}

// Validate checks that both credentials are present and that the procedure
// identifiers are safe to interpolate. Every missing value is named.
func (cfg Config) Validate() error {
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, EnvURL)
	}
	if cfg.Key == "" {
		missing = append(missing, EnvKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, " and "))
	}
	if p := cfg.Procedure; p != "" && !procedureRe.MatchString(p) {
		return fmt.Errorf("%w: invalid procedure name %q", ErrConfig, p)
	}
	if p := cfg.Param; p != "" && !paramRe.MatchString(p) {
		return fmt.Errorf("%w: invalid parameter name %q", ErrConfig, p)
	}
	return nil
}

// LoadConfig reads a JSON or YAML configuration file into cfg. The format is
// chosen by extension; anything other than .yaml or .yml is parsed as JSON.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return nil
}
