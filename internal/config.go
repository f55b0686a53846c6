package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Engine modes.
const (
	ModeLocal  = "local"
	ModeMemory = "memory"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Mode   string            `yaml:"mode"`
	Store  StoreConfig       `yaml:"store"`
	Import ImportConfig      `yaml:"import"`
	Auth   AuthConfig        `yaml:"auth"`
	Search SearchConfig      `yaml:"search"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if c.Mode == "" {
		c.Mode = ModeLocal
	}
	if err := validation.Validate(c.Mode, validation.In(ModeLocal, ModeMemory)); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if c.Mode == ModeLocal {
		if err := c.Store.Validate(); err != nil {
			return err
		}
	}
	if err := c.Import.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Search.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig holds the durable local store location. Only consulted in
// local mode.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ImportConfig controls the Markdown drop-directory importer.
type ImportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// TokenEntry maps one API bearer token to a user identity.
type TokenEntry struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

// Validate validates one token entry.
func (c *TokenEntry) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.UserID, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, every request runs
//     as the local user. Suitable for local dev.
//   - "token": Bearer token authentication; Tokens must be non-empty.
type AuthConfig struct {
	Mode   string       `yaml:"mode"`
	Tokens []TokenEntry `yaml:"tokens"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && len(c.Tokens) == 0 {
		return fmt.Errorf("auth: mode is %q but no tokens configured", AuthModeToken)
	}
	for i := range c.Tokens {
		if err := c.Tokens[i].Validate(); err != nil {
			return fmt.Errorf("auth: token %d: %w", i, err)
		}
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SearchConfig tunes the fuzzy search index.
type SearchConfig struct {
	Threshold   int `yaml:"threshold"`
	MinQueryLen int `yaml:"min_query_len"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinQueryLen, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Mode: ModeLocal,
		Store: StoreConfig{
			Path: "./plume.db",
		},
		Import: ImportConfig{
			Enabled: false,
			Dir:     "./drop",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Search: SearchConfig{
			MinQueryLen: 2,
		},
	}
}
