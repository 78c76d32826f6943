package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// TLS modes.
const (
	TLSModeDisabled   = "disabled"
	TLSModeSelfSigned = "self-signed"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Index   IndexConfig       `yaml:"index"`
	Assets  AssetsConfig      `yaml:"assets"`
	Geocode GeocodeConfig     `yaml:"geocode"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Geocode.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return err
	}
	return c.TLS.Validate()
}

// TLSConfig controls transport security for the HTTP server.
//
// Mode selects how the listener is secured:
//   - "disabled": plain HTTP, suitable behind a reverse proxy.
//   - "self-signed": HTTPS with an in-memory self-signed certificate
//     generated at startup, the way the bundled dev server works.
type TLSConfig struct {
	Mode string `yaml:"mode"`
}

// Validate validates the TLS configuration.
func (c *TLSConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = TLSModeDisabled
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(TLSModeDisabled, TLSModeSelfSigned)),
	)
}

// Enabled returns true when the server should terminate TLS itself.
func (c *TLSConfig) Enabled() bool {
	return c.Mode == TLSModeSelfSigned
}

// StoreConfig holds the path to the JSON slot file that owns all notes.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexConfig holds SQLite search index configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AssetsConfig holds the directory of static frontend assets.
// An empty Dir disables static serving, leaving only the API.
type AssetsConfig struct {
	Dir string `yaml:"dir"`
}

// GeocodeConfig holds Nominatim client configuration.
//
// Enabled false turns off reverse geocoding entirely; notes are still
// created, they just never receive an address.
type GeocodeConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	UserAgent      string `yaml:"user_agent"`
	CountryCodes   string `yaml:"country_codes"`
	Limit          int    `yaml:"limit"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Validate validates the geocode configuration.
func (c *GeocodeConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Limit, validation.Min(1), validation.Max(50)),
		validation.Field(&c.TimeoutSeconds, validation.Min(1), validation.Max(120)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
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
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8443,
				TLS:  TLSConfig{Mode: TLSModeSelfSigned},
			},
		},
		Store: StoreConfig{
			Path: "./notes.json",
		},
		Index: IndexConfig{
			Path: "./geonote.db",
		},
		Assets: AssetsConfig{
			Dir: "./public",
		},
		Geocode: GeocodeConfig{
			Enabled:        true,
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "geonote/1.0 (github.com/starford/geonote)",
			CountryCodes:   "vn",
			Limit:          5,
			TimeoutSeconds: 10,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
