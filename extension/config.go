package extension

// Config holds the authz extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.authz" or "authz" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SeedDefaults seeds the built-in permission catalog and system roles
	// on start. Seeding is idempotent.
	SeedDefaults bool `json:"seed_defaults" mapstructure:"seed_defaults" yaml:"seed_defaults"`

	// BasePath is the URL prefix for authz routes (default: "/authz").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SeedDefaults: true,
	}
}
