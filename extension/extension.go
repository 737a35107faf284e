// Package extension provides a Forge extension entry point for the retreat
// authorization engine.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/retreathq/authz"
	"github.com/retreathq/authz/api"
	"github.com/retreathq/authz/plugin"
	"github.com/retreathq/authz/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "authz"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Retreat-scoped roles, permission overrides, and authorization decisions"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the authorization engine as a Forge extension.
type Extension struct {
	config     Config
	eng        *authz.Engine
	apiHandler *api.API
	logger     *slog.Logger
	engOpts    []authz.Option
	plugins    []plugin.Plugin
}

// New creates an authz Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying authorization engine.
func (e *Extension) Engine() *authz.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	// Register the engine in the DI container.
	if err := vessel.Provide(fapp.Container(), func() (*authz.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("authz: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := make([]authz.Option, 0, len(e.engOpts)+len(e.plugins)+2)
	opts = append(opts, authz.WithLogger(logger))

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, authz.WithStore(s))
	}

	// Append user-provided options (may override store).
	opts = append(opts, e.engOpts...)

	for _, x := range e.plugins {
		opts = append(opts, authz.WithPlugin(x))
	}

	eng, err := authz.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("authz: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("authz: register routes: %w", err)
		}
	}

	return nil
}

// Start runs migrations, seeds the default catalog, and starts the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("authz: extension not initialized")
	}

	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("authz: migration failed: %w", err)
			}
		}
	}

	if e.config.SeedDefaults {
		if err := authz.SeedDefaults(ctx, e.eng.Store()); err != nil {
			return fmt.Errorf("authz: seed defaults: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("authz: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("authz: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all authz API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
