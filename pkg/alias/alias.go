// Package alias produces and persists the identifier under which a key pair
// is stored. An alias, once used to create a key, can never be changed for
// that key; configuring a new default only affects future unqualified
// operations.
package alias

import (
	"errors"
	"regexp"
	"sync"

	"github.com/samber/mo"

	"github.com/go-biokey/biokey/pkg/storage"
)

const (
	MinLength = 3
	MaxLength = 100

	// DefaultSuffix is appended to the application identifier when no alias
	// was ever configured.
	DefaultSuffix = ".BiometricKey"
)

var (
	ErrInvalidAlias = errors.New("alias: must be 3-100 characters of [A-Za-z0-9._-]")

	aliasPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// Validate checks the alias against the length and character constraints.
func Validate(alias string) error {
	if len(alias) < MinLength || len(alias) > MaxLength {
		return ErrInvalidAlias
	}
	if !aliasPattern.MatchString(alias) {
		return ErrInvalidAlias
	}
	return nil
}

// Resolver chooses the alias for an operation: an explicit caller value wins,
// then the configured default, then a generated default derived from the
// application identifier. Resolvers are safe for concurrent use:
// reconfiguration can race with in-flight operations resolving their alias.
type Resolver struct {
	appID string
	store storage.Store

	mu         sync.RWMutex
	configured mo.Option[string]
}

func NewResolver(appID string, store storage.Store, configured string) *Resolver {
	r := &Resolver{
		appID: appID,
		store: store,
	}
	if configured != "" {
		r.configured = mo.Some(configured)
	}

	return r
}

// Resolve returns the alias to use for one operation. An explicit value must
// already be valid; invalid explicit aliases fail rather than silently
// falling through to a default.
func (r *Resolver) Resolve(explicit string) (string, error) {
	if explicit != "" {
		if err := Validate(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	return r.Default(), nil
}

// Configure validates and persists a new default alias. Existing keys keep
// whatever alias they were created under.
func (r *Resolver) Configure(newAlias string) error {
	if err := Validate(newAlias); err != nil {
		return err
	}

	cfg, err := storage.LoadConfiguration(r.store)
	if err != nil {
		return err
	}
	cfg.KeyAlias = newAlias

	if err := storage.SaveConfiguration(r.store, cfg); err != nil {
		return err
	}

	r.mu.Lock()
	r.configured = mo.Some(newAlias)
	r.mu.Unlock()

	return nil
}

// Configured returns the currently configured default alias, if any.
func (r *Resolver) Configured() mo.Option[string] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configured
}

// Default returns what Resolve would pick with no explicit alias.
func (r *Resolver) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if configured, ok := r.configured.Get(); ok {
		return configured
	}
	return r.appID + DefaultSuffix
}
