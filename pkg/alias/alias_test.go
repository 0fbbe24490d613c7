package alias

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-biokey/biokey/pkg/storage"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("my.valid-key_1"))
	assert.NoError(t, Validate("abc"))
	assert.NoError(t, Validate(strings.Repeat("a", 100)))

	assert.ErrorIs(t, Validate(""), ErrInvalidAlias)
	assert.ErrorIs(t, Validate("ab"), ErrInvalidAlias)
	assert.ErrorIs(t, Validate(strings.Repeat("a", 101)), ErrInvalidAlias)
	assert.ErrorIs(t, Validate("has space"), ErrInvalidAlias)
	assert.ErrorIs(t, Validate("no/slash"), ErrInvalidAlias)
}

func TestResolveChain(t *testing.T) {
	r := NewResolver("com.example.app", storage.NewMemoryStore(), "")

	// Generated default when nothing was configured.
	a, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "com.example.app.BiometricKey", a)

	// Configured default wins over the generated one.
	require.NoError(t, r.Configure("configured.key"))
	a, err = r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "configured.key", a)

	// Explicit value wins over everything.
	a, err = r.Resolve("explicit.key")
	require.NoError(t, err)
	assert.Equal(t, "explicit.key", a)

	// An invalid explicit value fails instead of falling through.
	_, err = r.Resolve("a b")
	assert.ErrorIs(t, err, ErrInvalidAlias)
}

func TestConfigurePersists(t *testing.T) {
	store := storage.NewMemoryStore()

	r := NewResolver("com.example.app", store, "")
	require.NoError(t, r.Configure("my.valid-key_1"))
	assert.Equal(t, "my.valid-key_1", r.Default())

	// A fresh resolver seeded from the persisted record sees the value.
	cfg, err := storage.LoadConfiguration(store)
	require.NoError(t, err)
	assert.Equal(t, "my.valid-key_1", cfg.KeyAlias)

	r2 := NewResolver("com.example.app", store, cfg.KeyAlias)
	assert.Equal(t, "my.valid-key_1", r2.Default())
}

func TestConcurrentConfigureAndResolve(t *testing.T) {
	r := NewResolver("com.example.app", storage.NewMemoryStore(), "")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			require.NoError(t, r.Configure("race.key"))
		}()
		go func() {
			defer wg.Done()
			a, err := r.Resolve("")
			require.NoError(t, err)
			assert.Contains(t, []string{"com.example.app.BiometricKey", "race.key"}, a)
		}()
	}
	wg.Wait()

	assert.Equal(t, "race.key", r.Default())
}

func TestConfigureRejectsInvalid(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewResolver("com.example.app", store, "")

	assert.ErrorIs(t, r.Configure(""), ErrInvalidAlias)
	assert.ErrorIs(t, r.Configure("ab"), ErrInvalidAlias)

	// Nothing was persisted.
	cfg, err := storage.LoadConfiguration(store)
	require.NoError(t, err)
	assert.Empty(t, cfg.KeyAlias)
}
