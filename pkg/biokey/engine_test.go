package biokey

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-biokey/biokey/pkg/alias"
	"github.com/go-biokey/biokey/pkg/authn"
	"github.com/go-biokey/biokey/pkg/biostate"
	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/lifecycle"
	"github.com/go-biokey/biokey/pkg/options"
	"github.com/go-biokey/biokey/pkg/signature"
	"github.com/go-biokey/biokey/pkg/storage"
)

func approveAll(_ context.Context, _ string) (authn.AuthOutcome, error) {
	return authn.AuthOutcome{Kind: biotypes.AuthOutcomeSuccess}, nil
}

func newTestEngine(t *testing.T, opts ...options.Option) *Engine {
	t.Helper()

	opts = append([]options.Option{
		options.WithChallenger(authn.ChallengerFunc(approveAll)),
		options.WithAppID("com.example.app"),
	}, opts...)

	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func TestNewRequiresChallengerForDefaultBackend(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrChallengerRequired)
}

func TestKeyLifecycleScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.CreateKeys(ctx, "app.bio.key", biotypes.AlgorithmEC256)
	require.NoError(t, err)
	require.NotEmpty(t, created.PublicKey)

	pub, err := base64.StdEncoding.DecodeString(created.PublicKey)
	require.NoError(t, err)
	assert.Len(t, pub, 65) // uncompressed P-256 point

	entries, err := e.GetAllKeys("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "app.bio.key", entries[0].Alias)
	assert.Equal(t, created.PublicKey, entries[0].PublicKey)

	deleted, err := e.DeleteKeys("app.bio.key")
	require.NoError(t, err)
	assert.True(t, deleted.Success)
	assert.True(t, deleted.Deleted)

	entries, err = e.GetAllKeys("")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteAbsentKeySucceeds(t *testing.T) {
	e := newTestEngine(t)

	deleted, err := e.DeleteKeys("never.created")
	require.NoError(t, err)
	assert.True(t, deleted.Success)
	assert.False(t, deleted.Deleted)
}

func TestConfigureKeyAliasScenario(t *testing.T) {
	e := newTestEngine(t)

	assert.ErrorIs(t, e.ConfigureKeyAlias(""), alias.ErrInvalidAlias)
	assert.ErrorIs(t, e.ConfigureKeyAlias("ab"), alias.ErrInvalidAlias)

	require.NoError(t, e.ConfigureKeyAlias("my.valid-key_1"))
	assert.Equal(t, "my.valid-key_1", e.GetDefaultKeyAlias())
}

func TestDefaultAliasIsGenerated(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, "com.example.app.BiometricKey", e.GetDefaultKeyAlias())
}

func TestConfiguredAliasSurvivesRestart(t *testing.T) {
	store := storage.NewMemoryStore()

	e := newTestEngine(t, options.WithStore(store))
	require.NoError(t, e.ConfigureKeyAlias("persisted.key"))

	// A second engine over the same store reads the configured default.
	e2 := newTestEngine(t, options.WithStore(store))
	assert.Equal(t, "persisted.key", e2.GetDefaultKeyAlias())
}

func TestConfigureDoesNotAffectExistingKeys(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateKeys(ctx, "old.key", biotypes.AlgorithmEC256)
	require.NoError(t, err)

	require.NoError(t, e.ConfigureKeyAlias("new.default"))

	entries, err := e.GetAllKeys("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "old.key", entries[0].Alias)
}

func TestSignVerifyViaDefaultAlias(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ConfigureKeyAlias("sign.key"))

	_, err := e.CreateKeys(ctx, "", biotypes.AlgorithmEC256)
	require.NoError(t, err)

	signed, err := e.Sign(ctx, "", "payload under test")
	require.NoError(t, err)
	require.NotEmpty(t, signed.Signature)

	ok, err := e.Verify("", "payload under test", signed.Signature)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Verify("", "different payload", signed.Signature)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentConfigureAndSign(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ConfigureKeyAlias("race.key"))
	_, err := e.CreateKeys(ctx, "", biotypes.AlgorithmEC256)
	require.NoError(t, err)

	// Reconfiguring the default alias while signatures resolve it must not
	// race; the sign calls see either default.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			require.NoError(t, e.ConfigureKeyAlias("race.key"))
		}()
		go func() {
			defer wg.Done()
			_, err := e.Sign(ctx, "", "payload")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestSignValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Sign(ctx, "some.key", "")
	assert.ErrorIs(t, err, signature.ErrEmptyPayload)
}

func TestVerifyValidation(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Verify("some.key", "", "c2ln")
	assert.ErrorIs(t, err, signature.ErrEmptyPayload)

	_, err = e.Verify("some.key", "data", "")
	assert.ErrorIs(t, err, signature.ErrEmptySignature)

	_, err = e.Verify("some.key", "data", "!!! not base64 !!!")
	assert.ErrorIs(t, err, signature.ErrMalformedSignature)
}

func TestCreateKeysUnknownAlgorithm(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CreateKeys(context.Background(), "some.key", biotypes.Algorithm("dsa"))
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestGetKeyAttributes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	attrs, err := e.GetKeyAttributes("missing.key")
	require.NoError(t, err)
	assert.True(t, attrs.IsAbsent())

	_, err = e.CreateKeys(ctx, "present.key", biotypes.AlgorithmRSA2048)
	require.NoError(t, err)

	attrs, err = e.GetKeyAttributes("present.key")
	require.NoError(t, err)
	require.True(t, attrs.IsPresent())
	got := attrs.MustGet()
	assert.Equal(t, biotypes.AlgorithmRSA2048, got.Algorithm)
	assert.Equal(t, 2048, got.KeySizeBits)
	assert.True(t, got.UserAuthenticationRequired)
}

func TestValidateKeyIntegrityMonotonic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	report, err := e.ValidateKeyIntegrity(ctx, "missing.key")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.False(t, report.KeyExists)
	assert.False(t, report.Checks.KeyFormatValid)
	assert.False(t, report.Checks.KeyAccessible)
	assert.False(t, report.Checks.SignatureTestPassed)
	assert.False(t, report.Checks.HardwareBacked)

	_, err = e.CreateKeys(ctx, "healthy.key", biotypes.AlgorithmEC256)
	require.NoError(t, err)

	report, err = e.ValidateKeyIntegrity(ctx, "healthy.key")
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestExportCOSEPublicKey(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreateKeys(ctx, "cose.key", biotypes.AlgorithmEC256)
	require.NoError(t, err)

	coseKey, err := e.ExportCOSEPublicKey("cose.key")
	require.NoError(t, err)
	assert.NotNil(t, coseKey)
}

func TestChangeDetectionEndToEnd(t *testing.T) {
	sensor := biostate.NewSimulatedSensor(biotypes.BiometryFingerprint)
	sensor.EnrollTemplate([]byte{0x01})

	var events []biotypes.ChangeEvent
	sink := lifecycle.EventSinkFunc(func(event biotypes.ChangeEvent) {
		events = append(events, event)
	})

	e := newTestEngine(t,
		options.WithSensor(sensor),
		options.WithEventSink(sink),
	)
	ctx := context.Background()

	require.NoError(t, e.StartChangeDetection(ctx))

	_, ok := e.LastSnapshot()
	assert.True(t, ok)

	sensor.EnrollTemplate([]byte{0x02})
	e.OnLifecycleSignal(ctx)

	require.Len(t, events, 1)
	assert.Equal(t, biotypes.EnrollmentChanged, events[0].ChangeType)

	require.NoError(t, e.StopChangeDetection())
	_, ok = e.LastSnapshot()
	assert.False(t, ok)
}

func TestChangeDetectionUnwired(t *testing.T) {
	e := newTestEngine(t)

	assert.ErrorIs(t, e.StartChangeDetection(context.Background()), ErrDetectionNotWired)
	assert.ErrorIs(t, e.StopChangeDetection(), ErrDetectionNotWired)
}

func TestSetDebugModePersistsAndToggles(t *testing.T) {
	store := storage.NewMemoryStore()
	level := new(slog.LevelVar)

	e := newTestEngine(t, options.WithStore(store), options.WithLevel(level))

	require.NoError(t, e.SetDebugMode(true))
	assert.Equal(t, slog.LevelDebug, level.Level())

	cfg, err := storage.LoadConfiguration(store)
	require.NoError(t, err)
	assert.True(t, cfg.DebugMode)

	require.NoError(t, e.SetDebugMode(false))
	assert.Equal(t, slog.LevelInfo, level.Level())

	// A restarted engine with a persisted debug flag raises its level var.
	require.NoError(t, e.SetDebugMode(true))
	level2 := new(slog.LevelVar)
	newTestEngine(t, options.WithStore(store), options.WithLevel(level2))
	assert.Equal(t, slog.LevelDebug, level2.Level())
}
