// Package biokey is the engine façade consumed by host layers. It binds the
// alias resolver, keystore backend, signature service, integrity validator
// and biometric change detection behind one API surface, and serializes
// authentication-gated operations per alias.
package biokey

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ldclabs/cose/key"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/go-biokey/biokey/pkg/alias"
	"github.com/go-biokey/biokey/pkg/authn"
	"github.com/go-biokey/biokey/pkg/biostate"
	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/integrity"
	"github.com/go-biokey/biokey/pkg/keystore"
	"github.com/go-biokey/biokey/pkg/lifecycle"
	"github.com/go-biokey/biokey/pkg/options"
	"github.com/go-biokey/biokey/pkg/signature"
	"github.com/go-biokey/biokey/pkg/storage"
)

var (
	ErrUnknownAlgorithm   = errors.New("biokey: unknown algorithm")
	ErrDetectionNotWired  = errors.New("biokey: no sensor configured for change detection")
	ErrChallengerRequired = errors.New("biokey: a challenger is required")
)

// CreateKeysResult carries the base64-encoded public key of a newly created
// key pair.
type CreateKeysResult struct {
	PublicKey string
}

// DeleteKeysResult reports a successful deletion. Deleted is false when the
// alias did not exist, which is still success.
type DeleteKeysResult struct {
	Success bool
	Deleted bool
}

// KeyEntry is one enumerated key: alias plus base64 public key.
type KeyEntry struct {
	Alias     string
	PublicKey string
}

// SignResult carries a base64-encoded signature.
type SignResult struct {
	Signature string
}

// Engine is the core façade. Construct it with New; the zero value is not
// usable.
type Engine struct {
	logger     *slog.Logger
	level      *slog.LevelVar
	store      storage.Store
	backend    keystore.Backend
	resolver   *alias.Resolver
	signer     *signature.Service
	validator  *integrity.Validator
	tracker    *biostate.Tracker
	controller *lifecycle.Controller
	gate       *authn.Gate

	mu  sync.Mutex
	cfg biotypes.Configuration
}

// New builds an engine. Configuration is read once from the injected store;
// a missing record yields defaults. Without an explicit backend a software
// backend is used, which requires a challenger to gate its private-key
// operations.
func New(opts ...options.Option) (*Engine, error) {
	oo := options.NewOptions(opts...)

	cfg, err := storage.LoadConfiguration(oo.Store)
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration: %w", err)
	}

	if cfg.DebugMode {
		oo.Level.Set(slog.LevelDebug)
	}

	backend := oo.Backend
	if backend == nil {
		if oo.Challenger == nil {
			return nil, ErrChallengerRequired
		}
		backend = keystore.NewSoftwareBackend(oo.Challenger, oo.Logger)
	}

	e := &Engine{
		logger:   oo.Logger,
		level:    oo.Level,
		store:    oo.Store,
		backend:  backend,
		resolver: alias.NewResolver(oo.AppID, oo.Store, cfg.KeyAlias),
		gate:     authn.NewGate(),
		cfg:      cfg,
	}
	e.signer = signature.NewService(backend, oo.Logger)
	e.validator = integrity.NewValidator(backend, e.signer, oo.Logger)

	if oo.Sensor != nil {
		e.tracker = biostate.NewTracker(oo.Sensor, oo.Logger)
		e.controller = lifecycle.NewController(e.tracker, oo.Sink, oo.Logger)
	}

	return e, nil
}

// ConfigureKeyAlias validates and persists a new default alias for future
// unqualified operations. Keys already created keep their alias.
func (e *Engine) ConfigureKeyAlias(keyAlias string) error {
	if err := e.resolver.Configure(keyAlias); err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg.KeyAlias = keyAlias
	e.mu.Unlock()

	return nil
}

// GetDefaultKeyAlias returns the alias unqualified operations will use.
func (e *Engine) GetDefaultKeyAlias() string {
	return e.resolver.Default()
}

// SetDebugMode toggles debug logging and persists the flag.
func (e *Engine) SetDebugMode(enabled bool) error {
	e.mu.Lock()
	e.cfg.DebugMode = enabled
	cfg := e.cfg
	e.mu.Unlock()

	if err := storage.SaveConfiguration(e.store, cfg); err != nil {
		return err
	}

	if enabled {
		e.level.Set(slog.LevelDebug)
	} else {
		e.level.Set(slog.LevelInfo)
	}

	return nil
}

// CreateKeys creates (or replaces) the key pair under the resolved alias.
// Replacement is destructive: signatures made with a previous key under the
// same alias no longer verify against the returned public key.
func (e *Engine) CreateKeys(ctx context.Context, explicitAlias string, algorithm biotypes.Algorithm) (CreateKeysResult, error) {
	if algorithm != "" && algorithm != biotypes.AlgorithmEC256 && algorithm != biotypes.AlgorithmRSA2048 {
		return CreateKeysResult{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return CreateKeysResult{}, err
	}

	release, err := e.gate.Acquire(ctx, a)
	if err != nil {
		return CreateKeysResult{}, err
	}
	defer release()

	attrs, err := e.backend.CreateKey(ctx, a, algorithm)
	if err != nil {
		return CreateKeysResult{}, err
	}

	return CreateKeysResult{
		PublicKey: base64.StdEncoding.EncodeToString(attrs.PublicKeyBytes),
	}, nil
}

// DeleteKeys removes the key pair under the resolved alias. Deleting an
// absent key succeeds with Deleted=false.
func (e *Engine) DeleteKeys(explicitAlias string) (DeleteKeysResult, error) {
	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return DeleteKeysResult{}, err
	}

	res, err := e.backend.DeleteKey(a)
	if err != nil {
		return DeleteKeysResult{}, err
	}

	return DeleteKeysResult{Success: true, Deleted: res.Deleted}, nil
}

// GetAllKeys enumerates stored keys. An empty filter lists the whole
// namespace; a non-empty filter matches one alias exactly.
func (e *Engine) GetAllKeys(aliasFilter string) ([]KeyEntry, error) {
	records, err := e.backend.ListKeys(aliasFilter)
	if err != nil {
		return nil, err
	}

	return lo.Map(records, func(r biotypes.KeyAttributes, _ int) KeyEntry {
		return KeyEntry{
			Alias:     r.Alias,
			PublicKey: base64.StdEncoding.EncodeToString(r.PublicKeyBytes),
		}
	}), nil
}

// GetKeyAttributes introspects the key under the resolved alias. An absent
// key yields None, not an error.
func (e *Engine) GetKeyAttributes(explicitAlias string) (mo.Option[biotypes.KeyAttributes], error) {
	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return mo.None[biotypes.KeyAttributes](), err
	}

	attrs, err := e.backend.Attributes(a)
	if errors.Is(err, keystore.ErrKeyNotFound) {
		return mo.None[biotypes.KeyAttributes](), nil
	}
	if err != nil {
		return mo.None[biotypes.KeyAttributes](), err
	}

	return mo.Some(attrs), nil
}

// ExportCOSEPublicKey exports the EC public key under the resolved alias as
// a COSE_Key for WebAuthn-style hosts.
func (e *Engine) ExportCOSEPublicKey(explicitAlias string) (key.Key, error) {
	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return nil, err
	}

	attrs, err := e.backend.Attributes(a)
	if err != nil {
		return nil, err
	}

	return signature.COSEPublicKey(attrs)
}

// ValidateKeyIntegrity runs the full integrity check, including a live
// sign/verify probe that requires a fresh authentication challenge.
func (e *Engine) ValidateKeyIntegrity(ctx context.Context, explicitAlias string) (biotypes.IntegrityReport, error) {
	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return biotypes.IntegrityReport{}, err
	}

	release, err := e.gate.Acquire(ctx, a)
	if err != nil {
		return biotypes.IntegrityReport{}, err
	}
	defer release()

	return e.validator.Validate(ctx, a), nil
}

// Sign signs data with the key under the resolved alias after a fresh
// biometric challenge. The signature is returned base64-encoded.
func (e *Engine) Sign(ctx context.Context, explicitAlias string, data string) (SignResult, error) {
	if len(data) == 0 {
		return SignResult{}, signature.ErrEmptyPayload
	}

	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return SignResult{}, err
	}

	release, err := e.gate.Acquire(ctx, a)
	if err != nil {
		return SignResult{}, err
	}
	defer release()

	handle, err := e.backend.Handle(a)
	if err != nil {
		return SignResult{}, err
	}

	sig, err := e.signer.Sign(ctx, handle, []byte(data))
	if err != nil {
		return SignResult{}, err
	}

	return SignResult{
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Verify checks a base64 signature over data against the public key of the
// resolved alias. A merely invalid signature returns (false, nil); malformed
// input returns a typed validation error before any platform access.
func (e *Engine) Verify(explicitAlias string, data string, signatureB64 string) (bool, error) {
	if len(data) == 0 {
		return false, signature.ErrEmptyPayload
	}
	if len(signatureB64) == 0 {
		return false, signature.ErrEmptySignature
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, signature.ErrMalformedSignature
	}

	a, err := e.resolver.Resolve(explicitAlias)
	if err != nil {
		return false, err
	}

	attrs, err := e.backend.Attributes(a)
	if err != nil {
		return false, err
	}

	return signature.Verify(attrs.Algorithm, attrs.PublicKeyBytes, []byte(data), sig)
}

// StartChangeDetection attaches one change listener. The first listener
// activates sampling and takes a baseline snapshot.
func (e *Engine) StartChangeDetection(ctx context.Context) error {
	if e.controller == nil {
		return ErrDetectionNotWired
	}

	e.controller.AddListener(ctx)
	return nil
}

// StopChangeDetection detaches one change listener. Sampling stops when the
// last listener detaches.
func (e *Engine) StopChangeDetection() error {
	if e.controller == nil {
		return ErrDetectionNotWired
	}

	e.controller.RemoveListener()
	return nil
}

// OnLifecycleSignal forwards one external lifecycle trigger (app
// foregrounded) to the change detector. While no listener is attached this
// is a no-op.
func (e *Engine) OnLifecycleSignal(ctx context.Context) {
	if e.controller == nil {
		return
	}

	e.controller.OnLifecycleSignal(ctx)
}

// LastSnapshot returns the change detector's last stored snapshot, if
// sampling is wired and a baseline exists.
func (e *Engine) LastSnapshot() (biotypes.BiometricSnapshot, bool) {
	if e.tracker == nil {
		return biotypes.BiometricSnapshot{}, false
	}
	return e.tracker.Last()
}
