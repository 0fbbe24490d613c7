package keystore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/go-biokey/biokey/pkg/authn"
	"github.com/go-biokey/biokey/pkg/biotypes"
)

const (
	createReason = "Register biometric key"
	signReason   = "Sign with biometric key"
)

type elementBackend struct {
	element    SecureElement
	challenger authn.Challenger
	logger     *slog.Logger
	algorithms []biotypes.Algorithm
	hardware   bool
}

// NewSecureEnclaveBackend wraps a Secure-Enclave-style element: EC-256 only,
// always hardware-backed.
func NewSecureEnclaveBackend(element SecureElement, challenger authn.Challenger, logger *slog.Logger) Backend {
	return newElementBackend(element, challenger, logger, []biotypes.Algorithm{biotypes.AlgorithmEC256}, true)
}

// NewHardwareKeystoreBackend wraps a hardware-keystore element offering both
// EC-256 (preferred) and RSA-2048 for legacy interoperability.
func NewHardwareKeystoreBackend(element SecureElement, challenger authn.Challenger, logger *slog.Logger) Backend {
	return newElementBackend(element, challenger, logger, []biotypes.Algorithm{biotypes.AlgorithmEC256, biotypes.AlgorithmRSA2048}, true)
}

// NewSoftwareBackend is the software fallback: both algorithms, no hardware
// backing. Used for tests and for environments without secure hardware.
func NewSoftwareBackend(challenger authn.Challenger, logger *slog.Logger) Backend {
	return newElementBackend(NewSoftElement(), challenger, logger, []biotypes.Algorithm{biotypes.AlgorithmEC256, biotypes.AlgorithmRSA2048}, false)
}

func newElementBackend(
	element SecureElement,
	challenger authn.Challenger,
	logger *slog.Logger,
	algorithms []biotypes.Algorithm,
	hardware bool,
) Backend {
	if logger == nil {
		logger = slog.Default()
	}

	return &elementBackend{
		element:    element,
		challenger: challenger,
		logger:     logger,
		algorithms: algorithms,
		hardware:   hardware,
	}
}

func (b *elementBackend) CreateKey(ctx context.Context, alias string, algorithm biotypes.Algorithm) (biotypes.KeyAttributes, error) {
	if algorithm == "" {
		algorithm = b.algorithms[0]
	}
	if !slices.Contains(b.algorithms, algorithm) {
		return biotypes.KeyAttributes{}, newErrorMessage(ErrAlgorithmNotSupported, string(algorithm))
	}

	if err := authn.Authenticate(ctx, b.challenger, createReason); err != nil {
		return biotypes.KeyAttributes{}, err
	}

	// Create-or-replace: an existing entry under the alias is removed first.
	if _, err := b.element.Delete(alias); err != nil {
		return biotypes.KeyAttributes{}, fmt.Errorf("%w: cannot replace existing key: %w", ErrCreateFailed, err)
	}

	if _, err := b.element.Generate(alias, algorithm); err != nil {
		return biotypes.KeyAttributes{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	attrs, err := b.Attributes(alias)
	if err != nil {
		return biotypes.KeyAttributes{}, fmt.Errorf("%w: cannot introspect new key: %w", ErrCreateFailed, err)
	}

	b.logger.Debug("created biometric key",
		"alias", alias,
		"algorithm", algorithm.String(),
		"hardwareBacked", b.hardware,
		"publicKeyLen", len(attrs.PublicKeyBytes),
	)

	return attrs, nil
}

func (b *elementBackend) DeleteKey(alias string) (DeleteResult, error) {
	deleted, err := b.element.Delete(alias)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	b.logger.Debug("deleted biometric key", "alias", alias, "existed", deleted)

	return DeleteResult{Deleted: deleted}, nil
}

func (b *elementBackend) ListKeys(filter string) ([]biotypes.KeyAttributes, error) {
	aliases, err := b.element.Aliases()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, err)
	}
	slices.Sort(aliases)

	if filter != "" {
		aliases = lo.Filter(aliases, func(a string, _ int) bool {
			return a == filter
		})
	}

	records := make([]biotypes.KeyAttributes, 0, len(aliases))
	for _, a := range aliases {
		attrs, err := b.Attributes(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEnumerationFailed, err)
		}
		records = append(records, attrs)
	}

	return records, nil
}

func (b *elementBackend) Handle(alias string) (*Handle, error) {
	attrs, err := b.element.Attributes(alias)
	if err != nil {
		return nil, ErrKeyNotFound
	}

	return &Handle{
		Alias:          alias,
		Algorithm:      attrs.Algorithm,
		HardwareBacked: b.hardware,
	}, nil
}

func (b *elementBackend) Attributes(alias string) (biotypes.KeyAttributes, error) {
	attrs, err := b.element.Attributes(alias)
	if err != nil {
		return biotypes.KeyAttributes{}, ErrKeyNotFound
	}

	pubBytes, err := EncodePublicKey(attrs.Algorithm, attrs.Public)
	if err != nil {
		return biotypes.KeyAttributes{}, err
	}

	return biotypes.KeyAttributes{
		Alias:                      alias,
		Algorithm:                  attrs.Algorithm,
		KeySizeBits:                attrs.Algorithm.KeySizeBits(),
		HardwareBacked:             b.hardware,
		UserAuthenticationRequired: true,
		PublicKeyBytes:             pubBytes,
		CreatedAt:                  attrs.CreatedAt,
	}, nil
}

func (b *elementBackend) Sign(ctx context.Context, h *Handle, payload []byte) ([]byte, error) {
	// A fresh challenge per signature; success is never carried over from a
	// previous call.
	if err := authn.Authenticate(ctx, b.challenger, signReason); err != nil {
		return nil, err
	}

	sig, err := b.element.SignDigest(h.Alias, PayloadDigest(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureCreation, err)
	}

	return sig, nil
}

func (b *elementBackend) SupportedAlgorithms() []biotypes.Algorithm {
	return slices.Clone(b.algorithms)
}

func (b *elementBackend) HardwareBacked() bool {
	return b.hardware
}

func (b *elementBackend) BiometricKeyCount() (int, error) {
	aliases, err := b.element.Aliases()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEnumerationFailed, err)
	}

	// Every entry in this namespace requires user authentication, so the
	// namespace size is the weak enrollment proxy.
	return len(aliases), nil
}
