// Package integrity asserts that a stored key is present, correctly typed,
// and functionally capable of signing. A check that cannot run is reported
// false, never unknown: absence of evidence is failure here.
package integrity

import (
	"context"
	"log/slog"

	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/keystore"
	"github.com/go-biokey/biokey/pkg/signature"
)

// probePayload is the fixed payload for the live sign/verify round trip.
var probePayload = []byte("biokey.integrity.probe.v1")

// Validator composes the keystore backend and signature service into one
// integrity verdict per alias.
type Validator struct {
	backend keystore.Backend
	signer  *signature.Service
	logger  *slog.Logger
}

func NewValidator(backend keystore.Backend, signer *signature.Service, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Validator{
		backend: backend,
		signer:  signer,
		logger:  logger,
	}
}

// Validate runs the three checks in order: existence, attribute
// introspection, live signature round trip. The round trip requires a fresh
// authentication challenge exactly like a normal signing call. Any failed or
// unrunnable check short-circuits everything downstream to false.
func (v *Validator) Validate(ctx context.Context, alias string) biotypes.IntegrityReport {
	report := biotypes.IntegrityReport{}

	handle, err := v.backend.Handle(alias)
	if err != nil {
		v.logger.Debug("integrity: key absent", "alias", alias)
		return report
	}
	report.KeyExists = true

	attrs, err := v.backend.Attributes(alias)
	if err != nil {
		v.logger.Debug("integrity: attributes unreadable", "alias", alias, "err", err)
		return report
	}

	report.Checks.HardwareBacked = attrs.HardwareBacked
	report.Checks.KeyFormatValid = formatValid(attrs)
	report.Checks.KeyAccessible = true

	if !report.Checks.KeyFormatValid {
		return report
	}

	sig, err := v.signer.Sign(ctx, handle, probePayload)
	if err != nil {
		v.logger.Debug("integrity: probe signature failed", "alias", alias, "err", err)
		return report
	}

	ok, err := signature.Verify(attrs.Algorithm, attrs.PublicKeyBytes, probePayload, sig)
	if err != nil || !ok {
		v.logger.Debug("integrity: probe verification failed", "alias", alias, "err", err)
		return report
	}
	report.Checks.SignatureTestPassed = true

	report.Valid = report.KeyExists &&
		report.Checks.KeyFormatValid &&
		report.Checks.KeyAccessible &&
		report.Checks.SignatureTestPassed

	return report
}

func formatValid(attrs biotypes.KeyAttributes) bool {
	if !attrs.UserAuthenticationRequired {
		return false
	}
	if len(attrs.PublicKeyBytes) == 0 {
		return false
	}

	switch attrs.Algorithm {
	case biotypes.AlgorithmEC256:
		return attrs.KeySizeBits == 256
	case biotypes.AlgorithmRSA2048:
		return attrs.KeySizeBits == 2048
	default:
		return false
	}
}
