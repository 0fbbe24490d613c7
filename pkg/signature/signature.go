// Package signature signs and verifies payloads with keys held by a keystore
// backend. Signing demands a fresh authentication challenge per call;
// verification is a pure function over public material.
package signature

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ldclabs/cose/key"
	ecdsa2 "github.com/ldclabs/cose/key/ecdsa"

	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/keystore"
)

var (
	ErrEmptyPayload       = errors.New("signature: empty payload")
	ErrEmptySignature     = errors.New("signature: empty signature")
	ErrMalformedSignature = errors.New("signature: malformed base64 signature")
	ErrVerifyMechanics    = errors.New("signature: verification could not run")
	ErrNotECKey           = errors.New("signature: COSE export supports EC keys only")
)

// Service signs with a backend-held key and verifies against exported public
// keys.
type Service struct {
	backend keystore.Backend
	logger  *slog.Logger
}

func NewService(backend keystore.Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		backend: backend,
		logger:  logger,
	}
}

// Sign signs payload with the key behind the handle. The signature algorithm
// follows the handle's key type: ECDSA/SHA-256 (ASN.1 DER) for EC keys,
// RSA PKCS#1 v1.5/SHA-256 for RSA keys.
func (s *Service) Sign(ctx context.Context, h *keystore.Handle, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	sig, err := s.backend.Sign(ctx, h, payload)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("signed payload",
		"alias", h.Alias,
		"algorithm", h.Algorithm.String(),
		"payloadLen", len(payload),
		"signatureLen", len(sig),
	)

	return sig, nil
}

// Verify checks a signature against an exported public key. A merely invalid
// signature yields (false, nil); malformed inputs yield typed errors.
func Verify(algorithm biotypes.Algorithm, publicKeyBytes, payload, sig []byte) (bool, error) {
	if len(payload) == 0 {
		return false, ErrEmptyPayload
	}
	if len(sig) == 0 {
		return false, ErrEmptySignature
	}

	pub, err := keystore.ParsePublicKey(algorithm, publicKeyBytes)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerifyMechanics, err)
	}

	digest := keystore.PayloadDigest(payload)

	switch algorithm {
	case biotypes.AlgorithmEC256:
		return ecdsa.VerifyASN1(pub.(*ecdsa.PublicKey), digest, sig), nil
	case biotypes.AlgorithmRSA2048:
		err := rsa.VerifyPKCS1v15(pub.(*rsa.PublicKey), crypto.SHA256, digest, sig)
		return err == nil, nil
	default:
		return false, fmt.Errorf("%w: unknown algorithm %q", ErrVerifyMechanics, algorithm)
	}
}

// COSEPublicKey exports an EC key's public half as a COSE_Key for hosts that
// speak the WebAuthn key format.
func COSEPublicKey(attrs biotypes.KeyAttributes) (key.Key, error) {
	if attrs.Algorithm != biotypes.AlgorithmEC256 {
		return nil, ErrNotECKey
	}

	pub, err := keystore.ParsePublicKey(attrs.Algorithm, attrs.PublicKeyBytes)
	if err != nil {
		return nil, err
	}

	coseKey, err := ecdsa2.KeyFromPublic(pub.(*ecdsa.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("cannot convert public key to COSE_Key: %w", err)
	}

	return coseKey, nil
}
