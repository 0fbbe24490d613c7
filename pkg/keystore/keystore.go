// Package keystore manages asymmetric key pairs gated by biometric
// authentication. The Backend interface is the single capability surface the
// rest of the module depends on; concrete backends differ only in which
// algorithms they offer and whether they can promise hardware backing.
package keystore

import (
	"context"
	"errors"

	"github.com/go-biokey/biokey/pkg/biotypes"
)

var (
	ErrKeyNotFound           = errors.New("keystore: key not found")
	ErrCreateFailed          = errors.New("keystore: key creation failed")
	ErrDeleteFailed          = errors.New("keystore: key deletion failed")
	ErrEnumerationFailed     = errors.New("keystore: key enumeration failed")
	ErrAlgorithmNotSupported = errors.New("keystore: algorithm not supported by this backend")
	ErrSignatureCreation     = errors.New("keystore: signature creation failed")
	ErrPublicKeyEncoding     = errors.New("keystore: cannot encode public key")
)

// ErrorWithMessage attaches operation context to a sentinel error.
type ErrorWithMessage struct {
	Message string
	Err     error
}

func newErrorMessage(err error, msg string) *ErrorWithMessage {
	return &ErrorWithMessage{
		Message: msg,
		Err:     err,
	}
}

func (m *ErrorWithMessage) Error() string {
	if m.Message != "" {
		return m.Err.Error() + " (" + m.Message + ")"
	}
	return m.Err.Error()
}

func (m *ErrorWithMessage) Unwrap() error {
	return m.Err
}

// Handle is an opaque reference to one stored key, valid for the scope of a
// single authenticated operation. It never carries private key material.
type Handle struct {
	Alias          string
	Algorithm      biotypes.Algorithm
	HardwareBacked bool
}

// DeleteResult distinguishes "deleted" from "was already absent"; both are
// success.
type DeleteResult struct {
	Deleted bool
}

// Backend creates, deletes, enumerates and signs with biometric-bound key
// pairs. Every private-key use demands a fresh authentication challenge; a
// positive outcome is never cached across calls.
type Backend interface {
	// CreateKey generates a key pair under alias, deleting any existing
	// entry first. Create-or-replace is deliberate: signatures issued under
	// a replaced key stop verifying against the new public key.
	CreateKey(ctx context.Context, alias string, algorithm biotypes.Algorithm) (biotypes.KeyAttributes, error)

	// DeleteKey removes the entry. Deleting an absent alias succeeds with
	// Deleted=false.
	DeleteKey(alias string) (DeleteResult, error)

	// ListKeys enumerates stored keys. An empty filter lists the whole
	// namespace; a non-empty filter is an exact alias match. Private key
	// material is never returned.
	ListKeys(filter string) ([]biotypes.KeyAttributes, error)

	// Handle resolves an alias to an opaque key handle.
	Handle(alias string) (*Handle, error)

	// Attributes introspects one stored key.
	Attributes(alias string) (biotypes.KeyAttributes, error)

	// Sign runs an authentication challenge and, on success, signs the
	// payload with the key behind the handle.
	Sign(ctx context.Context, h *Handle, payload []byte) ([]byte, error)

	// SupportedAlgorithms lists what CreateKey accepts, preferred first.
	SupportedAlgorithms() []biotypes.Algorithm

	// HardwareBacked reports whether keys in this backend live behind a
	// secure hardware boundary.
	HardwareBacked() bool

	// BiometricKeyCount is the weak enrollment-fingerprint proxy: the number
	// of biometric-gated entries in the namespace.
	BiometricKeyCount() (int, error)
}
