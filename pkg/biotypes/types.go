package biotypes

import (
	"bytes"
	"time"
)

// EnrollmentFingerprint is a backend-specific proxy for the enrolled biometric
// template set. Strong fingerprints carry a domain-state hash; weak ones carry
// only a count of biometric-gated key-store entries.
type EnrollmentFingerprint struct {
	Strength SignalStrength
	Digest   []byte
	Count    int
}

// Equal compares two fingerprints field by field. Fingerprints of different
// strengths never compare equal.
func (f EnrollmentFingerprint) Equal(other EnrollmentFingerprint) bool {
	if f.Strength != other.Strength {
		return false
	}
	if f.Strength == SignalStrengthStrong {
		return bytes.Equal(f.Digest, other.Digest)
	}
	return f.Count == other.Count
}

// BiometricSnapshot is an immutable point-in-time observation of the sensor.
type BiometricSnapshot struct {
	Available   bool
	Enrolled    bool
	Kind        BiometryKind
	Fingerprint EnrollmentFingerprint
	TakenAt     time.Time
}

// ChangeEvent is emitted once per classified snapshot transition.
type ChangeEvent struct {
	ID         string
	Timestamp  time.Time
	ChangeType ChangeType
	Kind       BiometryKind
	Available  bool
	Enrolled   bool
}

// KeyAttributes describes one stored key pair. It never contains private key
// material.
type KeyAttributes struct {
	Alias                      string
	Algorithm                  Algorithm
	KeySizeBits                int
	HardwareBacked             bool
	UserAuthenticationRequired bool
	PublicKeyBytes             []byte
	CreatedAt                  time.Time
}

// IntegrityChecks are the individual verdicts of a key integrity validation.
// A check that could not run is reported false, never unknown.
type IntegrityChecks struct {
	KeyFormatValid      bool
	KeyAccessible       bool
	SignatureTestPassed bool
	HardwareBacked      bool
}

// IntegrityReport is the composite result of ValidateKeyIntegrity.
type IntegrityReport struct {
	Valid     bool
	KeyExists bool
	Checks    IntegrityChecks
}

// Configuration is the engine's persisted process-wide state. It is loaded
// once at construction and mutated only through ConfigureKeyAlias and
// SetDebugMode.
type Configuration struct {
	KeyAlias  string `cbor:"1,keyasint,omitempty"`
	DebugMode bool   `cbor:"2,keyasint,omitempty"`
}
