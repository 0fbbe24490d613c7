// Package biostate samples platform biometric capability signals and
// classifies transitions between consecutive snapshots. Sampling happens only
// in response to external lifecycle triggers, never on a timer.
package biostate

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/keystore"
)

// Sensor is the platform signal source for biometric capability and
// enrollment state.
type Sensor interface {
	Sample(ctx context.Context) (biotypes.BiometricSnapshot, error)
}

var detEncMode cbor.EncMode

func init() {
	detEncMode, _ = cbor.CoreDetEncOptions().EncMode()
}

// DomainStateHash computes the strong enrollment fingerprint: a BLAKE2b-256
// digest over the deterministic encoding of the enrolled template IDs. Any
// template addition or removal changes the digest.
func DomainStateHash(templateIDs [][]byte) ([]byte, error) {
	sorted := slices.Clone(templateIDs)
	slices.SortFunc(sorted, bytes.Compare)

	preimage, err := detEncMode.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("cannot encode template set: %w", err)
	}

	digest := blake2b.Sum256(preimage)
	return digest[:], nil
}

// StrongFingerprint builds a domain-state-hash fingerprint from the enrolled
// template IDs.
func StrongFingerprint(templateIDs [][]byte) (biotypes.EnrollmentFingerprint, error) {
	digest, err := DomainStateHash(templateIDs)
	if err != nil {
		return biotypes.EnrollmentFingerprint{}, err
	}

	return biotypes.EnrollmentFingerprint{
		Strength: biotypes.SignalStrengthStrong,
		Digest:   digest,
	}, nil
}

// WeakFingerprint builds a count-proxy fingerprint. It cannot distinguish one
// enrolled template from several, so additive enrollments beyond the first
// are frequently invisible. That limitation is inherent to the signal, not a
// defect to compensate for.
func WeakFingerprint(count int) biotypes.EnrollmentFingerprint {
	return biotypes.EnrollmentFingerprint{
		Strength: biotypes.SignalStrengthWeak,
		Count:    count,
	}
}

// KeystoreFingerprint derives the weak fingerprint from the number of
// biometric-gated entries in a keystore backend.
func KeystoreFingerprint(backend keystore.Backend) (biotypes.EnrollmentFingerprint, error) {
	count, err := backend.BiometricKeyCount()
	if err != nil {
		return biotypes.EnrollmentFingerprint{}, err
	}

	return WeakFingerprint(count), nil
}

// SimulatedSensor is an in-memory Sensor for tests and demos. Mutators model
// platform events: enrolling templates, disabling the sensor, swapping
// hardware.
type SimulatedSensor struct {
	mu        sync.Mutex
	available bool
	kind      biotypes.BiometryKind
	templates [][]byte
	weak      bool
	now       func() time.Time
}

func NewSimulatedSensor(kind biotypes.BiometryKind) *SimulatedSensor {
	return &SimulatedSensor{
		available: true,
		kind:      kind,
		now:       time.Now,
	}
}

// UseWeakSignal switches the sensor to count-proxy fingerprints.
func (s *SimulatedSensor) UseWeakSignal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weak = true
}

func (s *SimulatedSensor) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

func (s *SimulatedSensor) SetKind(kind biotypes.BiometryKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
}

func (s *SimulatedSensor) EnrollTemplate(id []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, slices.Clone(id))
}

func (s *SimulatedSensor) RemoveAllTemplates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = nil
}

func (s *SimulatedSensor) Sample(_ context.Context) (biotypes.BiometricSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		fp  biotypes.EnrollmentFingerprint
		err error
	)
	if s.weak {
		fp = WeakFingerprint(len(s.templates))
	} else {
		fp, err = StrongFingerprint(s.templates)
		if err != nil {
			return biotypes.BiometricSnapshot{}, err
		}
	}

	kind := s.kind
	if !s.available {
		kind = biotypes.BiometryNone
	}

	return biotypes.BiometricSnapshot{
		Available:   s.available,
		Enrolled:    len(s.templates) > 0,
		Kind:        kind,
		Fingerprint: fp,
		TakenAt:     s.now(),
	}, nil
}
