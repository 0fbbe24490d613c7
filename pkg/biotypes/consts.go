package biotypes

// Algorithm identifies the asymmetric key algorithm of a stored key pair.
type Algorithm string

const (
	AlgorithmEC256   Algorithm = "ec256"
	AlgorithmRSA2048 Algorithm = "rsa2048"
)

func (a Algorithm) String() string {
	return string(a)
}

// KeySizeBits returns the modulus/curve size associated with the algorithm.
func (a Algorithm) KeySizeBits() int {
	switch a {
	case AlgorithmEC256:
		return 256
	case AlgorithmRSA2048:
		return 2048
	default:
		return 0
	}
}

// BiometryKind describes the sensor modality reported by the platform.
type BiometryKind byte

const (
	BiometryNone BiometryKind = iota
	BiometryFingerprint
	BiometryFace
	BiometryIris
	BiometryGeneric
)

func (k BiometryKind) String() string {
	switch k {
	case BiometryNone:
		return "none"
	case BiometryFingerprint:
		return "fingerprint"
	case BiometryFace:
		return "face"
	case BiometryIris:
		return "iris"
	case BiometryGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// ChangeType classifies a transition between two biometric snapshots.
type ChangeType byte

const (
	BiometricEnabled ChangeType = iota + 1
	BiometricDisabled
	EnrollmentChanged
	HardwareChanged
	StateChanged
)

func (t ChangeType) String() string {
	switch t {
	case BiometricEnabled:
		return "BIOMETRIC_ENABLED"
	case BiometricDisabled:
		return "BIOMETRIC_DISABLED"
	case EnrollmentChanged:
		return "ENROLLMENT_CHANGED"
	case HardwareChanged:
		return "HARDWARE_CHANGED"
	case StateChanged:
		return "STATE_CHANGED"
	default:
		return "unknown"
	}
}

// SignalStrength qualifies how trustworthy an enrollment fingerprint is.
// Strong signals are cryptographic domain-state hashes that change on any
// template mutation; weak signals are key-store entry counts that cannot see
// additive enrollments beyond the first.
type SignalStrength byte

const (
	SignalStrengthWeak SignalStrength = iota
	SignalStrengthStrong
)

func (s SignalStrength) String() string {
	switch s {
	case SignalStrengthWeak:
		return "weak"
	case SignalStrengthStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// AuthOutcomeKind is the three-way result of an authentication challenge.
type AuthOutcomeKind byte

const (
	AuthOutcomeSuccess AuthOutcomeKind = iota + 1
	AuthOutcomeRecoverableFailure
	AuthOutcomeTerminalFailure
)

func (k AuthOutcomeKind) String() string {
	switch k {
	case AuthOutcomeSuccess:
		return "success"
	case AuthOutcomeRecoverableFailure:
		return "recoverableFailure"
	case AuthOutcomeTerminalFailure:
		return "terminalFailure"
	default:
		return "unknown"
	}
}

// AuthCode is a stable code distinguishing terminal authentication outcomes.
type AuthCode byte

const (
	AuthCodeUserCancel AuthCode = iota + 1
	AuthCodeUserFallback
	AuthCodeSystemCancel
	AuthCodeLockoutTemporary
	AuthCodeLockoutPermanent
	AuthCodeBiometryNotAvailable
	AuthCodeBiometryNotEnrolled
	AuthCodePasscodeNotSet
	AuthCodeSystemError
)

func (c AuthCode) String() string {
	switch c {
	case AuthCodeUserCancel:
		return "userCancel"
	case AuthCodeUserFallback:
		return "userFallback"
	case AuthCodeSystemCancel:
		return "systemCancel"
	case AuthCodeLockoutTemporary:
		return "lockoutTemporary"
	case AuthCodeLockoutPermanent:
		return "lockoutPermanent"
	case AuthCodeBiometryNotAvailable:
		return "biometryNotAvailable"
	case AuthCodeBiometryNotEnrolled:
		return "biometryNotEnrolled"
	case AuthCodePasscodeNotSet:
		return "passcodeNotSet"
	case AuthCodeSystemError:
		return "systemError"
	default:
		return "unknown"
	}
}
