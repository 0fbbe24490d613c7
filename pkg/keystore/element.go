package keystore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"math/big"
	"sync"
	"time"

	"github.com/go-biokey/biokey/pkg/biotypes"
)

// SecureElement is the platform secure key-store primitive. Real platforms
// provide it as a thin adapter over their hardware keystore; SoftElement is
// the in-process software implementation used for tests and environments
// without secure hardware.
type SecureElement interface {
	Generate(alias string, algorithm biotypes.Algorithm) (crypto.PublicKey, error)
	Delete(alias string) (bool, error)
	Aliases() ([]string, error)
	Attributes(alias string) (ElementAttributes, error)
	// SignDigest signs a SHA-256 digest with the private key under alias.
	SignDigest(alias string, digest []byte) ([]byte, error)
}

// ElementAttributes is what an element can introspect about one entry.
type ElementAttributes struct {
	Algorithm biotypes.Algorithm
	Public    crypto.PublicKey
	CreatedAt time.Time
}

type softKey struct {
	algorithm biotypes.Algorithm
	ecPriv    *ecdsa.PrivateKey
	rsaPriv   *rsa.PrivateKey
	createdAt time.Time
}

// SoftElement keeps key pairs in process memory and performs real ECDSA and
// RSA operations. Keys do not survive a restart and are not hardware-backed.
type SoftElement struct {
	mu   sync.Mutex
	keys map[string]*softKey
	now  func() time.Time
}

func NewSoftElement() *SoftElement {
	return &SoftElement{
		keys: make(map[string]*softKey),
		now:  time.Now,
	}
}

func (e *SoftElement) Generate(alias string, algorithm biotypes.Algorithm) (crypto.PublicKey, error) {
	k := &softKey{
		algorithm: algorithm,
		createdAt: e.now(),
	}

	var pub crypto.PublicKey
	switch algorithm {
	case biotypes.AlgorithmEC256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		k.ecPriv = priv
		pub = &priv.PublicKey
	case biotypes.AlgorithmRSA2048:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}
		k.rsaPriv = priv
		pub = &priv.PublicKey
	default:
		return nil, ErrAlgorithmNotSupported
	}

	e.mu.Lock()
	e.keys[alias] = k
	e.mu.Unlock()

	return pub, nil
}

func (e *SoftElement) Delete(alias string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.keys[alias]
	delete(e.keys, alias)
	return ok, nil
}

func (e *SoftElement) Aliases() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	aliases := make([]string, 0, len(e.keys))
	for alias := range e.keys {
		aliases = append(aliases, alias)
	}
	return aliases, nil
}

func (e *SoftElement) Attributes(alias string) (ElementAttributes, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k, ok := e.keys[alias]
	if !ok {
		return ElementAttributes{}, ErrKeyNotFound
	}

	attrs := ElementAttributes{
		Algorithm: k.algorithm,
		CreatedAt: k.createdAt,
	}
	if k.ecPriv != nil {
		attrs.Public = &k.ecPriv.PublicKey
	} else {
		attrs.Public = &k.rsaPriv.PublicKey
	}

	return attrs, nil
}

func (e *SoftElement) SignDigest(alias string, digest []byte) ([]byte, error) {
	e.mu.Lock()
	k, ok := e.keys[alias]
	e.mu.Unlock()
	if !ok {
		return nil, ErrKeyNotFound
	}

	switch k.algorithm {
	case biotypes.AlgorithmEC256:
		return ecdsa.SignASN1(rand.Reader, k.ecPriv, digest)
	case biotypes.AlgorithmRSA2048:
		return rsa.SignPKCS1v15(rand.Reader, k.rsaPriv, crypto.SHA256, digest)
	default:
		return nil, ErrAlgorithmNotSupported
	}
}

// PayloadDigest is the digest signed for a payload; both supported
// algorithms sign SHA-256.
func PayloadDigest(payload []byte) []byte {
	digest := sha256.Sum256(payload)
	return digest[:]
}

// EncodePublicKey renders a public key in its wire form: 65-byte uncompressed
// P-256 point for EC keys, PKIX DER for RSA keys.
func EncodePublicKey(algorithm biotypes.Algorithm, pub crypto.PublicKey) ([]byte, error) {
	switch algorithm {
	case biotypes.AlgorithmEC256:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, newErrorMessage(ErrPublicKeyEncoding, "*ecdsa.PublicKey was expected")
		}
		ecdhPub, err := ecPub.ECDH()
		if err != nil {
			return nil, newErrorMessage(ErrPublicKeyEncoding, err.Error())
		}
		return ecdhPub.Bytes(), nil
	case biotypes.AlgorithmRSA2048:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, newErrorMessage(ErrPublicKeyEncoding, "*rsa.PublicKey was expected")
		}
		return x509.MarshalPKIXPublicKey(rsaPub)
	default:
		return nil, ErrAlgorithmNotSupported
	}
}

// ParsePublicKey is the inverse of EncodePublicKey.
func ParsePublicKey(algorithm biotypes.Algorithm, b []byte) (crypto.PublicKey, error) {
	switch algorithm {
	case biotypes.AlgorithmEC256:
		if len(b) != 65 || b[0] != 4 {
			return nil, newErrorMessage(ErrPublicKeyEncoding, "uncompressed P-256 point was expected")
		}
		x := new(big.Int).SetBytes(b[1:33])
		y := new(big.Int).SetBytes(b[33:])
		pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		// Round-tripping through crypto/ecdh validates the point is on the
		// curve.
		if _, err := pub.ECDH(); err != nil {
			return nil, newErrorMessage(ErrPublicKeyEncoding, "point is not on P-256")
		}
		return pub, nil
	case biotypes.AlgorithmRSA2048:
		pub, err := x509.ParsePKIXPublicKey(b)
		if err != nil {
			return nil, newErrorMessage(ErrPublicKeyEncoding, err.Error())
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, newErrorMessage(ErrPublicKeyEncoding, "*rsa.PublicKey was expected")
		}
		return rsaPub, nil
	default:
		return nil, ErrAlgorithmNotSupported
	}
}
