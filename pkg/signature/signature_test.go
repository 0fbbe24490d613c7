package signature

import (
	"context"
	"testing"

	"github.com/ldclabs/cose/iana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-biokey/biokey/pkg/authn"
	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/keystore"
)

func approveAll(_ context.Context, _ string) (authn.AuthOutcome, error) {
	return authn.AuthOutcome{Kind: biotypes.AuthOutcomeSuccess}, nil
}

func newSigner(t *testing.T) (*Service, keystore.Backend) {
	t.Helper()

	backend := keystore.NewSoftwareBackend(authn.ChallengerFunc(approveAll), nil)
	return NewService(backend, nil), backend
}

func signRoundTrip(t *testing.T, algorithm biotypes.Algorithm) {
	t.Helper()

	svc, backend := newSigner(t)
	ctx := context.Background()

	attrs, err := backend.CreateKey(ctx, "app.bio.key", algorithm)
	require.NoError(t, err)

	handle, err := backend.Handle("app.bio.key")
	require.NoError(t, err)

	payload := []byte("payload under test")
	sig, err := svc.Sign(ctx, handle, payload)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	ok, err := Verify(algorithm, attrs.PublicKeyBytes, payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	// A single flipped bit must invalidate, not error.
	mutated := make([]byte, len(sig))
	copy(mutated, sig)
	mutated[len(mutated)/2] ^= 0x01

	ok, err = Verify(algorithm, attrs.PublicKeyBytes, payload, mutated)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different payload must invalidate too.
	ok, err = Verify(algorithm, attrs.PublicKeyBytes, []byte("other payload"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignVerifyRoundTripEC(t *testing.T) {
	signRoundTrip(t, biotypes.AlgorithmEC256)
}

func TestSignVerifyRoundTripRSA(t *testing.T) {
	signRoundTrip(t, biotypes.AlgorithmRSA2048)
}

func TestAlgorithmConsistency(t *testing.T) {
	svc, backend := newSigner(t)
	ctx := context.Background()

	ecAttrs, err := backend.CreateKey(ctx, "key.ec", biotypes.AlgorithmEC256)
	require.NoError(t, err)
	rsaAttrs, err := backend.CreateKey(ctx, "key.rsa", biotypes.AlgorithmRSA2048)
	require.NoError(t, err)

	payload := []byte("cross-check")

	ecHandle, err := backend.Handle("key.ec")
	require.NoError(t, err)
	ecSig, err := svc.Sign(ctx, ecHandle, payload)
	require.NoError(t, err)

	rsaHandle, err := backend.Handle("key.rsa")
	require.NoError(t, err)
	rsaSig, err := svc.Sign(ctx, rsaHandle, payload)
	require.NoError(t, err)

	// An RSA signature never verifies under the EC key's algorithm, and
	// vice versa. A wrong-format signature is invalid or a mechanics error,
	// never valid.
	ok, err := Verify(biotypes.AlgorithmEC256, ecAttrs.PublicKeyBytes, payload, rsaSig)
	if err == nil {
		assert.False(t, ok)
	}

	ok, err = Verify(biotypes.AlgorithmRSA2048, rsaAttrs.PublicKeyBytes, payload, ecSig)
	if err == nil {
		assert.False(t, ok)
	}
}

func TestSignEmptyPayload(t *testing.T) {
	svc, backend := newSigner(t)
	ctx := context.Background()

	_, err := backend.CreateKey(ctx, "app.bio.key", biotypes.AlgorithmEC256)
	require.NoError(t, err)
	handle, err := backend.Handle("app.bio.key")
	require.NoError(t, err)

	_, err = svc.Sign(ctx, handle, nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestVerifyValidationErrors(t *testing.T) {
	_, err := Verify(biotypes.AlgorithmEC256, nil, nil, []byte{1})
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Verify(biotypes.AlgorithmEC256, nil, []byte("data"), nil)
	assert.ErrorIs(t, err, ErrEmptySignature)

	_, err = Verify(biotypes.AlgorithmEC256, []byte("junk"), []byte("data"), []byte{1})
	assert.ErrorIs(t, err, ErrVerifyMechanics)
}

func TestCOSEPublicKeyExport(t *testing.T) {
	_, backend := newSigner(t)
	ctx := context.Background()

	attrs, err := backend.CreateKey(ctx, "app.bio.key", biotypes.AlgorithmEC256)
	require.NoError(t, err)

	coseKey, err := COSEPublicKey(attrs)
	require.NoError(t, err)

	assert.EqualValues(t, iana.KeyTypeEC2, coseKey[iana.KeyParameterKty])
}

func TestCOSEPublicKeyRejectsRSA(t *testing.T) {
	_, backend := newSigner(t)

	attrs, err := backend.CreateKey(context.Background(), "key.rsa", biotypes.AlgorithmRSA2048)
	require.NoError(t, err)

	_, err = COSEPublicKey(attrs)
	assert.ErrorIs(t, err, ErrNotECKey)
}
