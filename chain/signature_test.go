package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeySigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewKeySigner(key)
}

func TestKeySignerSignatureRecovers(t *testing.T) {
	signer := newTestKeySigner(t)
	hash := crypto.Keccak256Hash([]byte("fill"))

	sig, err := signer.Sign(context.Background(), SignRequest{Address: signer.Address(), Hash: hash})
	require.NoError(t, err)
	require.Len(t, sig, 66)
	assert.Contains(t, []byte{27, 28}, sig[0])
	assert.Equal(t, byte(SignatureTypeEIP712), sig[65])

	recovered, err := RecoverSigner(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
	require.NoError(t, VerifySignature(hash, sig, signer.Address()))
}

func TestKeySignerRejectsOtherAddress(t *testing.T) {
	signer := newTestKeySigner(t)

	_, err := signer.Sign(context.Background(), SignRequest{Address: testTaker, Hash: crypto.Keccak256Hash(nil)})
	require.ErrorIs(t, err, ErrSignerUnavailable)

	var signingErr *SigningError
	require.ErrorAs(t, err, &signingErr)
	assert.Equal(t, testTaker, signingErr.Address)
}

func TestNewKeySignerFromHex(t *testing.T) {
	const key = "f2f48ee19680706196e2e339e5da3491186e0c4c5030670656b0e0164837257d"

	withPrefix, err := NewKeySignerFromHex("0x" + key)
	require.NoError(t, err)
	bare, err := NewKeySignerFromHex(key)
	require.NoError(t, err)
	assert.Equal(t, withPrefix.Address(), bare.Address())

	_, err = NewKeySignerFromHex("0xnothex")
	require.Error(t, err)
}

func TestRecoverEthSignSignature(t *testing.T) {
	signer := newTestKeySigner(t)
	hash := crypto.Keccak256Hash([]byte("fill"))

	rsv, err := crypto.Sign(accounts.TextHash(hash.Bytes()), signer.PrivateKey())
	require.NoError(t, err)
	sig, err := EncodeSignature(rsv, SignatureTypeEthSign)
	require.NoError(t, err)

	recovered, err := RecoverSigner(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestVerifySignatureMismatch(t *testing.T) {
	signer := newTestKeySigner(t)
	hash := crypto.Keccak256Hash([]byte("fill"))

	sig, err := signer.Sign(context.Background(), SignRequest{Address: signer.Address(), Hash: hash})
	require.NoError(t, err)

	err = VerifySignature(hash, sig, testMaker)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	err = VerifySignature(crypto.Keccak256Hash([]byte("other")), sig, signer.Address())
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestRecoverSignerErrors(t *testing.T) {
	signer := newTestKeySigner(t)
	hash := crypto.Keccak256Hash([]byte("fill"))
	sig, err := signer.Sign(context.Background(), SignRequest{Address: signer.Address(), Hash: hash})
	require.NoError(t, err)

	_, err = RecoverSigner(hash, sig[:65])
	require.ErrorIs(t, err, ErrMalformedSignature)

	wrongType := append([]byte(nil), sig...)
	wrongType[65] = byte(SignatureTypeInvalid)
	_, err = RecoverSigner(hash, wrongType)
	require.ErrorIs(t, err, ErrUnsupportedSignatureType)

	badV := append([]byte(nil), sig...)
	badV[0] = 5
	_, err = RecoverSigner(hash, badV)
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestEncodeSignature(t *testing.T) {
	rsv := make([]byte, 65)
	rsv[0] = 0xaa
	rsv[64] = 1

	sig, err := EncodeSignature(rsv, SignatureTypeEIP712)
	require.NoError(t, err)
	assert.Equal(t, byte(28), sig[0])
	assert.Equal(t, byte(0xaa), sig[1])
	assert.Equal(t, byte(SignatureTypeEIP712), sig[65])

	_, err = EncodeSignature(rsv[:64], SignatureTypeEIP712)
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestVerifyOrderSignature(t *testing.T) {
	maker := newTestKeySigner(t)
	order := testOrder()
	order.MakerAddress = maker.Address()

	hash, err := OrderHash(order)
	require.NoError(t, err)
	order.Signature, err = maker.Sign(context.Background(), SignRequest{Address: maker.Address(), Hash: hash})
	require.NoError(t, err)
	require.NoError(t, VerifyOrderSignature(order))

	order.MakerAssetAmount.Add(order.MakerAssetAmount, order.MakerAssetAmount)
	require.ErrorIs(t, VerifyOrderSignature(order), ErrSignatureMismatch)
}
