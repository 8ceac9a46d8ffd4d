package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureType is the trailing byte of a 0x signature.
type SignatureType uint8

// 0x v3 signature types supported by takers and makers
const (
	SignatureTypeIllegal SignatureType = 0x00
	SignatureTypeInvalid SignatureType = 0x01
	SignatureTypeEIP712  SignatureType = 0x02
	SignatureTypeEthSign SignatureType = 0x03
)

// ecSignatureLength is v (1) + r (32) + s (32) + type (1).
const ecSignatureLength = 66

// Signature errors
var (
	ErrMalformedSignature       = errors.New("malformed signature")
	ErrUnsupportedSignatureType = errors.New("unsupported signature type")
	ErrSignatureMismatch        = errors.New("signature does not match signer")
)

// EncodeSignature converts a secp256k1 [R || S || V] signature (V in 0/1 or
// 27/28) into the 0x layout [V || R || S || type].
func EncodeSignature(rsv []byte, sigType SignatureType) ([]byte, error) {
	if len(rsv) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(rsv))
	}
	v := rsv[64]
	if v < 27 {
		v += 27
	}

	sig := make([]byte, 0, ecSignatureLength)
	sig = append(sig, v)
	sig = append(sig, rsv[:64]...)
	sig = append(sig, byte(sigType))
	return sig, nil
}

// RecoverSigner returns the address that produced a 0x EIP712 or EthSign
// signature over hash.
func RecoverSigner(hash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != ecSignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(signature))
	}

	digest := hash.Bytes()
	switch SignatureType(signature[65]) {
	case SignatureTypeEIP712:
	case SignatureTypeEthSign:
		digest = accounts.TextHash(hash.Bytes())
	default:
		return common.Address{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedSignatureType, signature[65])
	}

	v := signature[0]
	if v != 27 && v != 28 {
		return common.Address{}, fmt.Errorf("%w: v=%d", ErrMalformedSignature, v)
	}
	rsv := make([]byte, crypto.SignatureLength)
	copy(rsv, signature[1:65])
	rsv[64] = v - 27

	pub, err := crypto.SigToPub(digest, rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that signature over hash was produced by signer.
func VerifySignature(hash common.Hash, signature []byte, signer common.Address) error {
	recovered, err := RecoverSigner(hash, signature)
	if err != nil {
		return err
	}
	if recovered != signer {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrSignatureMismatch, recovered.Hex(), signer.Hex())
	}
	return nil
}

// VerifyOrderSignature checks the maker's signature over the order hash.
func VerifyOrderSignature(order *SignedOrder) error {
	hash, err := OrderHash(order)
	if err != nil {
		return err
	}
	return VerifySignature(hash, order.Signature, order.MakerAddress)
}
