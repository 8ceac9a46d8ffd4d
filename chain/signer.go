package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer errors
var (
	// ErrSigningDenied is returned when the key holder refuses to sign.
	ErrSigningDenied = errors.New("signing denied")
	// ErrSignerUnavailable is returned when no available key controls the address.
	ErrSignerUnavailable = errors.New("signer unavailable")
)

// JSON-RPC error codes reported by wallets
const (
	walletUserRejectedCode = 4001
	walletUnauthorizedCode = 4100
	methodNotFoundCode     = -32601
)

// SigningError carries the address a signature was requested from.
type SigningError struct {
	Address common.Address
	Err     error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign with %s: %v", e.Address.Hex(), e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// SignRequest asks for a signature over Hash by Address. TypedData, when set,
// is the structured form of Hash for wallets that render what they sign.
type SignRequest struct {
	Address   common.Address
	Hash      common.Hash
	TypedData *apitypes.TypedData
}

// Signer produces 0x signatures. Implementations may block on user approval.
type Signer interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	Sign(ctx context.Context, req SignRequest) ([]byte, error)
}

// KeySigner signs headlessly with an in-memory private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner creates a KeySigner for key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewKeySignerFromHex parses a hex private key, with or without 0x prefix.
func NewKeySignerFromHex(privateKeyHex string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeySigner(key), nil
}

// Address returns the address controlled by the key.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// PrivateKey returns the underlying key.
func (s *KeySigner) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

// Accounts returns the single address controlled by the key.
func (s *KeySigner) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{s.address}, nil
}

// Sign signs req.Hash as an EIP712 signature.
func (s *KeySigner) Sign(_ context.Context, req SignRequest) ([]byte, error) {
	if req.Address != s.address {
		return nil, &SigningError{Address: req.Address, Err: ErrSignerUnavailable}
	}

	rsv, err := crypto.Sign(req.Hash.Bytes(), s.key)
	if err != nil {
		return nil, &SigningError{Address: req.Address, Err: err}
	}
	return EncodeSignature(rsv, SignatureTypeEIP712)
}

// RPCSigner asks a wallet or node over JSON-RPC for signatures. It prefers
// eth_signTypedData_v4 and falls back to eth_sign when the wallet does not
// implement typed data.
type RPCSigner struct {
	client *rpc.Client
}

// NewRPCSigner creates a wallet-backed signer.
func NewRPCSigner(client *rpc.Client) *RPCSigner {
	return &RPCSigner{client: client}
}

// Accounts returns the addresses the wallet exposes.
func (s *RPCSigner) Accounts(ctx context.Context) ([]common.Address, error) {
	var addresses []common.Address
	if err := s.client.CallContext(ctx, &addresses, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return addresses, nil
}

// Sign requests a signature from the wallet and checks it recovers to
// req.Address.
func (s *RPCSigner) Sign(ctx context.Context, req SignRequest) ([]byte, error) {
	var (
		sig []byte
		err error
	)
	if req.TypedData != nil {
		sig, err = s.signTypedData(ctx, req)
		if rpcErrorCode(err) == methodNotFoundCode {
			sig, err = s.ethSign(ctx, req)
		}
	} else {
		sig, err = s.ethSign(ctx, req)
	}
	if err != nil {
		return nil, &SigningError{Address: req.Address, Err: classifyWalletError(err)}
	}

	if err := VerifySignature(req.Hash, sig, req.Address); err != nil {
		return nil, &SigningError{Address: req.Address, Err: err}
	}
	return sig, nil
}

func (s *RPCSigner) signTypedData(ctx context.Context, req SignRequest) ([]byte, error) {
	payload, err := json.Marshal(req.TypedData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}

	var rsv hexutil.Bytes
	if err := s.client.CallContext(ctx, &rsv, "eth_signTypedData_v4", req.Address, string(payload)); err != nil {
		return nil, err
	}
	return EncodeSignature(rsv, SignatureTypeEIP712)
}

func (s *RPCSigner) ethSign(ctx context.Context, req SignRequest) ([]byte, error) {
	var rsv hexutil.Bytes
	if err := s.client.CallContext(ctx, &rsv, "eth_sign", req.Address, hexutil.Bytes(req.Hash.Bytes())); err != nil {
		return nil, err
	}
	return EncodeSignature(rsv, SignatureTypeEthSign)
}

func rpcErrorCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}

func classifyWalletError(err error) error {
	switch rpcErrorCode(err) {
	case walletUserRejectedCode:
		return fmt.Errorf("%w: %v", ErrSigningDenied, err)
	case walletUnauthorizedCode:
		return fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unknown account") || strings.Contains(msg, "no key for given address") {
		return fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
	}
	return err
}
