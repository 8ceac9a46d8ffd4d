package chain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712 related errors
var (
	ErrMissingChainID = errors.New("missing chain id")
)

// EIP712 domain constants of the 0x v3 exchange
const (
	EIP712DomainName    = "0x Protocol"
	EIP712DomainVersion = "3.0.0"
)

const (
	eip712DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

	orderType = "Order(address makerAddress,address takerAddress,address feeRecipientAddress,address senderAddress," +
		"uint256 makerAssetAmount,uint256 takerAssetAmount,uint256 makerFee,uint256 takerFee," +
		"uint256 expirationTimeSeconds,uint256 salt,bytes makerAssetData,bytes takerAssetData," +
		"bytes makerFeeAssetData,bytes takerFeeAssetData)"

	zeroExTransactionType = "ZeroExTransaction(uint256 salt,uint256 expirationTimeSeconds,uint256 gasPrice," +
		"address signerAddress,bytes data)"
)

// Pre-computed type hashes using keccak256
var (
	EIP712DomainTypeHash      = crypto.Keccak256Hash([]byte(eip712DomainType))
	OrderTypeHash             = crypto.Keccak256Hash([]byte(orderType))
	ZeroExTransactionTypeHash = crypto.Keccak256Hash([]byte(zeroExTransactionType))
)

var (
	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	addressType, _ = abi.NewType("address", "", nil)
)

// Domain binds a typed-data hash to one exchange deployment.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain creates a 0x v3 domain for the given chain and exchange.
func NewDomain(chainID *big.Int, verifyingContract common.Address) Domain {
	return Domain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// Separator computes the EIP712 domain separator hash
func (d Domain) Separator() common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	encoded, err := arguments.Pack(
		EIP712DomainTypeHash,
		crypto.Keccak256Hash([]byte(d.Name)),
		crypto.Keccak256Hash([]byte(d.Version)),
		bigOrZero(d.ChainID),
		d.VerifyingContract,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// OrderStructHash computes the EIP712 struct hash of a 0x order.
func OrderStructHash(o *Order) common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // makerAddress
		{Type: addressType}, // takerAddress
		{Type: addressType}, // feeRecipientAddress
		{Type: addressType}, // senderAddress
		{Type: uint256Type}, // makerAssetAmount
		{Type: uint256Type}, // takerAssetAmount
		{Type: uint256Type}, // makerFee
		{Type: uint256Type}, // takerFee
		{Type: uint256Type}, // expirationTimeSeconds
		{Type: uint256Type}, // salt
		{Type: bytes32Type}, // keccak256(makerAssetData)
		{Type: bytes32Type}, // keccak256(takerAssetData)
		{Type: bytes32Type}, // keccak256(makerFeeAssetData)
		{Type: bytes32Type}, // keccak256(takerFeeAssetData)
	}

	encoded, err := arguments.Pack(
		OrderTypeHash,
		o.MakerAddress,
		o.TakerAddress,
		o.FeeRecipientAddress,
		o.SenderAddress,
		bigOrZero(o.MakerAssetAmount),
		bigOrZero(o.TakerAssetAmount),
		bigOrZero(o.MakerFee),
		bigOrZero(o.TakerFee),
		bigOrZero(o.ExpirationTimeSeconds),
		bigOrZero(o.Salt),
		crypto.Keccak256Hash(o.MakerAssetData),
		crypto.Keccak256Hash(o.TakerAssetData),
		crypto.Keccak256Hash(o.MakerFeeAssetData),
		crypto.Keccak256Hash(o.TakerFeeAssetData),
	)
	if err != nil {
		panic("failed to encode order struct: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// TransactionStructHash computes the EIP712 struct hash of a ZeroExTransaction.
func TransactionStructHash(salt, expiration, gasPrice *big.Int, signer common.Address, data []byte) common.Hash {
	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: uint256Type}, // salt
		{Type: uint256Type}, // expirationTimeSeconds
		{Type: uint256Type}, // gasPrice
		{Type: addressType}, // signerAddress
		{Type: bytes32Type}, // keccak256(data)
	}

	encoded, err := arguments.Pack(
		ZeroExTransactionTypeHash,
		bigOrZero(salt),
		bigOrZero(expiration),
		bigOrZero(gasPrice),
		signer,
		crypto.Keccak256Hash(data),
	)
	if err != nil {
		panic("failed to encode transaction struct: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// TypedDataHash creates the final EIP712 hash to be signed:
// keccak256("\x19\x01" ++ domainSeparator ++ structHash)
func TypedDataHash(domain Domain, structHash common.Hash) common.Hash {
	domainSeparator := domain.Separator()

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)

	return crypto.Keccak256Hash(data)
}

// OrderHash returns the EIP712 hash the maker signs for an order.
func OrderHash(o *SignedOrder) (common.Hash, error) {
	if o.ChainID == nil {
		return common.Hash{}, ErrMissingChainID
	}
	return TypedDataHash(o.Domain(), OrderStructHash(&o.Order)), nil
}

// TransactionHash returns the EIP712 hash of a meta-transaction.
func (f *UnsignedFill) TransactionHash() common.Hash {
	return TypedDataHash(f.Domain, TransactionStructHash(f.Salt, f.ExpirationTimeSeconds, f.GasPrice, f.SignerAddress, f.Data))
}

// TypedData returns the eth_signTypedData_v4 representation of the
// meta-transaction, for wallets that sign structured data themselves.
func (f *UnsignedFill) TypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"ZeroExTransaction": {
				{Name: "salt", Type: "uint256"},
				{Name: "expirationTimeSeconds", Type: "uint256"},
				{Name: "gasPrice", Type: "uint256"},
				{Name: "signerAddress", Type: "address"},
				{Name: "data", Type: "bytes"},
			},
		},
		PrimaryType: "ZeroExTransaction",
		Domain: apitypes.TypedDataDomain{
			Name:              f.Domain.Name,
			Version:           f.Domain.Version,
			ChainId:           (*math.HexOrDecimal256)(bigOrZero(f.Domain.ChainID)),
			VerifyingContract: f.Domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":                  bigOrZero(f.Salt).String(),
			"expirationTimeSeconds": bigOrZero(f.ExpirationTimeSeconds).String(),
			"gasPrice":              bigOrZero(f.GasPrice).String(),
			"signerAddress":         f.SignerAddress.Hex(),
			"data":                  hexutil.Encode(f.Data),
		},
	}
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
