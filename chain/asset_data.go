package chain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC20AssetProxyID is the selector of ERC20Token(address), the first four
// bytes of ERC-20 asset data.
var ERC20AssetProxyID = crypto.Keccak256([]byte("ERC20Token(address)"))[:4]

// Asset data errors
var (
	ErrUnsupportedAssetProxy = errors.New("unsupported asset proxy")
	ErrMalformedAssetData    = errors.New("malformed asset data")
)

const erc20AssetDataLength = 4 + 32

// EncodeERC20AssetData encodes a token address as 0x ERC-20 asset data.
func EncodeERC20AssetData(token common.Address) []byte {
	data := make([]byte, 0, erc20AssetDataLength)
	data = append(data, ERC20AssetProxyID...)
	data = append(data, common.LeftPadBytes(token.Bytes(), 32)...)
	return data
}

// DecodeERC20AssetData extracts the token address from 0x ERC-20 asset data.
func DecodeERC20AssetData(data []byte) (common.Address, error) {
	if len(data) < 4 {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedAssetData, len(data))
	}
	if !bytes.Equal(data[:4], ERC20AssetProxyID) {
		return common.Address{}, fmt.Errorf("%w: proxy id 0x%x", ErrUnsupportedAssetProxy, data[:4])
	}
	if len(data) != erc20AssetDataLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedAssetData, len(data))
	}

	word := data[4:]
	// address words are left-padded with zeroes
	for _, b := range word[:12] {
		if b != 0 {
			return common.Address{}, fmt.Errorf("%w: dirty address padding", ErrMalformedAssetData)
		}
	}
	return common.BytesToAddress(word[12:]), nil
}
