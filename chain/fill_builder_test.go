package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFillBuilderBuild(t *testing.T) {
	order := testOrder()
	order.Signature = []byte{0x1b, 0x02}
	builder := NewFillBuilder(testExchange, big.NewInt(1337))

	fill, err := builder.Build(order, order.TakerAssetAmount, testTaker)
	require.NoError(t, err)

	assert.Equal(t, testTaker, fill.SignerAddress)
	assert.Equal(t, order.ExpirationTimeSeconds, fill.ExpirationTimeSeconds)
	assert.Equal(t, 0, fill.GasPrice.Sign())
	assert.Equal(t, order.TakerAssetAmount, fill.FillAmount)
	assert.Equal(t, NewDomain(big.NewInt(1337), testExchange), fill.Domain)
	assert.Equal(t, fill.TransactionHash(), fill.Hash)
	assert.Equal(t, exchangeABI.Methods["fillOrder"].ID, fill.Data[:4])

	decoded, amount, sig, err := DecodeFillOrderData(fill.Data)
	require.NoError(t, err)
	assert.Equal(t, OrderStructHash(&order.Order), OrderStructHash(decoded))
	assert.Equal(t, order.TakerAssetAmount, amount)
	assert.Equal(t, order.Signature, sig)
}

func TestFillBuilderOptions(t *testing.T) {
	order := testOrder()
	builder := NewFillBuilder(testExchange, big.NewInt(1337))

	fill, err := builder.Build(order, big.NewInt(1), testTaker,
		WithExpiration(big.NewInt(1_800_000_000)),
		WithGasPrice(big.NewInt(5_000_000_000)),
	)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_800_000_000), fill.ExpirationTimeSeconds)
	assert.Equal(t, big.NewInt(5_000_000_000), fill.GasPrice)
	assert.Equal(t, big.NewInt(1), fill.FillAmount)
}

func TestFillBuilderFreshSalt(t *testing.T) {
	order := testOrder()
	builder := NewFillBuilder(testExchange, big.NewInt(1337))

	first, err := builder.Build(order, order.TakerAssetAmount, testTaker)
	require.NoError(t, err)
	second, err := builder.Build(order, order.TakerAssetAmount, testTaker)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestFillBuilderAmountBounds(t *testing.T) {
	order := testOrder()
	builder := NewFillBuilder(testExchange, big.NewInt(1337))
	max := order.TakerAssetAmount

	_, err := builder.Build(order, max, testTaker)
	require.NoError(t, err)

	for name, amount := range map[string]*big.Int{
		"nil":      nil,
		"zero":     big.NewInt(0),
		"negative": big.NewInt(-1),
		"over max": new(big.Int).Add(max, big.NewInt(1)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := builder.Build(order, amount, testTaker)
			require.ErrorIs(t, err, ErrInvalidFillAmount)

			var amountErr *FillAmountError
			require.ErrorAs(t, err, &amountErr)
			assert.Equal(t, max, amountErr.Max)
		})
	}
}

func TestFillOrderDataRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		order := testOrder()
		order.Salt = new(big.Int).SetBytes(rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(t, "salt").([]byte))
		order.Signature = rapid.SliceOfN(rapid.Byte(), 0, 100).Draw(t, "signature").([]byte)
		amount := big.NewInt(rapid.Int64Range(1, order.TakerAssetAmount.Int64()).Draw(t, "amount").(int64))

		data, err := EncodeFillOrderData(order, amount)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, gotAmount, sig, err := DecodeFillOrderData(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if OrderStructHash(decoded) != OrderStructHash(&order.Order) {
			t.Fatalf("decoded order differs")
		}
		if gotAmount.Cmp(amount) != 0 {
			t.Fatalf("amount %s, want %s", gotAmount, amount)
		}
		if string(sig) != string(order.Signature) {
			t.Fatalf("signature %x, want %x", sig, order.Signature)
		}
	})
}

func TestDecodeFillOrderDataRejectsOtherCalls(t *testing.T) {
	_, _, _, err := DecodeFillOrderData([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrNotFillOrderCall)

	approve, err := erc20ABI.Pack("approve", testExchange, big.NewInt(1))
	require.NoError(t, err)
	_, _, _, err = DecodeFillOrderData(approve)
	require.ErrorIs(t, err, ErrNotFillOrderCall)
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	assert.LessOrEqual(t, a.BitLen(), 256)
	assert.NotEqual(t, a, b)
}
