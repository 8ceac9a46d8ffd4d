package dealerrfq

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseQuote(t *testing.T) {
	want := fixtureQuote(t, newFixtureSigner(t))

	got, err := ParseQuote(want.Wire())
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, fixtureDAI, got.MakerAssetAddress)
	assert.Equal(t, fixtureWETH, got.TakerAssetAddress)
	assert.Equal(t, 0, got.MakerAssetSize.Cmp(want.MakerAssetSize))
	assert.True(t, got.ServerTime.Equal(want.ServerTime))
	assert.Equal(t, "1899999940.0712497", got.ServerTime.String())
	assert.Equal(t, chain.OrderStructHash(&want.Order.Order), chain.OrderStructHash(&got.Order.Order))
	assert.Equal(t, want.Order.Signature, got.Order.Signature)

	require.NotNil(t, got.Transaction)
	assert.Equal(t, want.Order.Domain(), got.Transaction.Domain)
	assert.Equal(t, fixtureTaker, got.Transaction.SignerAddress)
	assert.Equal(t, want.Transaction.Data, got.Transaction.Data)
}

func TestParseQuoteJSONAcceptsNumbers(t *testing.T) {
	wire := fixtureQuote(t, newFixtureSigner(t)).Wire()
	body, err := json.Marshal(wire)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	doc["expiration"] = json.Number("1900000000")
	doc["serverTime"] = json.Number("1559170656.0712497")
	body, err = json.Marshal(doc)
	require.NoError(t, err)

	quote, err := ParseQuoteJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "1900000000", quote.Expiration.String())
	assert.Equal(t, "1559170656.0712497", quote.ServerTime.String())
}

func TestParseQuoteWithoutTemplate(t *testing.T) {
	wire := fixtureQuote(t, newFixtureSigner(t)).Wire()
	wire.ZeroExTransactionInfo.Transaction = nil

	quote, err := ParseQuote(wire)
	require.NoError(t, err)
	assert.Nil(t, quote.Transaction)
}

func TestParseQuoteErrors(t *testing.T) {
	maker := newFixtureSigner(t)

	cases := []struct {
		name   string
		mutate func(w *WireQuote)
		field  string
		want   error
	}{
		{"missing id", func(w *WireQuote) { w.QuoteID = "" }, "quoteId", ErrMissingField},
		{"bad maker address", func(w *WireQuote) { w.MakerAssetAddress = "0x1234" }, "makerAssetAddress", ErrMalformedAddress},
		{"hex size", func(w *WireQuote) { w.MakerAssetSize = "0x10" }, "makerAssetSize", ErrMalformedNumber},
		{"negative size", func(w *WireQuote) { w.TakerAssetSize = "-1" }, "takerAssetSize", ErrMalformedNumber},
		{"fractional size", func(w *WireQuote) { w.TakerAssetSize = "1.5" }, "takerAssetSize", ErrMalformedNumber},
		{"zero size", func(w *WireQuote) { w.TakerAssetSize = "0" }, "takerAssetSize", ErrInvalidQuote},
		{"bad expiration", func(w *WireQuote) { w.Expiration = "soon" }, "expiration", ErrMalformedNumber},
		{"expiration equals server time", func(w *WireQuote) { w.Expiration = w.ServerTime }, "expiration", ErrInvalidQuote},
		{"expiration before server time", func(w *WireQuote) { w.Expiration = "1" }, "expiration", ErrInvalidQuote},
		{"missing order", func(w *WireQuote) { w.ZeroExTransactionInfo.Order = nil }, orderField, ErrMissingField},
		{"oversized salt", func(w *WireQuote) {
			w.ZeroExTransactionInfo.Order.Salt = WireNumber(new(big.Int).Add(math.MaxBig256, big.NewInt(1)).String())
		}, orderField + ".salt", ErrMalformedNumber},
		{"bad signature hex", func(w *WireQuote) { w.ZeroExTransactionInfo.Order.Signature = "0xzz" }, orderField + ".signature", ErrMalformedHex},
		{"asset mismatch", func(w *WireQuote) {
			w.MakerAssetAddress = fixtureWETH.Hex()
		}, orderField + ".makerAssetData", ErrInvalidQuote},
		{"non erc20 asset", func(w *WireQuote) {
			w.ZeroExTransactionInfo.Order.TakerAssetData = "0x02571792"
		}, orderField + ".takerAssetData", chain.ErrUnsupportedAssetProxy},
		{"bad template signer", func(w *WireQuote) {
			w.ZeroExTransactionInfo.Transaction.SignerAddress = "taker"
		}, transactionField + ".signerAddress", ErrMalformedAddress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire := fixtureQuote(t, maker).Wire()
			tc.mutate(wire)

			_, err := ParseQuote(wire)
			require.ErrorIs(t, err, tc.want)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tc.field, parseErr.Field)
		})
	}
}

func TestParseQuoteJSONMalformed(t *testing.T) {
	_, err := ParseQuoteJSON([]byte(`{"quoteId": `))
	require.ErrorIs(t, err, ErrInvalidQuote)

	_, err = ParseQuoteJSON([]byte(`{"quoteId": "q", "makerAssetSize": true}`))
	require.ErrorIs(t, err, ErrInvalidQuote)
}

func TestWireNumber(t *testing.T) {
	var v struct {
		A WireNumber `json:"a"`
		B WireNumber `json:"b"`
		C WireNumber `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "12", "b": 1559170656.0712497, "c": null}`), &v))
	assert.Equal(t, WireNumber("12"), v.A)
	assert.Equal(t, WireNumber("1559170656.0712497"), v.B)
	assert.Equal(t, WireNumber(""), v.C)

	out, err := json.Marshal(v.B)
	require.NoError(t, err)
	assert.Equal(t, `"1559170656.0712497"`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a": true}`), &v))
}

func TestQuoteWireRoundTrip(t *testing.T) {
	maker := newFixtureSigner(t)

	rapid.Check(t, func(t *rapid.T) {
		quote := fixtureQuote(t, maker)
		quote.ID = rapid.StringMatching(`[a-z0-9-]{1,36}`).Draw(t, "id").(string)
		quote.MakerAssetSize = new(big.Int).SetBytes(rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(t, "makerSize").([]byte))
		quote.MakerAssetSize.Add(quote.MakerAssetSize, big.NewInt(1))
		quote.MakerAssetSize.And(quote.MakerAssetSize, math.MaxBig256)
		if quote.MakerAssetSize.Sign() == 0 {
			quote.MakerAssetSize.SetInt64(1)
		}
		serverSeconds := rapid.Int64Range(0, 1<<40).Draw(t, "serverSeconds").(int64)
		serverNanos := rapid.Int64Range(0, 999_999_999).Draw(t, "serverNanos").(int64)
		ttl := rapid.Int64Range(1, 3600).Draw(t, "ttl").(int64)
		quote.ServerTime = decimal.New(serverSeconds*1_000_000_000+serverNanos, -9)
		quote.Expiration = decimal.NewFromInt(serverSeconds + ttl)
		quote.Order.Salt = new(big.Int).SetBytes(rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "salt").([]byte))

		first, err := ParseQuote(quote.Wire())
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		second, err := ParseQuote(first.Wire())
		if err != nil {
			t.Fatalf("reparse: %v", err)
		}

		if first.MakerAssetSize.Cmp(quote.MakerAssetSize) != 0 || second.MakerAssetSize.Cmp(quote.MakerAssetSize) != 0 {
			t.Fatalf("maker size changed: %s -> %s -> %s", quote.MakerAssetSize, first.MakerAssetSize, second.MakerAssetSize)
		}
		if !second.ServerTime.Equal(quote.ServerTime) || !second.Expiration.Equal(quote.Expiration) {
			t.Fatalf("timestamps changed: %s/%s -> %s/%s", quote.ServerTime, quote.Expiration, second.ServerTime, second.Expiration)
		}
		if chain.OrderStructHash(&second.Order.Order) != chain.OrderStructHash(&quote.Order.Order) {
			t.Fatalf("order changed")
		}
		if second.ID != quote.ID {
			t.Fatalf("id changed: %q -> %q", quote.ID, second.ID)
		}
	})
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Field: "makerAssetSize", Value: "0x10", Err: ErrMalformedNumber}
	assert.Equal(t, `failed to parse quote field "makerAssetSize" (0x10): malformed number`, err.Error())
	assert.True(t, errors.Is(err, ErrMalformedNumber))
}
