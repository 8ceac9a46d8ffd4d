package dealerrfq

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDealer struct {
	mock.Mock
}

func (m *mockDealer) RequestQuote(ctx context.Context, req QuoteRequest) (*WireQuote, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*WireQuote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDealer) SubmitFill(ctx context.Context, req *FillRequest) (*FillResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*FillResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// denyingSigner controls its address but refuses every signature.
type denyingSigner struct {
	address common.Address
}

func (s denyingSigner) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{s.address}, nil
}

func (s denyingSigner) Sign(context.Context, chain.SignRequest) ([]byte, error) {
	return nil, chain.ErrSigningDenied
}

func buildFixtureFill(t *testing.T, signer common.Address) *chain.UnsignedFill {
	t.Helper()
	quote := fixtureQuote(t, newFixtureSigner(t))
	fill, err := chain.NewFillBuilder(fixtureExchange, quote.Order.ChainID).Build(quote.Order, quote.Order.TakerAssetAmount, signer)
	require.NoError(t, err)
	return fill
}

const testTxID = "0x4cdd5c4e5fd2c0c3cb3dd06e54c4a4c8fbd2e50c2c4e2b8c2d6fd1d2a1c6b5e1"

func TestSubmitterSignAndSubmit(t *testing.T) {
	taker := newFixtureSigner(t)
	unsigned := buildFixtureFill(t, taker.Address())

	dealer := &mockDealer{}
	dealer.On("SubmitFill", mock.Anything, mock.MatchedBy(func(req *FillRequest) bool {
		return req.QuoteID == "quote-1" && req.SignerAddress == taker.Address().Hex()
	})).Return(&FillResponse{TxID: testTxID}, nil).Once()

	txID, err := NewSubmitter(taker, dealer, nil, nil).SignAndSubmit(context.Background(), unsigned, "quote-1")
	require.NoError(t, err)
	assert.Equal(t, testTxID, txID)
	dealer.AssertExpectations(t)

	req := dealer.Calls[0].Arguments.Get(1).(*FillRequest)
	sig, err := hexutil.Decode(req.Signature)
	require.NoError(t, err)
	require.NoError(t, chain.VerifySignature(unsigned.Hash, sig, taker.Address()))
	assert.Equal(t, WireNumber(unsigned.Salt.String()), req.Salt)
	assert.Equal(t, WireNumber(unsigned.ExpirationTimeSeconds.String()), req.Expiration)
	assert.Equal(t, hexutil.Encode(unsigned.Data), req.Data)
	assert.Equal(t, unsigned.Hash.Hex(), req.Hash)
	assert.Empty(t, req.GasPrice)
}

func TestSubmitterSignerUnavailable(t *testing.T) {
	taker := newFixtureSigner(t)
	unsigned := buildFixtureFill(t, fixtureTaker)
	dealer := &mockDealer{}

	_, err := NewSubmitter(taker, dealer, nil, nil).SignAndSubmit(context.Background(), unsigned, "quote-1")
	require.ErrorIs(t, err, ErrSignerUnavailable)

	var signingErr *chain.SigningError
	require.ErrorAs(t, err, &signingErr)
	assert.Equal(t, fixtureTaker, signingErr.Address)
	dealer.AssertNotCalled(t, "SubmitFill", mock.Anything, mock.Anything)
}

func TestSubmitterSigningDenied(t *testing.T) {
	unsigned := buildFixtureFill(t, fixtureTaker)
	dealer := &mockDealer{}

	_, err := NewSubmitter(denyingSigner{address: fixtureTaker}, dealer, nil, nil).SignAndSubmit(context.Background(), unsigned, "quote-1")
	require.ErrorIs(t, err, ErrSigningDenied)

	var signingErr *chain.SigningError
	require.ErrorAs(t, err, &signingErr)
	dealer.AssertNotCalled(t, "SubmitFill", mock.Anything, mock.Anything)
}

// unreachableSigner cannot reach its wallet.
type unreachableSigner struct{}

func (unreachableSigner) Accounts(context.Context) ([]common.Address, error) {
	return nil, errWalletDown
}

func (unreachableSigner) Sign(context.Context, chain.SignRequest) ([]byte, error) {
	return nil, errWalletDown
}

var errWalletDown = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")

func TestSubmitterAccountsErrorSurfaced(t *testing.T) {
	unsigned := buildFixtureFill(t, fixtureTaker)
	dealer := &mockDealer{}

	_, err := NewSubmitter(unreachableSigner{}, dealer, nil, nil).SignAndSubmit(context.Background(), unsigned, "quote-1")
	require.ErrorIs(t, err, errWalletDown)
	assert.False(t, errors.Is(err, ErrSignerUnavailable))
	assert.False(t, errors.Is(err, ErrSigningDenied))
	dealer.AssertNotCalled(t, "SubmitFill", mock.Anything, mock.Anything)
}

func TestSubmitterRejectedNotRetried(t *testing.T) {
	taker := newFixtureSigner(t)
	unsigned := buildFixtureFill(t, taker.Address())

	rejection := &SubmissionError{QuoteID: "quote-1", Reason: "order already filled", StatusCode: 400}
	dealer := &mockDealer{}
	dealer.On("SubmitFill", mock.Anything, mock.Anything).Return(nil, rejection)

	_, err := NewSubmitter(taker, dealer, nil, nil).SignAndSubmit(context.Background(), unsigned, "quote-1")
	require.ErrorIs(t, err, ErrSubmissionRejected)

	var got *SubmissionError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "order already filled", got.Reason)
	dealer.AssertNumberOfCalls(t, "SubmitFill", 1)
}

func TestSubmitterTransportError(t *testing.T) {
	taker := newFixtureSigner(t)
	unsigned := buildFixtureFill(t, taker.Address())

	dealer := &mockDealer{}
	dealer.On("SubmitFill", mock.Anything, mock.Anything).Return(nil, &TransportError{Op: "fill", Err: errors.New("connection reset")})

	_, err := NewSubmitter(taker, dealer, nil, nil).SignAndSubmit(context.Background(), unsigned, "quote-1")
	require.ErrorIs(t, err, ErrTransport)
	assert.False(t, errors.Is(err, ErrSubmissionRejected))
	dealer.AssertNumberOfCalls(t, "SubmitFill", 1)
}

func TestNewFillRequestGasPrice(t *testing.T) {
	signed := &chain.SignedFill{
		UnsignedFill: chain.UnsignedFill{
			Salt:                  big.NewInt(7),
			ExpirationTimeSeconds: big.NewInt(fixtureExpiration),
			GasPrice:              big.NewInt(5_000_000_000),
			SignerAddress:         fixtureTaker,
			Data:                  []byte{0x01},
		},
		Signature: []byte{0x1b},
	}

	req := NewFillRequest(signed, "q")
	assert.Equal(t, WireNumber("5000000000"), req.GasPrice)
	assert.Equal(t, "0x01", req.Data)
	assert.Equal(t, "0x1b", req.Signature)

	signed.GasPrice = new(big.Int)
	assert.Empty(t, NewFillRequest(signed, "q").GasPrice)
}
