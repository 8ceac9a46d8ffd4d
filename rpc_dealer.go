package dealerrfq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCDealer talks to a dealer over JSON-RPC (dealer_getQuote,
// dealer_submitFill).
type RPCDealer struct {
	client *rpc.Client
	logger *zap.Logger
}

// DialRPCDealer connects to a JSON-RPC dealer over HTTP or websocket.
func DialRPCDealer(ctx context.Context, rawURL string, logger *zap.Logger) (*RPCDealer, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return NewRPCDealer(client, logger), nil
}

// NewRPCDealer wraps an existing RPC client.
func NewRPCDealer(client *rpc.Client, logger *zap.Logger) *RPCDealer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCDealer{client: client, logger: logger}
}

// RequestQuote calls dealer_getQuote(makerAsset, takerAsset, makerSize,
// takerSize, takerAddress). Absent sizes and taker are sent as null. The
// dealer answers with a one-element array holding the quote.
func (d *RPCDealer) RequestQuote(ctx context.Context, req QuoteRequest) (*WireQuote, error) {
	if (req.MakerSize == nil) == (req.TakerSize == nil) {
		return nil, &InvalidParamError{Message: "exactly one of maker size and taker size must be set"}
	}

	var makerSize, takerSize, taker *string
	if req.MakerSize != nil {
		s := req.MakerSize.String()
		makerSize = &s
	}
	if req.TakerSize != nil {
		s := req.TakerSize.String()
		takerSize = &s
	}
	if req.TakerAddress != nil {
		s := req.TakerAddress.Hex()
		taker = &s
	}

	var result []WireQuote
	err := d.client.CallContext(ctx, &result, "dealer_getQuote",
		req.MakerAsset.Hex(), req.TakerAsset.Hex(), makerSize, takerSize, taker)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &DealerError{Op: "quote", StatusCode: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		}
		return nil, &TransportError{Op: "quote", Err: err}
	}
	if len(result) == 0 {
		return nil, &TransportError{Op: "quote", Err: errors.New("dealer returned no quote")}
	}
	return &result[0], nil
}

// SubmitFill calls dealer_submitFill(quoteId, salt, signature, signerAddress,
// data, gasPrice, expiration).
func (d *RPCDealer) SubmitFill(ctx context.Context, req *FillRequest) (*FillResponse, error) {
	var gasPrice *WireNumber
	if req.GasPrice != "" {
		gasPrice = &req.GasPrice
	}

	// The expiration goes out as a JSON number; the result is [quoteId, txId].
	var result []json.RawMessage
	err := d.client.CallContext(ctx, &result, "dealer_submitFill",
		req.QuoteID, req.Salt, req.Signature, req.SignerAddress, req.Data, gasPrice, json.Number(req.Expiration))
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &SubmissionError{QuoteID: req.QuoteID, Reason: rpcErr.Error(), StatusCode: rpcErr.ErrorCode()}
		}
		return nil, &TransportError{Op: "fill", Err: err}
	}
	if len(result) < 2 {
		return nil, &TransportError{Op: "fill", Err: fmt.Errorf("accepted fill carries no txId (%d result elements)", len(result))}
	}
	var txID string
	if err := json.Unmarshal(result[1], &txID); err != nil || txID == "" {
		return nil, &TransportError{Op: "fill", Err: fmt.Errorf("malformed txId: %s", result[1])}
	}
	return &FillResponse{TxID: txID}, nil
}

// Close closes the underlying connection.
func (d *RPCDealer) Close() {
	d.client.Close()
}
