package dealerrfq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"go.uber.org/zap"
)

// Submitter moves a built fill through signing and dealer submission. It
// never retries: once a request is sent the quote is spent.
type Submitter struct {
	signer  chain.Signer
	dealer  Dealer
	logger  *zap.Logger
	metrics *Metrics
}

// NewSubmitter creates a Submitter.
func NewSubmitter(signer chain.Signer, dealer Dealer, logger *zap.Logger, metrics *Metrics) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Submitter{
		signer:  signer,
		dealer:  dealer,
		logger:  logger,
		metrics: metrics,
	}
}

// SignAndSubmit signs unsigned and submits it for quoteID, returning the
// dealer's transaction id. The id only proves the dealer relayed the fill.
func (s *Submitter) SignAndSubmit(ctx context.Context, unsigned *chain.UnsignedFill, quoteID string) (string, error) {
	signed, err := s.Sign(ctx, unsigned)
	if err != nil {
		return "", err
	}
	return s.Submit(ctx, signed, quoteID)
}

// Sign obtains the signer's signature over the fill hash (Built -> Signed).
func (s *Submitter) Sign(ctx context.Context, unsigned *chain.UnsignedFill) (*chain.SignedFill, error) {
	log := s.logger.With(zap.String("signer", unsigned.SignerAddress.Hex()))

	accounts, err := s.signer.Accounts(ctx)
	if err != nil {
		s.metrics.SigningFailures.Add(1)
		return nil, fmt.Errorf("failed to list signer accounts: %w", err)
	}
	controlled := false
	for _, a := range accounts {
		if a == unsigned.SignerAddress {
			controlled = true
			break
		}
	}
	if !controlled {
		s.metrics.SigningFailures.Add(1)
		return nil, &chain.SigningError{Address: unsigned.SignerAddress, Err: chain.ErrSignerUnavailable}
	}

	typed := unsigned.TypedData()
	sig, err := s.signer.Sign(ctx, chain.SignRequest{
		Address:   unsigned.SignerAddress,
		Hash:      unsigned.Hash,
		TypedData: &typed,
	})
	if err != nil {
		s.metrics.SigningFailures.Add(1)
		var signingErr *chain.SigningError
		if !errors.As(err, &signingErr) {
			err = &chain.SigningError{Address: unsigned.SignerAddress, Err: err}
		}
		log.Warn("fill signing failed", zap.Error(err))
		return nil, err
	}

	log.Debug("fill state changed",
		zap.Stringer("state", FillStateSigned),
		zap.String("hash", unsigned.Hash.Hex()),
	)
	return &chain.SignedFill{UnsignedFill: *unsigned, Signature: sig}, nil
}

// Submit sends a signed fill to the dealer (Signed -> Submitted -> Accepted
// or Rejected).
func (s *Submitter) Submit(ctx context.Context, signed *chain.SignedFill, quoteID string) (string, error) {
	log := s.logger.With(
		zap.String("quote_id", quoteID),
		zap.String("taker", signed.SignerAddress.Hex()),
	)

	req := NewFillRequest(signed, quoteID)
	log.Info("fill state changed", zap.Stringer("state", FillStateSubmitted))

	start := time.Now()
	resp, err := s.dealer.SubmitFill(ctx, req)
	s.metrics.SubmitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var rejection *SubmissionError
		if errors.As(err, &rejection) {
			s.metrics.Fills.With("outcome", FillStateRejected.String()).Add(1)
			log.Warn("fill state changed",
				zap.Stringer("state", FillStateRejected),
				zap.String("reason", rejection.Reason),
			)
			return "", err
		}
		s.metrics.Fills.With("outcome", "error").Add(1)
		log.Error("fill submission failed", zap.Error(err))
		return "", err
	}

	s.metrics.Fills.With("outcome", FillStateAccepted.String()).Add(1)
	log.Info("fill state changed",
		zap.Stringer("state", FillStateAccepted),
		zap.String("tx_id", resp.TxID),
	)
	return resp.TxID, nil
}

// NewFillRequest converts a signed fill into the POST /fill body.
func NewFillRequest(signed *chain.SignedFill, quoteID string) *FillRequest {
	req := &FillRequest{
		QuoteID:       quoteID,
		Salt:          wireUint(signed.Salt),
		SignerAddress: signed.SignerAddress.Hex(),
		Data:          hexutil.Encode(signed.Data),
		Signature:     hexutil.Encode(signed.Signature),
		Expiration:    wireUint(signed.ExpirationTimeSeconds),
		Hash:          signed.Hash.Hex(),
	}
	if signed.GasPrice != nil && signed.GasPrice.Sign() > 0 {
		req.GasPrice = wireUint(signed.GasPrice)
	}
	return req
}
