package dealerrfq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries a fresh uuid on every dealer request.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 200

// maxResponseBody caps how much of a dealer response is read.
const maxResponseBody = 1 << 20

// APIClient handles HTTP requests to a dealer server
type APIClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAPIClient creates a new API client for the dealer at host.
func NewAPIClient(host string, timeout time.Duration, logger *zap.Logger) *APIClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		baseURL: strings.TrimRight(host, "/") + "/api/v" + CompatibleAPIVersion,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the versioned API root.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request
func (c *APIClient) doRequest(ctx context.Context, op, method, endpoint string, query url.Values, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug("dealer request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}

	return resp, nil
}

// decodeJSONResponse reads the response body, checks HTTP status, and decodes JSON.
// A non-200 status with an {"error": ...} body becomes a *DealerError; any
// other unexpected payload is a *TransportError.
func (c *APIClient) decodeJSONResponse(op string, resp *http.Response, result interface{}) error {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(bodyBytes) > maxResponseBody {
		return &TransportError{Op: op, Err: fmt.Errorf("response body exceeds %d bytes", maxResponseBody)}
	}

	if resp.StatusCode != http.StatusOK {
		var refusal errorResponse
		if err := json.Unmarshal(bodyBytes, &refusal); err == nil && refusal.Error != "" {
			return &DealerError{Op: op, StatusCode: resp.StatusCode, Message: refusal.Error}
		}
		return &TransportError{Op: op, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(bodyBytes, resp.Status))}
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		return &TransportError{
			Op:  op,
			Err: fmt.Errorf("failed to decode JSON response: %w (body: %s)", err, truncateBody(bodyBytes, "")),
		}
	}

	return nil
}

func truncateBody(body []byte, fallback string) string {
	bodyStr := string(body)
	if bodyStr == "" {
		return fallback
	}
	if len(bodyStr) > maxErrorBody {
		bodyStr = bodyStr[:maxErrorBody] + "..."
	}
	return bodyStr
}

func (c *APIClient) get(ctx context.Context, op, endpoint string, query url.Values, result interface{}) error {
	resp, err := c.doRequest(ctx, op, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeJSONResponse(op, resp, result)
}

// RequestQuote fetches a quote for a maker/taker asset swap
func (c *APIClient) RequestQuote(ctx context.Context, req QuoteRequest) (*WireQuote, error) {
	if (req.MakerSize == nil) == (req.TakerSize == nil) {
		return nil, &InvalidParamError{Message: "exactly one of maker size and taker size must be set"}
	}

	query := url.Values{}
	query.Set("makerAsset", req.MakerAsset.Hex())
	query.Set("takerAsset", req.TakerAsset.Hex())
	if req.MakerSize != nil {
		query.Set("makerSize", req.MakerSize.String())
	} else {
		query.Set("takerSize", req.TakerSize.String())
	}
	if req.TakerAddress != nil {
		query.Set("takerAddress", req.TakerAddress.Hex())
	}

	var result WireQuote
	if err := c.get(ctx, "quote", "/quote", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RequestPairQuote fetches a bid or ask for a BASE/QUOTE market
func (c *APIClient) RequestPairQuote(ctx context.Context, req PairQuoteRequest) (*WireQuote, error) {
	query := url.Values{}
	query.Set("symbol", req.Symbol)
	query.Set("side", string(req.Side))
	query.Set("size", req.Size.String())
	if req.TakerAddress != nil {
		query.Set("takerAddress", req.TakerAddress.Hex())
	}

	var result WireQuote
	if err := c.get(ctx, "quote", "/quote", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitFill posts a signed fill. A structured refusal is returned as a
// *SubmissionError and is never retried.
func (c *APIClient) SubmitFill(ctx context.Context, req *FillRequest) (*FillResponse, error) {
	const op = "fill"

	resp, err := c.doRequest(ctx, op, http.MethodPost, "/fill", nil, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result FillResponse
	if err := c.decodeJSONResponse(op, resp, &result); err != nil {
		var dealerErr *DealerError
		if errors.As(err, &dealerErr) {
			return nil, &SubmissionError{
				QuoteID:    req.QuoteID,
				Reason:     dealerErr.Message,
				StatusCode: dealerErr.StatusCode,
			}
		}
		return nil, err
	}

	if result.TxID == "" {
		return nil, &TransportError{Op: op, Err: errors.New("accepted fill carries no txId")}
	}
	return &result, nil
}

// Markets fetches the supported "BASE/QUOTE" pairs in dealer order
func (c *APIClient) Markets(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.get(ctx, "markets", "/markets", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Assets fetches the ticker to token address mapping
func (c *APIClient) Assets(ctx context.Context) (map[string]common.Address, error) {
	var raw map[string]string
	if err := c.get(ctx, "assets", "/assets", nil, &raw); err != nil {
		return nil, err
	}

	assets := make(map[string]common.Address, len(raw))
	for ticker, addr := range raw {
		if !common.IsHexAddress(addr) {
			return nil, &TransportError{Op: "assets", Err: fmt.Errorf("%w for %s: %q", ErrMalformedAddress, ticker, addr)}
		}
		assets[ticker] = common.HexToAddress(addr)
	}
	return assets, nil
}

// Authorization reports whether the dealer will trade with taker
func (c *APIClient) Authorization(ctx context.Context, taker common.Address) (*AuthorizationInfo, error) {
	query := url.Values{}
	query.Set("address", taker.Hex())

	var result AuthorizationInfo
	if err := c.get(ctx, "authorized", "/authorized", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
