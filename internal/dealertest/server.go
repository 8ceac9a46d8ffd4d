package dealertest

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/shopspring/decimal"
)

// Handler serves the dealer HTTP API under /api/v{CompatibleAPIVersion}.
func (d *Dealer) Handler() http.Handler {
	prefix := "/api/v" + dealerrfq.CompatibleAPIVersion
	mux := http.NewServeMux()
	mux.HandleFunc(prefix+"/quote", d.handleQuote)
	mux.HandleFunc(prefix+"/fill", d.handleFill)
	mux.HandleFunc(prefix+"/markets", d.handleMarkets)
	mux.HandleFunc(prefix+"/assets", d.handleAssets)
	mux.HandleFunc(prefix+"/authorized", d.handleAuthorized)
	return mux
}

func (d *Dealer) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	q := r.URL.Query()

	var taker *common.Address
	if t := q.Get("takerAddress"); t != "" {
		addr := common.HexToAddress(t)
		taker = &addr
	}

	var (
		quote *dealerrfq.WireQuote
		err   error
	)
	if symbol := q.Get("symbol"); symbol != "" {
		size, perr := decimal.NewFromString(q.Get("size"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad size"})
			return
		}
		quote, err = d.PairQuote(symbol, dealerrfq.QuoteSide(q.Get("side")), size, taker)
	} else {
		quote, err = d.Quote(
			common.HexToAddress(q.Get("makerAsset")),
			common.HexToAddress(q.Get("takerAsset")),
			optionalInt(q.Get("makerSize")),
			optionalInt(q.Get("takerSize")),
			taker,
		)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (d *Dealer) handleFill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req dealerrfq.FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ReasonInvalidPayload})
		return
	}

	txID, err := d.Fill(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dealerrfq.FillResponse{TxID: txID})
}

func (d *Dealer) handleMarkets(w http.ResponseWriter, _ *http.Request) {
	pairs := d.cfg.Pairs
	if pairs == nil {
		pairs = []string{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (d *Dealer) handleAssets(w http.ResponseWriter, _ *http.Request) {
	assets := make(map[string]string, len(d.cfg.Tokens))
	for ticker, addr := range d.cfg.Tokens {
		assets[ticker] = addr.Hex()
	}
	writeJSON(w, http.StatusOK, assets)
}

func (d *Dealer) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("address")
	if !common.IsHexAddress(addr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad address"})
		return
	}
	writeJSON(w, http.StatusOK, d.Authorization(common.HexToAddress(addr)))
}

func optionalInt(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}

// RPCService exposes the dealer as the "dealer" JSON-RPC namespace. Register
// it with rpc.Server.RegisterName("dealer", d.RPCService()).
type RPCService struct {
	d *Dealer
}

// RPCService returns the JSON-RPC view of the dealer.
func (d *Dealer) RPCService() *RPCService {
	return &RPCService{d: d}
}

// GetQuote serves dealer_getQuote. The result is a one-element array.
func (s *RPCService) GetQuote(makerAsset, takerAsset string, makerSize, takerSize, takerAddress *string) ([]*dealerrfq.WireQuote, error) {
	var maker, taker *big.Int
	if makerSize != nil {
		maker = optionalInt(*makerSize)
	}
	if takerSize != nil {
		taker = optionalInt(*takerSize)
	}
	var takerAddr *common.Address
	if takerAddress != nil {
		addr := common.HexToAddress(*takerAddress)
		takerAddr = &addr
	}
	quote, err := s.d.Quote(common.HexToAddress(makerAsset), common.HexToAddress(takerAsset), maker, taker, takerAddr)
	if err != nil {
		return nil, err
	}
	return []*dealerrfq.WireQuote{quote}, nil
}

// SubmitFill serves dealer_submitFill. The expiration must be a JSON number;
// the result is [quoteId, txId].
func (s *RPCService) SubmitFill(quoteID string, salt dealerrfq.WireNumber, signature, signerAddress, data string, gasPrice *dealerrfq.WireNumber, expiration uint64) ([]string, error) {
	req := &dealerrfq.FillRequest{
		QuoteID:       quoteID,
		Salt:          salt,
		SignerAddress: signerAddress,
		Data:          data,
		Signature:     signature,
		Expiration:    dealerrfq.WireNumber(strconv.FormatUint(expiration, 10)),
	}
	if gasPrice != nil {
		req.GasPrice = *gasPrice
	}
	txID, err := s.d.Fill(req)
	if err != nil {
		return nil, err
	}
	return []string{quoteID, txID}, nil
}
