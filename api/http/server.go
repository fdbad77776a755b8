package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/etherwheel/custody-ledger/api/http/cache"
	apitypes "github.com/etherwheel/custody-ledger/api/http/types"
	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/oracle"
	"github.com/etherwheel/custody-ledger/pool"
	"github.com/etherwheel/custody-ledger/registry"
	"github.com/etherwheel/custody-ledger/wallet"
)

// Server bundles the ledger core with its HTTP surface.
type Server struct {
	router      *chi.Mux
	factory     *registry.Factory
	pool        *pool.Pool
	adapter     *oracle.Adapter
	mockFeed    *oracle.MockFeed
	cache       *cache.Cache
	broadcaster *Broadcaster
	metrics     *serverMetrics
	logger      *log.Logger
	pair        ledger.Pair
	started     time.Time
	devMode     bool
}

// NewServer constructs a Server with registered routes. mockFeed may be nil
// when prices come from an external feed; the admin price endpoint then
// rejects updates. dev enables the admin routes.
func NewServer(factory *registry.Factory, swapPool *pool.Pool, adapter *oracle.Adapter,
	mockFeed *oracle.MockFeed, cacheClient *cache.Cache, broadcaster *Broadcaster,
	metrics *serverMetrics, logger *log.Logger, dev bool) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "api-http ", log.LstdFlags|log.Lshortfile)
	}
	if metrics == nil {
		metrics = newServerMetrics(nil, nil)
	}

	s := &Server{
		router:      chi.NewRouter(),
		factory:     factory,
		pool:        swapPool,
		adapter:     adapter,
		mockFeed:    mockFeed,
		cache:       cacheClient,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		pair:        swapPool.Pair(),
		started:     time.Now(),
		devMode:     dev,
	}

	s.router.Get("/healthz", s.healthzHandler)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/price", s.priceHandler)
		r.Get("/pool", s.poolHandler)
		r.Get("/quote", s.quoteHandler)
		r.Post("/accounts", s.createAccountHandler)
		r.Get("/accounts", s.listAccountsHandler)
		r.Get("/accounts/{id}", s.accountHandler)
		r.Post("/accounts/{id}/deposit", s.depositHandler)
		r.Post("/accounts/{id}/send", s.sendHandler)
		r.Post("/accounts/{id}/swap", s.swapHandler)
	})
	if broadcaster != nil {
		s.router.Get("/ws", broadcaster.Handler())
	}
	if dev {
		s.router.Post("/admin/price", s.setPriceHandler)
		s.router.Post("/admin/fund", s.fundHandler)
	}

	return s
}

// Handler exposes the underlying router for integration tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	resp := apitypes.HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Millisecond).String(),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) priceHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, err := s.cache.GetPrice(ctx); err == nil {
		cached.Cached = true
		writeJSON(w, http.StatusOK, cached)
		return
	} else if !errors.Is(err, cache.ErrDisabled) && !errors.Is(err, apitypes.ErrNotFound) {
		s.logger.Printf("cache get failed: %v", err)
	}

	price, decimals, err := s.adapter.NormalizedPrice(ctx)
	if err != nil {
		s.metrics.oracleErrors.Inc()
		s.writeError(w, err)
		return
	}

	resp := apitypes.PriceResponse{
		Price:    price.String(),
		Decimals: decimals,
	}
	if sample, ok := s.adapter.LastSample(); ok {
		resp.UpdatedAt = sample.UpdatedAt
	}

	if f, _ := new(big.Float).SetInt(price).Float64(); f > 0 {
		s.metrics.oraclePrice.Set(f / 1e8)
	}

	writeJSON(w, http.StatusOK, resp)

	if s.cache != nil {
		go func() {
			if err := s.cache.SetPrice(context.Background(), resp); err != nil && !errors.Is(err, cache.ErrDisabled) {
				s.logger.Printf("cache set failed: %v", err)
			}
		}()
	}
}

func (s *Server) poolHandler(w http.ResponseWriter, r *http.Request) {
	native, token := s.pool.Reserves()
	resp := apitypes.PoolResponse{
		NativeSymbol:   s.pair.Native.Symbol,
		NativeDecimals: s.pair.Native.Decimals,
		TokenSymbol:    s.pair.Token.Symbol,
		TokenDecimals:  s.pair.Token.Decimals,
		NativeReserve:  ledger.FormatAmount(native, s.pair.Native.Decimals),
		TokenReserve:   ledger.FormatAmount(token, s.pair.Token.Decimals),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	side := r.URL.Query().Get("side")
	if err := apitypes.ValidateSide(side); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: err.Error()})
		return
	}

	inDecimals, outDecimals := s.pair.Native.Decimals, s.pair.Token.Decimals
	if side == apitypes.SideSell {
		inDecimals, outDecimals = outDecimals, inDecimals
	}

	amount, err := ledger.ParseAmount(r.URL.Query().Get("amount"), inDecimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid amount"})
		return
	}

	var out *big.Int
	if side == apitypes.SideBuy {
		out, err = s.pool.QuoteBuy(r.Context(), amount)
	} else {
		out, err = s.pool.QuoteSell(r.Context(), amount)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apitypes.QuoteResponse{
		Side:      side,
		AmountIn:  ledger.FormatAmount(amount, inDecimals),
		AmountOut: ledger.FormatAmount(out, outDecimals),
	})
}

func (s *Server) createAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request body"})
		return
	}

	acct, err := s.factory.CreateAccount(ledger.Address(req.Owner))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: err.Error()})
		return
	}
	s.metrics.accountsCreated.Inc()

	writeJSON(w, http.StatusCreated, s.accountResponse(acct))
}

func (s *Server) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "missing owner"})
		return
	}

	ids := s.factory.ListAccounts(ledger.Address(owner))
	accounts := make([]string, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, id.String())
	}

	writeJSON(w, http.StatusOK, apitypes.AccountListResponse{Owner: owner, Accounts: accounts})
}

func (s *Server) accountHandler(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.lookupAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.accountResponse(acct))
}

func (s *Server) depositHandler(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.lookupAccount(w, r)
	if !ok {
		return
	}

	var req apitypes.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request body"})
		return
	}

	amount, err := ledger.ParseAmount(req.Amount, s.pair.Native.Decimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid amount"})
		return
	}

	if err := acct.Deposit(amount); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.accountResponse(acct))
}

func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.lookupAccount(w, r)
	if !ok {
		return
	}

	var req apitypes.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.To == "" {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "missing recipient"})
		return
	}

	amount, err := ledger.ParseAmount(req.Amount, s.pair.Native.Decimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid amount"})
		return
	}

	// A recipient naming a known account ID settles in-ledger; anything
	// else is an external address and only debits this side.
	var to wallet.Recipient
	if recipientID, parseErr := uuid.Parse(req.To); parseErr == nil {
		if recipient, lookupErr := s.factory.Account(recipientID); lookupErr == nil {
			to = recipient
		}
	}

	if err := acct.SendNative(ledger.Address(req.Caller), to, ledger.Address(req.To), amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.transfers.Inc()

	writeJSON(w, http.StatusOK, s.accountResponse(acct))
}

func (s *Server) swapHandler(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.lookupAccount(w, r)
	if !ok {
		return
	}

	var req apitypes.SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := apitypes.ValidateSide(req.Side); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: err.Error()})
		return
	}

	inDecimals, outDecimals := s.pair.Native.Decimals, s.pair.Token.Decimals
	if req.Side == apitypes.SideSell {
		inDecimals, outDecimals = outDecimals, inDecimals
	}

	amountIn, err := ledger.ParseAmount(req.AmountIn, inDecimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid amount_in"})
		return
	}

	var minOut *big.Int
	if req.MinOut != "" {
		minOut, err = ledger.ParseAmount(req.MinOut, outDecimals)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid min_out"})
			return
		}
	}

	caller := ledger.Address(req.Caller)
	var out *big.Int
	if req.Side == apitypes.SideBuy {
		out, err = acct.SwapNativeToToken(r.Context(), caller, amountIn, minOut)
	} else {
		out, err = acct.SwapTokenToNative(r.Context(), caller, amountIn, minOut)
	}
	if err != nil {
		s.metrics.swapErrors.WithLabelValues(reasonForError(err)).Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.swaps.WithLabelValues(req.Side).Inc()

	writeJSON(w, http.StatusOK, apitypes.SwapResponse{
		Side:      req.Side,
		AmountIn:  ledger.FormatAmount(amountIn, inDecimals),
		AmountOut: ledger.FormatAmount(out, outDecimals),
	})
}

func (s *Server) setPriceHandler(w http.ResponseWriter, r *http.Request) {
	if s.mockFeed == nil {
		writeJSON(w, http.StatusConflict, apitypes.ErrorResponse{Error: "price feed is external"})
		return
	}

	var req apitypes.SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request body"})
		return
	}

	price, err := ledger.ParseAmount(req.Price, ledger.ReferenceScale)
	if err != nil || !ledger.IsPositive(price) {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid price"})
		return
	}

	s.mockFeed.SetAnswer(price, ledger.ReferenceScale)
	writeJSON(w, http.StatusOK, apitypes.PriceResponse{Price: price.String(), Decimals: ledger.ReferenceScale})
}

func (s *Server) fundHandler(w http.ResponseWriter, r *http.Request) {
	var req apitypes.FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid request body"})
		return
	}

	native, err := ledger.ParseAmount(req.Native, s.pair.Native.Decimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid native amount"})
		return
	}
	token, err := ledger.ParseAmount(req.Token, s.pair.Token.Decimals)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid token amount"})
		return
	}

	if err := s.pool.Fund(native, token); err != nil {
		s.writeError(w, err)
		return
	}

	s.poolHandler(w, r)
}

// lookupAccount resolves the {id} URL parameter. On failure it writes the
// error response and returns ok=false.
func (s *Server) lookupAccount(w http.ResponseWriter, r *http.Request) (*wallet.Wallet, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: "invalid account id"})
		return nil, false
	}

	acct, err := s.factory.Account(id)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return acct, true
}

func (s *Server) accountResponse(acct *wallet.Wallet) apitypes.AccountResponse {
	native, token := acct.Balances()
	return apitypes.AccountResponse{
		ID:        acct.ID().String(),
		Owner:     acct.Owner().String(),
		Native:    ledger.FormatAmount(native, s.pair.Native.Decimals),
		Token:     ledger.FormatAmount(token, s.pair.Token.Decimals),
		CreatedAt: acct.CreatedAt(),
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("internal error: %v", err)
		writeJSON(w, status, apitypes.ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, apitypes.ErrorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrStalePrice):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientLiquidity),
		errors.Is(err, ledger.ErrSlippageExceeded),
		errors.Is(err, ledger.ErrZeroAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func reasonForError(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, ledger.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, ledger.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ledger.ErrStalePrice):
		return "stale_price"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
