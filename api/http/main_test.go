package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/etherwheel/custody-ledger/api/http/cache"
	apitypes "github.com/etherwheel/custody-ledger/api/http/types"
	"github.com/etherwheel/custody-ledger/events"
	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/oracle"
	"github.com/etherwheel/custody-ledger/pool"
	"github.com/etherwheel/custody-ledger/registry"
)

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newTestServer wires the full stack around a mock feed at price 1000 and a
// pool seeded with 100 native / 100000 token.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	pair := ledger.DefaultPair()
	feed := oracle.NewMockFeed(ledger.Units(1000, ledger.ReferenceScale), ledger.ReferenceScale)
	adapter := oracle.NewAdapter(feed, oracle.WithStaleAfter(time.Minute))

	swapPool := pool.New(pair, adapter, logDiscard())
	if err := swapPool.Fund(ledger.Units(100, pair.Native.Decimals), ledger.Units(100_000, pair.Token.Decimals)); err != nil {
		t.Fatalf("fund pool: %v", err)
	}

	bus := events.NewBus(0, logDiscard())
	t.Cleanup(bus.Close)
	factory := registry.NewFactory(swapPool, bus, logDiscard())

	cacheClient, err := cache.New(cache.Config{Enabled: false, TTL: time.Minute})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	return NewServer(factory, swapPool, adapter, feed, cacheClient, NewBroadcaster(logDiscard()), nil, logDiscard(), true)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createAccount(t *testing.T, srv *Server, owner string) apitypes.AccountResponse {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts", apitypes.CreateAccountRequest{Owner: owner})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: status %d body %s", rr.Code, rr.Body)
	}
	return decodeBody[apitypes.AccountResponse](t, rr)
}

func deposit(t *testing.T, srv *Server, id, amount string) {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+id+"/deposit", apitypes.DepositRequest{Amount: amount})
	if rr.Code != http.StatusOK {
		t.Fatalf("deposit: status %d body %s", rr.Code, rr.Body)
	}
}

func TestHealthzHandler(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeBody[apitypes.HealthResponse](t, rr)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestPriceHandler(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/v1/price", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body %s", rr.Code, rr.Body)
	}
	resp := decodeBody[apitypes.PriceResponse](t, rr)
	if resp.Price != "100000000000" {
		t.Errorf("price = %q, want 100000000000", resp.Price)
	}
	if resp.Decimals != ledger.ReferenceScale {
		t.Errorf("decimals = %d, want %d", resp.Decimals, ledger.ReferenceScale)
	}
	if resp.Cached {
		t.Error("price should not be cached with cache disabled")
	}
}

func TestPoolHandler(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/v1/pool", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeBody[apitypes.PoolResponse](t, rr)
	if resp.NativeReserve != "100" || resp.TokenReserve != "100000" {
		t.Errorf("reserves = %s/%s, want 100/100000", resp.NativeReserve, resp.TokenReserve)
	}
	if resp.NativeSymbol != "ETH" || resp.TokenSymbol != "USDC" {
		t.Errorf("pair = %s/%s, want ETH/USDC", resp.NativeSymbol, resp.TokenSymbol)
	}
}

func TestQuoteHandler(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/v1/quote?side=buy&amount=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body %s", rr.Code, rr.Body)
	}
	resp := decodeBody[apitypes.QuoteResponse](t, rr)
	if resp.AmountOut != "1000" {
		t.Errorf("quote = %q, want 1000", resp.AmountOut)
	}

	// Quotes never touch reserves.
	pr := decodeBody[apitypes.PoolResponse](t, doJSON(t, srv, http.MethodGet, "/v1/pool", nil))
	if pr.NativeReserve != "100" {
		t.Errorf("reserve moved on quote: %s", pr.NativeReserve)
	}
}

func TestQuoteHandlerBadInput(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"missing side", "/v1/quote?amount=1"},
		{"bad side", "/v1/quote?side=up&amount=1"},
		{"missing amount", "/v1/quote?side=buy"},
		{"bad amount", "/v1/quote?side=buy&amount=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodGet, tt.path, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestCreateAndListAccounts(t *testing.T) {
	srv := newTestServer(t)

	first := createAccount(t, srv, "0xowner")
	second := createAccount(t, srv, "0xowner")

	rr := doJSON(t, srv, http.MethodGet, "/v1/accounts?owner=0xowner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status %d", rr.Code)
	}
	resp := decodeBody[apitypes.AccountListResponse](t, rr)
	if len(resp.Accounts) != 2 || resp.Accounts[0] != first.ID || resp.Accounts[1] != second.ID {
		t.Errorf("accounts = %v, want [%s %s] in creation order", resp.Accounts, first.ID, second.ID)
	}
}

func TestCreateAccountBlankOwner(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts", apitypes.CreateAccountRequest{Owner: ""})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAccountNotFound(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/v1/accounts/11111111-1111-1111-1111-111111111111", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/v1/accounts/not-a-uuid", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed id", rr.Code)
	}
}

func TestDepositAndBalances(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")

	deposit(t, srv, acct.ID, "2.5")

	rr := doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID, nil)
	resp := decodeBody[apitypes.AccountResponse](t, rr)
	if resp.Native != "2.5" {
		t.Errorf("native = %q, want 2.5", resp.Native)
	}
	if resp.Token != "0" {
		t.Errorf("token = %q, want 0", resp.Token)
	}
}

func TestDepositZeroRejected(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+acct.ID+"/deposit", apitypes.DepositRequest{Amount: "0"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestSendUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")
	deposit(t, srv, acct.ID, "1")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+acct.ID+"/send",
		apitypes.SendRequest{Caller: "0xmallory", To: "0xelsewhere", Amount: "1"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}

	// Balance untouched.
	resp := decodeBody[apitypes.AccountResponse](t, doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID, nil))
	if resp.Native != "1" {
		t.Errorf("native = %q, want 1", resp.Native)
	}
}

func TestSendBetweenAccounts(t *testing.T) {
	srv := newTestServer(t)
	from := createAccount(t, srv, "0xalice")
	to := createAccount(t, srv, "0xbob")
	deposit(t, srv, from.ID, "3")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+from.ID+"/send",
		apitypes.SendRequest{Caller: "0xalice", To: to.ID, Amount: "1.25"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body)
	}

	fromResp := decodeBody[apitypes.AccountResponse](t, doJSON(t, srv, http.MethodGet, "/v1/accounts/"+from.ID, nil))
	toResp := decodeBody[apitypes.AccountResponse](t, doJSON(t, srv, http.MethodGet, "/v1/accounts/"+to.ID, nil))
	if fromResp.Native != "1.75" {
		t.Errorf("sender native = %q, want 1.75", fromResp.Native)
	}
	if toResp.Native != "1.25" {
		t.Errorf("recipient native = %q, want 1.25", toResp.Native)
	}
}

func TestSendInsufficientBalance(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")
	deposit(t, srv, acct.ID, "1")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+acct.ID+"/send",
		apitypes.SendRequest{Caller: "0xowner", To: "0xelsewhere", Amount: "2"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}
}

func TestSwapBuy(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")
	deposit(t, srv, acct.ID, "1")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+acct.ID+"/swap",
		apitypes.SwapRequest{Caller: "0xowner", Side: "buy", AmountIn: "1", MinOut: "1000"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body)
	}
	resp := decodeBody[apitypes.SwapResponse](t, rr)
	if resp.AmountOut != "1000" {
		t.Errorf("amount out = %q, want 1000", resp.AmountOut)
	}

	acctResp := decodeBody[apitypes.AccountResponse](t, doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID, nil))
	if acctResp.Native != "0" || acctResp.Token != "1000" {
		t.Errorf("balances = %s/%s, want 0/1000", acctResp.Native, acctResp.Token)
	}

	poolResp := decodeBody[apitypes.PoolResponse](t, doJSON(t, srv, http.MethodGet, "/v1/pool", nil))
	if poolResp.NativeReserve != "101" || poolResp.TokenReserve != "99000" {
		t.Errorf("reserves = %s/%s, want 101/99000", poolResp.NativeReserve, poolResp.TokenReserve)
	}
}

func TestSwapSlippageExceeded(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")
	deposit(t, srv, acct.ID, "1")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+acct.ID+"/swap",
		apitypes.SwapRequest{Caller: "0xowner", Side: "buy", AmountIn: "1", MinOut: "1001"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	// Nothing moved.
	acctResp := decodeBody[apitypes.AccountResponse](t, doJSON(t, srv, http.MethodGet, "/v1/accounts/"+acct.ID, nil))
	if acctResp.Native != "1" || acctResp.Token != "0" {
		t.Errorf("balances = %s/%s, want 1/0", acctResp.Native, acctResp.Token)
	}
}

func TestSwapUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	acct := createAccount(t, srv, "0xowner")
	deposit(t, srv, acct.ID, "1")

	rr := doJSON(t, srv, http.MethodPost, "/v1/accounts/"+acct.ID+"/swap",
		apitypes.SwapRequest{Caller: "0xmallory", Side: "buy", AmountIn: "1"})
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestAdminSetPrice(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/admin/price", apitypes.SetPriceRequest{Price: "2000"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body)
	}

	price := decodeBody[apitypes.PriceResponse](t, doJSON(t, srv, http.MethodGet, "/v1/price", nil))
	if price.Price != "200000000000" {
		t.Errorf("price = %q, want 200000000000", price.Price)
	}
}

func TestAdminFund(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/admin/fund", apitypes.FundRequest{Native: "10", Token: "5000"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body)
	}
	resp := decodeBody[apitypes.PoolResponse](t, rr)
	if resp.NativeReserve != "110" || resp.TokenReserve != "105000" {
		t.Errorf("reserves = %s/%s, want 110/105000", resp.NativeReserve, resp.TokenReserve)
	}
}
