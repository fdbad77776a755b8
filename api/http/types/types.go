package types

import (
	"errors"
	"time"
)

// HealthResponse represents the shape of /healthz responses.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// PriceResponse carries the normalized oracle price at the reference scale.
type PriceResponse struct {
	Price     string    `json:"price"`
	Decimals  uint8     `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
	Cached    bool      `json:"cached"`
}

// PoolResponse describes the swap pool's pair and current reserves.
type PoolResponse struct {
	NativeSymbol   string `json:"native_symbol"`
	NativeDecimals uint8  `json:"native_decimals"`
	TokenSymbol    string `json:"token_symbol"`
	TokenDecimals  uint8  `json:"token_decimals"`
	NativeReserve  string `json:"native_reserve"`
	TokenReserve   string `json:"token_reserve"`
}

// QuoteResponse is the result of a pure quote, no state touched.
type QuoteResponse struct {
	Side      string `json:"side"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// CreateAccountRequest asks the registry for a new proxy account.
type CreateAccountRequest struct {
	Owner string `json:"owner"`
}

// AccountResponse describes one proxy account with its balances.
type AccountResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Native    string    `json:"native"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountListResponse lists account IDs for one owner in creation order.
type AccountListResponse struct {
	Owner    string   `json:"owner"`
	Accounts []string `json:"accounts"`
}

// DepositRequest credits native value into an account, no auth required.
type DepositRequest struct {
	Amount string `json:"amount"`
}

// SendRequest moves native value out of an account. To may name another
// account ID or an external address.
type SendRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// SwapRequest executes a pool swap on behalf of an account.
type SwapRequest struct {
	Caller   string `json:"caller"`
	Side     string `json:"side"`
	AmountIn string `json:"amount_in"`
	MinOut   string `json:"min_out,omitempty"`
}

// SwapResponse reports the executed amounts.
type SwapResponse struct {
	Side      string `json:"side"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// SetPriceRequest updates the mock feed (dev mode only).
type SetPriceRequest struct {
	Price string `json:"price"`
}

// FundRequest seeds pool reserves (dev mode only).
type FundRequest struct {
	Native string `json:"native"`
	Token  string `json:"token"`
}

// ErrorResponse is a generic API error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrNotFound indicates missing cache entries.
var ErrNotFound = errors.New("not found")

// Swap sides accepted by the quote and swap endpoints.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// ValidateSide ensures the provided swap side matches supported values.
func ValidateSide(side string) error {
	switch side {
	case SideBuy, SideSell:
		return nil
	case "":
		return errors.New("missing side")
	default:
		return errors.New("invalid side")
	}
}
