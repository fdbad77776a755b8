// Package events carries the value-typed notifications the core publishes
// after successful state transitions. Subscribers (WebSocket clients, the
// NATS publisher, the history sink) consume them without the core knowing
// they exist.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/etherwheel/custody-ledger/ledger"
)

// Type tags an event for routing. The string doubles as the trailing NATS
// subject segment.
type Type string

const (
	TypeAccountCreated Type = "accounts.created"
	TypeSwapExecuted   Type = "swaps.executed"
	TypeNativeSent     Type = "transfers.native"
	TypeDeposit        Type = "deposits.received"
)

// Swap direction labels used by SwapExecuted.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Event is implemented by every notification value. ID is stable per event
// and used for publish idempotency downstream.
type Event interface {
	EventType() Type
	ID() string
}

// AccountCreated is emitted once per successful registry creation.
type AccountCreated struct {
	Owner     ledger.Address `json:"owner"`
	AccountID uuid.UUID      `json:"account_id"`
	At        time.Time      `json:"at"`
}

func (e AccountCreated) EventType() Type { return TypeAccountCreated }
func (e AccountCreated) ID() string      { return e.AccountID.String() }

// SwapExecuted records a completed pool swap on behalf of an account.
// Amounts are raw integer strings at each asset's own scale; Price is the
// normalized oracle price the swap executed at.
type SwapExecuted struct {
	AccountID uuid.UUID `json:"account_id"`
	Side      string    `json:"side"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	Price     string    `json:"price"`
	At        time.Time `json:"at"`
}

func (e SwapExecuted) EventType() Type { return TypeSwapExecuted }
func (e SwapExecuted) ID() string {
	return fmt.Sprintf("%s:%s:%d", e.AccountID, e.Side, e.At.UnixNano())
}

// NativeSent records an outgoing owner-authorized native transfer.
type NativeSent struct {
	AccountID uuid.UUID      `json:"account_id"`
	To        ledger.Address `json:"to"`
	Amount    string         `json:"amount"`
	At        time.Time      `json:"at"`
}

func (e NativeSent) EventType() Type { return TypeNativeSent }
func (e NativeSent) ID() string {
	return fmt.Sprintf("%s:send:%d", e.AccountID, e.At.UnixNano())
}

// Deposit records an unrestricted incoming native credit.
type Deposit struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    string    `json:"amount"`
	At        time.Time `json:"at"`
}

func (e Deposit) EventType() Type { return TypeDeposit }
func (e Deposit) ID() string {
	return fmt.Sprintf("%s:deposit:%d", e.AccountID, e.At.UnixNano())
}
