// Package broker defines the order boundary between the trading core and an
// execution venue.
package broker

import (
	"context"
	"fmt"
	"math"
	"time"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Gateway submits an order and reports a fill or a rejection. There are no
// partial fills; a rejection is returned as *RejectedError.
type Gateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Fill, error)
}

type OrderRequest struct {
	Symbol     string
	Side       Side
	Quantity   int
	Type       OrderType
	LimitPrice *float64
	ClientID   string
}

type Fill struct {
	OrderID  string
	ClientID string
	Symbol   string
	Side     Side
	Quantity int
	Price    float64
	Time     time.Time
}

// Notional is quantity times fill price.
func (f Fill) Notional() float64 {
	return float64(f.Quantity) * f.Price
}

// RejectedError is a terminal refusal of an order by the venue.
type RejectedError struct {
	Symbol string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order rejected for %s: %s", e.Symbol, e.Reason)
}

// LimitOrder builds a limit order request.
func LimitOrder(symbol string, side Side, qty int, price float64) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, Quantity: qty, Type: Limit, LimitPrice: &price}
}

// MarketOrder builds a market order request.
func MarketOrder(symbol string, side Side, qty int) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, Quantity: qty, Type: Market}
}

// Validate applies the venue-independent order rules. Prices of a dollar or
// more must be whole cents.
func (r OrderRequest) Validate() error {
	reject := func(format string, args ...any) error {
		return &RejectedError{Symbol: r.Symbol, Reason: fmt.Sprintf(format, args...)}
	}
	if r.Symbol == "" {
		return reject("missing symbol")
	}
	if r.Side != Buy && r.Side != Sell {
		return reject("unsupported side %q", r.Side)
	}
	if r.Quantity <= 0 {
		return reject("quantity must be positive, got %d", r.Quantity)
	}
	switch r.Type {
	case Market:
	case Limit:
		if r.LimitPrice == nil || *r.LimitPrice <= 0 {
			return reject("limit order needs a positive limit price")
		}
		if p := *r.LimitPrice; p >= 1 && SubPenny(p) {
			return reject("sub-penny limit price %v", p)
		}
	default:
		return reject("unsupported order type %q", r.Type)
	}
	return nil
}

// SubPenny reports a price with more precision than whole cents.
func SubPenny(p float64) bool {
	cents := p * 100
	return math.Abs(cents-math.Round(cents)) > 1e-6
}

// RoundCents rounds a price to whole cents.
func RoundCents(p float64) float64 {
	return math.Round(p*100) / 100
}
