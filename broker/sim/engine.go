// Package sim is a paper-trading Gateway that fills orders against the last
// price it was given.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/swingtrader/broker"
)

// Engine fills market orders at the last price and limit orders when the
// last price is at or through the limit.
type Engine struct {
	mu     sync.Mutex
	prices map[string]float64
	orders []broker.Fill
	now    func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		prices: make(map[string]float64),
		now:    time.Now,
	}
}

// SetPrice records the last traded price for symbol.
func (e *Engine) SetPrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[symbol] = price
}

// SetClock overrides the fill timestamp source.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Fills returns every fill in submission order.
func (e *Engine) Fills() []broker.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]broker.Fill(nil), e.orders...)
}

func (e *Engine) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	if err := ctx.Err(); err != nil {
		return broker.Fill{}, err
	}
	if err := req.Validate(); err != nil {
		return broker.Fill{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	last, ok := e.prices[req.Symbol]
	if !ok || last <= 0 {
		return broker.Fill{}, &broker.RejectedError{Symbol: req.Symbol, Reason: "no price available"}
	}

	price := last
	if req.Type == broker.Limit {
		limit := *req.LimitPrice
		switch {
		case req.Side == broker.Buy && last > limit:
			return broker.Fill{}, &broker.RejectedError{
				Symbol: req.Symbol,
				Reason: fmt.Sprintf("buy limit %.2f below market %.2f", limit, last),
			}
		case req.Side == broker.Sell && last < limit:
			return broker.Fill{}, &broker.RejectedError{
				Symbol: req.Symbol,
				Reason: fmt.Sprintf("sell limit %.2f above market %.2f", limit, last),
			}
		}
		price = limit
	}

	fill := broker.Fill{
		OrderID:  uuid.NewString(),
		ClientID: req.ClientID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    price,
		Time:     e.now().UTC(),
	}
	e.orders = append(e.orders, fill)
	return fill, nil
}
