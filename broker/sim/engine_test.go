package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/swingtrader/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_SubmitOrder(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.SetClock(func() time.Time { return at })
	e.SetPrice("AAPL", 190)
	ctx := context.Background()

	t.Run("marketable buy limit fills at limit", func(t *testing.T) {
		f, err := e.SubmitOrder(ctx, broker.LimitOrder("AAPL", broker.Buy, 10, 190.5))
		require.NoError(t, err)
		assert.InDelta(t, 190.5, f.Price, 1e-9)
		assert.Equal(t, 10, f.Quantity)
		assert.Equal(t, at, f.Time)
		assert.Len(t, f.OrderID, 36)
	})

	t.Run("market sell fills at last", func(t *testing.T) {
		f, err := e.SubmitOrder(ctx, broker.MarketOrder("AAPL", broker.Sell, 10))
		require.NoError(t, err)
		assert.InDelta(t, 190.0, f.Price, 1e-9)
	})

	rejects := []struct {
		name string
		req  broker.OrderRequest
	}{
		{"buy limit under market", broker.LimitOrder("AAPL", broker.Buy, 10, 180)},
		{"sell limit over market", broker.LimitOrder("AAPL", broker.Sell, 10, 200)},
		{"no price", broker.MarketOrder("MSFT", broker.Buy, 1)},
		{"sub-penny", broker.LimitOrder("AAPL", broker.Buy, 1, 190.001)},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SubmitOrder(ctx, tt.req)
			var rej *broker.RejectedError
			assert.True(t, errors.As(err, &rej), "got %v", err)
		})
	}
}

func TestEngine_FillsAreRecorded(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.SetPrice("AAPL", 100)
	_, err := e.SubmitOrder(context.Background(), broker.MarketOrder("AAPL", broker.Buy, 5))
	require.NoError(t, err)
	_, err = e.SubmitOrder(context.Background(), broker.MarketOrder("AAPL", broker.Buy, 0))
	require.Error(t, err)

	fills := e.Fills()
	require.Len(t, fills, 1)
	assert.InDelta(t, 500.0, fills[0].Notional(), 1e-9)
}
