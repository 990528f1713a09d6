// Package broker implements the BrokerPort (spec §4.2/§6) as a paper-trading
// sandbox: a simulated cash/position ledger that fills orders against the
// Market Data Port's live quotes instead of a real brokerage connection.
// Grounded on the teacher's tradernet client's account/position/order
// shapes (internal/clients/tradernet/client.go), reimplemented as an
// in-memory simulator rather than a wire client.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtrade/momentum-trader/internal/domain"
	"github.com/nyxtrade/momentum-trader/internal/ports"
	"github.com/rs/zerolog"
)

// Config seeds the paper-trading ledger (spec §6 PAPER_TRADING).
type Config struct {
	StartingCash float64
}

func DefaultConfig() Config {
	return Config{StartingCash: 100_000}
}

type heldPosition struct {
	Symbol        string
	Qty           int64
	AvgEntryPrice float64
}

// Client is the paper-trading BrokerPort implementation.
type Client struct {
	cfg    Config
	market ports.MarketDataPort
	log    zerolog.Logger

	mu            sync.Mutex
	cash          float64
	positions     map[string]*heldPosition
	orders        map[string]ports.Order
	idempotency   map[string]ports.OrderResult
	dayTradeCount int
}

var _ ports.BrokerPort = (*Client)(nil)

func New(cfg Config, market ports.MarketDataPort, log zerolog.Logger) *Client {
	return &Client{
		cfg:         cfg,
		market:      market,
		log:         log.With().Str("component", "broker_paper").Logger(),
		cash:        cfg.StartingCash,
		positions:   make(map[string]*heldPosition),
		orders:      make(map[string]ports.Order),
		idempotency: make(map[string]ports.OrderResult),
	}
}

func (c *Client) GetAccount(ctx context.Context) (ports.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	portfolioValue := c.cash
	for symbol, pos := range c.positions {
		price := pos.AvgEntryPrice
		if q, err := c.market.Snapshot(ctx, domain.Ticker(symbol)); err == nil && q.Last > 0 {
			price = q.Last
		}
		portfolioValue += price * float64(pos.Qty)
	}

	return ports.Account{
		BuyingPower:    c.cash,
		Cash:           c.cash,
		PortfolioValue: portfolioValue,
		DayTradeCount:  c.dayTradeCount,
		Blocked:        false,
	}, nil
}

func (c *Client) ListPositions(ctx context.Context) ([]ports.BrokerPosition, error) {
	c.mu.Lock()
	snapshot := make([]*heldPosition, 0, len(c.positions))
	for _, p := range c.positions {
		cp := *p
		snapshot = append(snapshot, &cp)
	}
	c.mu.Unlock()

	out := make([]ports.BrokerPosition, 0, len(snapshot))
	for _, p := range snapshot {
		current := p.AvgEntryPrice
		if q, err := c.market.Snapshot(ctx, domain.Ticker(p.Symbol)); err == nil && q.Last > 0 {
			current = q.Last
		}
		marketValue := current * float64(p.Qty)
		costBasis := p.AvgEntryPrice * float64(p.Qty)
		unrealized := marketValue - costBasis
		var unrealizedPct float64
		if costBasis != 0 {
			unrealizedPct = unrealized / costBasis
		}
		out = append(out, ports.BrokerPosition{
			Symbol:           p.Symbol,
			Qty:              p.Qty,
			AvgEntryPrice:    p.AvgEntryPrice,
			CurrentPrice:     current,
			MarketValue:      marketValue,
			UnrealizedPnL:    unrealized,
			UnrealizedPnLPct: unrealizedPct,
		})
	}
	return out, nil
}

// PlaceBuy fills at the current market snapshot (or rejects a limit order
// the market has moved through), deducting cash and accumulating a
// weighted-average position. Idempotent on idempotencyKey (spec §4.2).
func (c *Client) PlaceBuy(ctx context.Context, symbol string, shares int64, limit *float64, idempotencyKey string) (ports.OrderResult, error) {
	c.mu.Lock()
	if idempotencyKey != "" {
		if result, ok := c.idempotency[idempotencyKey]; ok {
			c.mu.Unlock()
			return result, nil
		}
	}
	c.mu.Unlock()

	quote, err := c.market.Snapshot(ctx, domain.Ticker(symbol))
	if err != nil {
		return ports.OrderResult{}, fmt.Errorf("broker: pricing buy: %w", err)
	}
	if limit != nil && quote.Last > *limit {
		return ports.OrderResult{}, fmt.Errorf("%w: market %.4f above limit %.4f", ports.ErrRejected, quote.Last, *limit)
	}

	cost := quote.Last * float64(shares)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cost > c.cash {
		return ports.OrderResult{}, fmt.Errorf("%w: need %.2f, have %.2f", ports.ErrInsufficientBuyingPower, cost, c.cash)
	}

	c.cash -= cost
	if pos, ok := c.positions[symbol]; ok {
		totalCost := pos.AvgEntryPrice*float64(pos.Qty) + cost
		pos.Qty += shares
		pos.AvgEntryPrice = totalCost / float64(pos.Qty)
	} else {
		c.positions[symbol] = &heldPosition{Symbol: symbol, Qty: shares, AvgEntryPrice: quote.Last}
	}
	c.dayTradeCount++

	result := ports.OrderResult{OrderID: uuid.NewString(), AcceptedAt: time.Now(), FilledPrice: quote.Last}
	c.orders[result.OrderID] = ports.Order{OrderID: result.OrderID, Symbol: symbol, Side: "buy", Qty: shares, Status: "filled"}
	if idempotencyKey != "" {
		c.idempotency[idempotencyKey] = result
	}

	c.log.Info().Str("symbol", symbol).Int64("shares", shares).Float64("price", quote.Last).Msg("broker: buy filled")
	return result, nil
}

// PlaceSell fills at the current market snapshot; rejects if the position
// is not held or the size exceeds what is held.
func (c *Client) PlaceSell(ctx context.Context, symbol string, shares int64) (ports.OrderResult, error) {
	quote, err := c.market.Snapshot(ctx, domain.Ticker(symbol))
	if err != nil {
		return ports.OrderResult{}, fmt.Errorf("broker: pricing sell: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.positions[symbol]
	if !ok || pos.Qty < shares {
		return ports.OrderResult{}, fmt.Errorf("%w: no sufficient held position in %s", ports.ErrRejected, symbol)
	}

	proceeds := quote.Last * float64(shares)
	c.cash += proceeds
	pos.Qty -= shares
	if pos.Qty == 0 {
		delete(c.positions, symbol)
	}

	result := ports.OrderResult{OrderID: uuid.NewString(), AcceptedAt: time.Now(), FilledPrice: quote.Last}
	c.orders[result.OrderID] = ports.Order{OrderID: result.OrderID, Symbol: symbol, Side: "sell", Qty: shares, Status: "filled"}

	c.log.Info().Str("symbol", symbol).Int64("shares", shares).Float64("price", quote.Last).Msg("broker: sell filled")
	return result, nil
}

func (c *Client) ListOrders(ctx context.Context, status string, limit int) ([]ports.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ports.Order, 0, limit)
	for _, o := range c.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
