package utils

import (
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceGenerator produces jittered random-walk prices for test and demo
// upstream feeds. Each symbol walks independently from a seeded base price.
type PriceGenerator struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	rng    *rand.Rand
}

// NewPriceGenerator creates a generator seeded with base prices for the
// usual demo symbols. Unknown symbols start at 100.
func NewPriceGenerator(seed int64) *PriceGenerator {
	base := map[string]float64{
		"BTC": 50000, "ETH": 3000, "XRP": 0.5, "ADA": 0.4, "SOL": 150,
		"DOT": 7, "LTC": 80, "LINK": 15, "BCH": 400, "XLM": 0.1,
	}
	prices := make(map[string]decimal.Decimal, len(base))
	for sym, p := range base {
		prices[sym] = decimal.NewFromFloat(p)
	}
	return &PriceGenerator{
		prices: prices,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Next advances the random walk for a symbol and returns its new price.
// Steps are uniform in ±0.5% and prices never drop below a hundredth.
func (g *PriceGenerator) Next(symbol string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()

	price, ok := g.prices[symbol]
	if !ok {
		price = decimal.NewFromInt(100)
	}

	step := (g.rng.Float64() - 0.5) / 100 // ±0.5%
	price = price.Mul(decimal.NewFromFloat(1 + step)).Round(8)
	floor := decimal.NewFromFloat(0.01)
	if price.LessThan(floor) {
		price = floor
	}
	g.prices[symbol] = price
	return price
}
