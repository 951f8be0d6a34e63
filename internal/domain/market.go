package domain

import (
	"context"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// MarketSnapshot is the immutable per-cycle view of one instrument: latest
// price, multi-timeframe candle series and the derived trend classification.
// Shadow work for a cycle always receives the snapshot captured by that
// cycle, never a later one.
type MarketSnapshot struct {
	Instrument string              `json:"instrument"`
	Price      float64             `json:"price"`
	Candles    map[string][]Candle `json:"candles"`
	Trend      Trend               `json:"trend"`
	Timestamp  time.Time           `json:"timestamp"`
}

// MarketDataService defines the interface for fetching market data
type MarketDataService interface {
	Snapshot(ctx context.Context, instrument string) (*MarketSnapshot, error)
	FetchRealTimePrices(ctx context.Context, symbols []string) (map[string]float64, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}
