package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shadowtrade/internal/domain"
)

// MarketDataService fetches real-time prices and candles from Binance and
// derives the per-cycle trend classification.
type MarketDataService struct {
	httpClient *http.Client
	baseURL    string
}

// NewMarketDataService creates a new MarketDataService
func NewMarketDataService() *MarketDataService {
	return &MarketDataService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: "https://api.binance.com",
	}
}

// Snapshot builds the immutable per-cycle market view for one instrument:
// latest price, 1h and 4h candle series, and the derived trend.
func (s *MarketDataService) Snapshot(ctx context.Context, instrument string) (*domain.MarketSnapshot, error) {
	price, err := s.GetPrice(ctx, instrument)
	if err != nil {
		return nil, err
	}

	candles := make(map[string][]domain.Candle, 2)
	for _, interval := range []string{"1h", "4h"} {
		series, err := s.fetchCandles(ctx, instrument, interval, 50)
		if err != nil {
			return nil, err
		}
		candles[interval] = series
	}

	return &domain.MarketSnapshot{
		Instrument: strings.ToUpper(instrument),
		Price:      price,
		Candles:    candles,
		Trend:      classifyTrend(candles["1h"]),
		Timestamp:  time.Now().UTC(),
	}, nil
}

// FetchRealTimePrices fetches current prices for multiple symbols from Binance
func (s *MarketDataService) FetchRealTimePrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return make(map[string]float64), nil
	}

	prices := make(map[string]float64)

	url := fmt.Sprintf("%s/api/v3/ticker/price", s.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices from Binance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Binance API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Binance returns an array of all tickers
	var tickers []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	symbolMap := make(map[string]bool)
	for _, symbol := range symbols {
		symbolMap[strings.ToUpper(symbol)] = true
	}

	for _, ticker := range tickers {
		if symbolMap[ticker.Symbol] {
			price, err := strconv.ParseFloat(ticker.Price, 64)
			if err != nil {
				continue
			}
			prices[ticker.Symbol] = price
		}
	}

	// Verify we got all requested symbols
	var missing []string
	for symbol := range symbolMap {
		if _, ok := prices[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	if len(missing) > 0 {
		return prices, fmt.Errorf("missing prices for symbols: %s", strings.Join(missing, ", "))
	}

	return prices, nil
}

// FetchSinglePrice fetches the current price for a single symbol
func (s *MarketDataService) FetchSinglePrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, strings.ToUpper(symbol))

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price from Binance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("Binance API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", ticker.Price, err)
	}

	return price, nil
}

// GetPrice returns the current price for a symbol
func (s *MarketDataService) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return s.FetchSinglePrice(ctx, symbol)
}

// fetchCandles fetches OHLCV bars from the Binance klines endpoint.
// Each kline is a mixed-type JSON array.
func (s *MarketDataService) fetchCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		s.baseURL, strings.ToUpper(symbol), interval, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines from Binance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Binance API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var raw [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode klines: %w", err)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}

		var openTimeMs int64
		if err := json.Unmarshal(k[0], &openTimeMs); err != nil {
			continue
		}

		values := make([]float64, 5)
		ok := true
		for i := 1; i <= 5; i++ {
			var s string
			if err := json.Unmarshal(k[i], &s); err != nil {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			values[i-1] = v
		}
		if !ok {
			continue
		}

		candles = append(candles, domain.Candle{
			OpenTime: time.UnixMilli(openTimeMs).UTC(),
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
			Volume:   values[4],
		})
	}

	return candles, nil
}

// classifyTrend labels the series by the last close relative to a 20-bar
// moving average with a 0.5% neutral band.
func classifyTrend(candles []domain.Candle) domain.Trend {
	const period = 20
	const band = 0.005

	if len(candles) < period {
		return domain.TrendNeutral
	}

	var sum float64
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	ma := sum / period
	last := candles[len(candles)-1].Close

	switch {
	case last > ma*(1+band):
		return domain.TrendBull
	case last < ma*(1-band):
		return domain.TrendBear
	default:
		return domain.TrendNeutral
	}
}
