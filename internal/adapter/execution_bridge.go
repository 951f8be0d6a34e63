package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"shadowtrade/internal/domain"
)

// ExecutionBridge implements domain.ExecutionService against the exchange
// execution tool's HTTP API. Only the live path talks to it.
type ExecutionBridge struct {
	baseURL    string
	httpClient *http.Client
}

// NewExecutionBridge creates a new ExecutionBridge
func NewExecutionBridge(baseURL string) domain.ExecutionService {
	return &ExecutionBridge{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PlaceOrder submits an order spec for execution.
func (b *ExecutionBridge) PlaceOrder(ctx context.Context, order *domain.OrderSpec) error {
	body, err := b.post(ctx, "/orders", order)
	if err != nil {
		return err
	}
	log.Printf("[Execution] Order accepted: %s", string(body))
	return nil
}

// closeRequest is the payload for flattening a position
type closeRequest struct {
	Instrument string `json:"instrument"`
}

// ClosePosition flattens any open position on the instrument.
func (b *ExecutionBridge) ClosePosition(ctx context.Context, instrument string) error {
	_, err := b.post(ctx, "/positions/close", closeRequest{Instrument: instrument})
	return err
}

// accountResponse mirrors the execution tool's account payload
type accountResponse struct {
	Equity     float64 `json:"equity"`
	MarginUsed float64 `json:"margin_used"`
}

// AccountState returns the real account's equity and committed margin.
func (b *ExecutionBridge) AccountState(ctx context.Context) (*domain.AccountSnapshot, error) {
	url := fmt.Sprintf("%s/account", b.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("execution engine error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var account accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode account state: %w", err)
	}

	return &domain.AccountSnapshot{
		Equity:       account.Equity,
		OpenExposure: account.MarginUsed,
	}, nil
}

func (b *ExecutionBridge) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s%s", b.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execution engine request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("execution engine error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	return body, nil
}
