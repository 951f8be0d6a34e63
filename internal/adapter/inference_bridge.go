package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"shadowtrade/internal/domain"
)

// InferenceBridge implements domain.InferenceService against the external
// inference engine's HTTP API. Assertion retries are driven by the caller;
// the bridge only forwards the accumulated feedback as amended context.
type InferenceBridge struct {
	client *resty.Client
}

// NewInferenceBridge creates a new InferenceBridge
func NewInferenceBridge(baseURL string) domain.InferenceService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(120 * time.Second). // model inference can take a while
		SetHeader("Content-Type", "application/json")

	return &InferenceBridge{client: client}
}

// GenerateSignal asks the engine for a directional trade signal.
func (b *InferenceBridge) GenerateSignal(ctx context.Context, req *domain.InferenceRequest) (*domain.RawSignal, error) {
	var signal domain.RawSignal

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&signal).
		Post("/signals/generate")

	if err != nil {
		return nil, fmt.Errorf("inference engine request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("inference engine error: status=%d, body=%s",
			resp.StatusCode(), resp.String())
	}

	if signal.Instrument == "" {
		signal.Instrument = req.Instrument
	}

	return &signal, nil
}
