package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
)

// Remote calls an out-of-process facilitator service: POST /verify followed
// by POST /settle, both carrying the payload and matched requirements.
type Remote struct {
	url        string
	httpClient *http.Client
}

// RemoteConfig configures the remote facilitator client.
type RemoteConfig struct {
	// URL is the base URL of the facilitator service.
	URL string

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Timeout per request (optional, defaults to 30s).
	Timeout time.Duration
}

// NewRemote creates a remote facilitator client.
func NewRemote(config RemoteConfig) *Remote {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Remote{url: config.URL, httpClient: httpClient}
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
}

// VerifyAndSettle verifies the payment with the facilitator, then settles
// it and returns the on-chain transaction identifier.
func (r *Remote) VerifyAndSettle(ctx context.Context, payload *a2a.PaymentPayload, requirements *catalog.PaymentRequired) (string, error) {
	body := map[string]any{
		"paymentPayload":      payload,
		"paymentRequirements": requirements,
	}

	var verify verifyResponse
	if err := r.post(ctx, "/verify", body, &verify); err != nil {
		return "", fmt.Errorf("facilitator verify: %w", err)
	}
	if !verify.IsValid {
		return "", fmt.Errorf("%w: %s", ErrMalformedPayload, verify.InvalidReason)
	}

	var settle settleResponse
	if err := r.post(ctx, "/settle", body, &settle); err != nil {
		return "", fmt.Errorf("facilitator settle: %w", err)
	}
	if !settle.Success {
		return "", fmt.Errorf("settlement rejected: %s", settle.ErrorReason)
	}
	return settle.Transaction, nil
}

func (r *Remote) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator returned %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
