package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/agentmesh/x402-gateway/internal/parse"
)

// ErrScreenshotUnconfigured is returned when no backend capture service is
// configured. Paid screenshot requests then fail as a value and surface in
// the receipt.
var ErrScreenshotUnconfigured = errors.New("screenshot backend not configured")

// ScreenshotExecutor captures a page via an external capture service. The
// service takes a JSON body with the target URL and answers with PNG bytes.
type ScreenshotExecutor struct {
	APIURL string
	APIKey string
	Client *http.Client
}

func (e *ScreenshotExecutor) Execute(ctx context.Context, req parse.Request) (*Result, error) {
	if req.URL == "" {
		return nil, errors.New("screenshot requires a target URL")
	}
	if e.APIURL == "" {
		return nil, ErrScreenshotUnconfigured
	}

	body, err := json.Marshal(map[string]any{"url": req.URL, "fullPage": true})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		httpReq.Header.Set("X-API-Key", e.APIKey)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("capture service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("capture service returned %d", resp.StatusCode)
	}
	return &Result{
		Data: map[string]any{"url": req.URL, "bytes": len(data), "mimeType": "image/png"},
		Body: data,
		Mime: "image/png",
	}, nil
}
