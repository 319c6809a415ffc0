package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/agentmesh/x402-gateway/internal/parse"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

// AnalysisExecutor summarises or analyses text with a Gemini-style model.
// Without an API key it degrades gracefully: the task still completes, the
// result carries a placeholder plus a status marker instead of failing.
type AnalysisExecutor struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
	Log      *slog.Logger
}

func (e *AnalysisExecutor) Execute(ctx context.Context, req parse.Request) (*Result, error) {
	if e.APIKey == "" {
		text := "AI analysis is not available on this deployment (no provider key configured). " +
			"Submitted content was received and can be analyzed once a key is set."
		return &Result{
			Data: map[string]any{"analysis": text, "status": "api_key_required"},
			Body: []byte(text),
			Mime: "text/plain",
		}, nil
	}

	endpoint := e.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	payload := map[string]any{
		"contents": []any{
			map[string]any{"parts": []any{
				map[string]any{"text": "Analyze the following content concisely:\n\n" + req.Content},
			}},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", e.APIKey)

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		// Provider unreachable is a degradation, not a failure.
		if e.Log != nil {
			e.Log.Warn("ai provider unreachable, returning placeholder", "error", err)
		}
		text := "AI analysis is temporarily unavailable."
		return &Result{
			Data: map[string]any{"analysis": text, "status": "api_key_required"},
			Body: []byte(text),
			Mime: "text/plain",
		}, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai provider returned %d", resp.StatusCode)
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}
	text := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		text = parsed.Candidates[0].Content.Parts[0].Text
	}
	return &Result{
		Data: map[string]any{"analysis": text, "status": "ok"},
		Body: []byte(text),
		Mime: "text/plain",
	}, nil
}
