// Package executor implements the backend skill executors. The state
// machine treats them as opaque async functions: a structured result or an
// error value, never a panic. Network-bound executors honour the caller's
// context deadline.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/config"
	"github.com/agentmesh/x402-gateway/internal/parse"
)

// Result is what a skill produces: a structured payload for the data part
// of the agent message, plus raw bytes and content type for the REST
// surface.
type Result struct {
	Data map[string]any
	Body []byte
	Mime string
}

// Executor runs one skill.
type Executor interface {
	Execute(ctx context.Context, req parse.Request) (*Result, error)
}

// Registry maps skill ids to their executors.
type Registry map[string]Executor

// NewRegistry wires the built-in executors from configuration.
func NewRegistry(cfg *config.Config, log *slog.Logger) Registry {
	return Registry{
		catalog.SkillMarkdownToHTML: &HTMLExecutor{},
		catalog.SkillMarkdownToPDF:  &PDFExecutor{},
		catalog.SkillScreenshot: &ScreenshotExecutor{
			APIURL: cfg.ScreenshotAPIURL,
			APIKey: cfg.ScreenshotAPIKey,
		},
		catalog.SkillAIAnalysis: &AnalysisExecutor{
			APIKey: cfg.GeminiAPIKey,
			Log:    log,
		},
	}
}

// Execute dispatches to the registered executor for the skill.
func (r Registry) Execute(ctx context.Context, skillID string, req parse.Request) (*Result, error) {
	exec, ok := r[skillID]
	if !ok {
		return nil, fmt.Errorf("no executor registered for skill %q", skillID)
	}
	return exec.Execute(ctx, req)
}
