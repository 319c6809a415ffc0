package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/parse"
)

// mountMCP exposes the gateway's skills to MCP clients over SSE. Priced
// skills are visible but answer with their payment requirements; the free
// renderer executes directly.
func (s *Server) mountMCP(r *gin.Engine) {
	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "x402-agent-gateway",
		Version: "1.0.0",
	}, nil)

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "list_skills",
		Description: "List the gateway's skills with prices.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		out, _ := json.MarshalIndent(catalog.Skills, "", "  ")
		return textResult(string(out), false), nil
	})

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "payment_requirements",
		Description: "Return the x402 payment requirements for a priced skill.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {"skill": {"type": "string"}}, "required": ["skill"]}`),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := toolArgs(req)
		skillID, _ := args["skill"].(string)
		skill, ok := catalog.SkillByID(skillID)
		if !ok {
			return textResult("unknown skill: "+skillID, true), nil
		}
		required := s.engine.Builder().Build(skill)
		if required == nil {
			return textResult("skill is free, no payment required", false), nil
		}
		out, _ := json.MarshalIndent(required, "", "  ")
		return textResult(string(out), false), nil
	})

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "markdown_to_html",
		Description: "Render markdown to an HTML document (free).",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {"markdown": {"type": "string"}}, "required": ["markdown"]}`),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := toolArgs(req)
		md, _ := args["markdown"].(string)
		if md == "" {
			return textResult("markdown is required", true), nil
		}
		task, rpcErr := s.engine.HandleRest(ctx, catalog.SkillMarkdownToHTML, parse.Request{
			SkillID: catalog.SkillMarkdownToHTML,
			Content: md,
		}, a2a.PaymentMeta{})
		if rpcErr != nil {
			return textResult(rpcErr.Message, true), nil
		}
		if part, ok := replyPart(task); ok {
			if html, ok := part.Data["html"].(string); ok {
				return textResult(html, false), nil
			}
			return textResult(part.Text, false), nil
		}
		return textResult("no output", true), nil
	})

	mcpServer.AddTool(&mcpsdk.Tool{
		Name:        "send_message",
		Description: "Send a text message through the agent state machine and return the task.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}, "taskId": {"type": "string"}}, "required": ["text"]}`),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := toolArgs(req)
		text, _ := args["text"].(string)
		taskID, _ := args["taskId"].(string)
		if text == "" {
			return textResult("text is required", true), nil
		}
		msg := &a2a.Message{
			Role:   "user",
			Kind:   "message",
			Parts:  []a2a.Part{a2a.TextPart(text)},
			TaskID: taskID,
		}
		task, rpcErr := s.engine.Handle(ctx, msg, nil)
		if rpcErr != nil {
			return textResult(rpcErr.Message, true), nil
		}
		out, _ := json.MarshalIndent(task, "", "  ")
		return textResult(string(out), false), nil
	})

	sseHandler := mcpsdk.NewSSEHandler(func(req *http.Request) *mcpsdk.Server {
		return mcpServer
	}, nil)
	wrapped := gin.WrapH(sseHandler)
	r.GET("/mcp", wrapped)
	r.POST("/mcp", wrapped)
	r.GET("/mcp/messages", wrapped)
	r.POST("/mcp/messages", wrapped)
}

func toolArgs(req *mcpsdk.CallToolRequest) map[string]any {
	args := make(map[string]any)
	if len(req.Params.Arguments) > 0 {
		_ = json.Unmarshal(req.Params.Arguments, &args)
	}
	return args
}

func textResult(text string, isErr bool) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: isErr,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}
