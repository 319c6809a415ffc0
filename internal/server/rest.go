package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/parse"
)

// restBody is the accepted POST body across the /x402 skill routes.
type restBody struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	Content  string `json:"content"`
	Text     string `json:"text"`
	Network  string `json:"network"`
	Payer    string `json:"payer"`
}

// handleX402Get serves the payment requirements for a priced skill. A GET
// never executes anything. The bazaar and chains catalogues share this
// route segment and are dispatched here.
func (s *Server) handleX402Get(c *gin.Context) {
	switch c.Param("skill") {
	case "bazaar":
		s.handleBazaar(c)
		return
	case "chains":
		s.handleChains(c)
		return
	}
	skill, ok := catalog.SkillByID(c.Param("skill"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown skill: " + c.Param("skill")})
		return
	}
	if !skill.RequiresPayment() {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "free skill, use POST"})
		return
	}
	c.JSON(http.StatusPaymentRequired, s.engine.Builder().Build(skill))
}

// handleX402Post executes a skill over the REST surface. Priced skills
// demand a payment header and answer 402 without one.
func (s *Server) handleX402Post(c *gin.Context) {
	skill, ok := catalog.SkillByID(c.Param("skill"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown skill: " + c.Param("skill")})
		return
	}

	var body restBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	req, reason := restRequest(skill.ID, body)
	if reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": reason})
		return
	}

	if !skill.RequiresPayment() {
		task, rpcErr := s.engine.HandleRest(c.Request.Context(), skill.ID, req, a2a.PaymentMeta{})
		if rpcErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": rpcErr.Message})
			return
		}
		s.writeRestResult(c, task)
		return
	}

	payload := paymentFromHeaders(c, body)
	if payload == nil {
		c.JSON(http.StatusPaymentRequired, s.engine.Builder().Build(skill))
		return
	}
	pm := a2a.PaymentMeta{
		Status:  a2a.PaymentStatusSubmitted,
		Payload: payload,
		Payer:   body.Payer,
	}
	task, rpcErr := s.engine.HandleRest(c.Request.Context(), skill.ID, req, pm)
	if rpcErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": rpcErr.Message})
		return
	}
	if task.Status.State == a2a.TaskStateFailed {
		c.JSON(http.StatusInternalServerError, gin.H{"error": failureReason(task)})
		return
	}
	if tx, ok := task.Metadata[a2a.TaskMetaTransactionID].(string); ok && tx != "" {
		resp, _ := json.Marshal(map[string]any{"settled": true, "txHash": tx})
		c.Header("X-Payment-Response", string(resp))
	}
	s.writeRestResult(c, task)
}

// restRequest maps the REST body onto the parsed-request shape, enforcing
// the per-skill required field.
func restRequest(skillID string, body restBody) (parse.Request, string) {
	req := parse.Request{SkillID: skillID}
	switch skillID {
	case catalog.SkillScreenshot:
		if body.URL == "" {
			return req, "url is required"
		}
		req.URL = body.URL
		req.Content = body.URL
	case catalog.SkillMarkdownToPDF, catalog.SkillMarkdownToHTML:
		content := body.Markdown
		if content == "" {
			content = body.Content
		}
		if content == "" {
			return req, "markdown is required"
		}
		req.Content = content
	case catalog.SkillAIAnalysis:
		content := body.Text
		if content == "" {
			content = body.Content
		}
		if content == "" {
			return req, "text is required"
		}
		req.Content = content
	}
	return req, ""
}

// paymentFromHeaders decodes the signed payment from X-Payment (base64 or
// raw JSON) or Payment-Signature (opaque signature). Nil means no payment
// was presented.
func paymentFromHeaders(c *gin.Context, body restBody) *a2a.PaymentPayload {
	if raw := c.GetHeader("X-Payment"); raw != "" {
		data := []byte(raw)
		if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
			if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
				data = decoded
			}
		}
		var p a2a.PaymentPayload
		if err := json.Unmarshal(data, &p); err == nil {
			if p.Network == "" {
				p.Network = body.Network
			}
			return &p
		}
		return &a2a.PaymentPayload{Signature: raw, Network: body.Network, From: body.Payer}
	}
	if sig := c.GetHeader("Payment-Signature"); sig != "" {
		return &a2a.PaymentPayload{Signature: sig, Network: body.Network, From: body.Payer}
	}
	return nil
}

// writeRestResult renders the final task's agent reply as the HTTP body:
// file parts as raw bytes, data parts as JSON, text parts as text.
func (s *Server) writeRestResult(c *gin.Context, task *a2a.Task) {
	part, ok := replyPart(task)
	if !ok {
		c.JSON(http.StatusOK, task)
		return
	}
	switch part.Kind {
	case a2a.PartKindFile:
		raw, err := base64.StdEncoding.DecodeString(part.File.Bytes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt result payload"})
			return
		}
		c.Data(http.StatusOK, part.File.MimeType, raw)
	case a2a.PartKindData:
		if html, ok := part.Data["html"].(string); ok {
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
			return
		}
		c.JSON(http.StatusOK, part.Data)
	default:
		mime := "text/plain; charset=utf-8"
		if strings.HasPrefix(strings.TrimSpace(part.Text), "<!DOCTYPE html") {
			mime = "text/html; charset=utf-8"
		}
		c.Data(http.StatusOK, mime, []byte(part.Text))
	}
}

func replyPart(task *a2a.Task) (a2a.Part, bool) {
	if task.Status.Message == nil || len(task.Status.Message.Parts) == 0 {
		return a2a.Part{}, false
	}
	return task.Status.Message.Parts[0], true
}

func failureReason(task *a2a.Task) string {
	if part, ok := replyPart(task); ok && part.Kind == a2a.PartKindText {
		return part.Text
	}
	return "skill execution failed"
}
