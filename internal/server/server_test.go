package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/config"
	"github.com/agentmesh/x402-gateway/internal/engine"
	"github.com/agentmesh/x402-gateway/internal/executor"
	"github.com/agentmesh/x402-gateway/internal/facilitator"
	"github.com/agentmesh/x402-gateway/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.State) {
	t.Helper()
	cfg := &config.Config{
		Port:            4002,
		PublicURL:       "http://localhost:4002",
		PayTo:           "0xPAYEE",
		StatsAPIKey:     "sekrit",
		ExecutorTimeout: time.Second,
	}
	st := store.NewState()
	builder := &catalog.Builder{PayTo: cfg.PayTo}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	executors := executor.NewRegistry(cfg, log)
	eng := engine.New(st, builder, executors, facilitator.Local{}, cfg.ExecutorTimeout, log)
	srv := New(cfg, eng, log, st.StartedAt)
	return srv.Router(), st
}

func rpcBody(t *testing.T, method string, params any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func doRPC(t *testing.T, r *gin.Engine, method string, params any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", rpcBody(t, method, params))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func sendText(t *testing.T, r *gin.Engine, text string, meta map[string]any) map[string]any {
	t.Helper()
	message := map[string]any{
		"messageId": "m1",
		"role":      "user",
		"kind":      "message",
		"parts":     []map[string]any{{"kind": "text", "text": text}},
	}
	if meta != nil {
		message["metadata"] = meta
	}
	_, envelope := doRPC(t, r, "message/send", map[string]any{"message": message})
	result, ok := envelope["result"].(map[string]any)
	require.True(t, ok, "expected a result, got %v", envelope)
	return result
}

func TestRPCInvalidEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	errObj := envelope["error"].(map[string]any)
	assert.EqualValues(t, a2a.ErrCodeInvalidRequest, errObj["code"])
}

func TestRPCWrongVersion(t *testing.T) {
	r, _ := newTestRouter(t)

	raw, _ := json.Marshal(map[string]any{"jsonrpc": "1.0", "id": 1, "method": "message/send"})
	req := httptest.NewRequest(http.MethodPost, "/a2a", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	errObj := envelope["error"].(map[string]any)
	assert.EqualValues(t, a2a.ErrCodeInvalidRequest, errObj["code"])
}

func TestRPCUnknownMethod(t *testing.T) {
	r, _ := newTestRouter(t)
	_, envelope := doRPC(t, r, "tasks/stream", map[string]any{})
	errObj := envelope["error"].(map[string]any)
	assert.EqualValues(t, a2a.ErrCodeMethodNotFound, errObj["code"])
}

func TestRPCMissingParts(t *testing.T) {
	r, _ := newTestRouter(t)
	_, envelope := doRPC(t, r, "message/send", map[string]any{
		"message": map[string]any{"messageId": "m1", "role": "user", "kind": "message"},
	})
	errObj := envelope["error"].(map[string]any)
	assert.EqualValues(t, a2a.ErrCodeInvalidParams, errObj["code"])
}

func TestRPCTaskNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	_, envelope := doRPC(t, r, "tasks/get", map[string]any{"id": "missing"})
	errObj := envelope["error"].(map[string]any)
	assert.EqualValues(t, a2a.ErrCodeTaskNotFound, errObj["code"])
}

func TestRPCFreeSkillRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	result := sendText(t, r, "# Hello", nil)
	assert.Equal(t, "completed", result["status"].(map[string]any)["state"])

	taskID := result["id"].(string)
	_, envelope := doRPC(t, r, "tasks/get", map[string]any{"id": taskID})
	got := envelope["result"].(map[string]any)
	assert.Equal(t, taskID, got["id"], "tasks/get returns the created task")
	assert.Equal(t, "completed", got["status"].(map[string]any)["state"])
}

func TestRPCTasksSendAlias(t *testing.T) {
	r, _ := newTestRouter(t)
	message := map[string]any{
		"messageId": "m1",
		"role":      "user",
		"kind":      "message",
		"parts":     []map[string]any{{"kind": "text", "text": "# Hi"}},
	}
	_, envelope := doRPC(t, r, "tasks/send", map[string]any{"message": message})
	_, ok := envelope["result"].(map[string]any)
	assert.True(t, ok)
}

func TestRPCCancel(t *testing.T) {
	r, _ := newTestRouter(t)

	result := sendText(t, r, "Take a screenshot of https://example.com", nil)
	require.Equal(t, "input-required", result["status"].(map[string]any)["state"])

	taskID := result["id"].(string)
	_, envelope := doRPC(t, r, "tasks/cancel", map[string]any{"id": taskID})
	got := envelope["result"].(map[string]any)
	assert.Equal(t, "canceled", got["status"].(map[string]any)["state"])
}

func TestExtensionHeaderEcho(t *testing.T) {
	r, _ := newTestRouter(t)

	do := func(requested string) string {
		req := httptest.NewRequest(http.MethodPost, "/", rpcBody(t, "tasks/get", map[string]any{"id": "x"}))
		if requested != "" {
			req.Header.Set("X-A2A-Extensions", requested)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Header().Get("X-A2A-Extensions")
	}

	assert.Equal(t, a2a.ExtensionURIV02, do(""))
	assert.Equal(t, a2a.ExtensionURIV02, do(a2a.ExtensionURIV02))
	assert.Equal(t, a2a.ExtensionURIV01, do(a2a.ExtensionURIV01))
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/a2a", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Payment")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Payment-Response")
}

func TestRESTGetPricedSkillIs402(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, skill := range catalog.PricedSkills() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x402/"+skill.ID, nil))
		require.Equal(t, http.StatusPaymentRequired, w.Code, skill.ID)

		var body catalog.PaymentRequired
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Accepts, len(catalog.Networks), skill.ID)
	}
}

func TestRESTPostWithoutPaymentIs402(t *testing.T) {
	r, _ := newTestRouter(t)

	raw, _ := json.Marshal(map[string]any{"markdown": "# Doc"})
	req := httptest.NewRequest(http.MethodPost, "/x402/markdown-to-pdf", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestRESTPostMissingFieldIs400(t *testing.T) {
	r, _ := newTestRouter(t)

	raw, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/x402/screenshot", bytes.NewReader(raw))
	req.Header.Set("Payment-Signature", "0xFF")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "url")
}

func TestRESTPaidPDFSettles(t *testing.T) {
	r, st := newTestRouter(t)

	payment, _ := json.Marshal(map[string]any{
		"network": "eip155:8453", "from": "0xABC", "signature": "0xFF",
	})
	raw, _ := json.Marshal(map[string]any{"markdown": "# Invoice"})
	req := httptest.NewRequest(http.MethodPost, "/x402/markdown-to-pdf", bytes.NewReader(raw))
	req.Header.Set("X-Payment", string(payment))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	var paymentResp map[string]any
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("X-Payment-Response")), &paymentResp))
	assert.Equal(t, true, paymentResp["settled"])
	assert.NotEmpty(t, paymentResp["txHash"])

	assert.True(t, st.Sessions.Has("0xabc", catalog.SkillMarkdownToPDF))
	assert.Equal(t, 1, st.Events.CountByKind()[store.EventPaymentSettled])
}

func TestRESTPaidExecutorFailureIs500(t *testing.T) {
	r, _ := newTestRouter(t)

	// Screenshot backend is unconfigured in tests, so the executor errors
	// after the payment is accepted.
	raw, _ := json.Marshal(map[string]any{"url": "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/x402/screenshot", bytes.NewReader(raw))
	req.Header.Set("Payment-Signature", "0xFF")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRESTFreeSkillRendersHTML(t *testing.T) {
	r, _ := newTestRouter(t)

	raw, _ := json.Marshal(map[string]any{"markdown": "# Hello"})
	req := httptest.NewRequest(http.MethodPost, "/x402/markdown-to-html", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Hello</h1>")
}

func TestRESTUnknownSkillIs404(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x402/no-such-skill", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentCardDeclaresExtensions(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, a2a.ExtensionURIV01)
	assert.Contains(t, body, a2a.ExtensionURIV02)
	assert.Contains(t, body, "paymentConfiguration")

	var card map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	skills := card["skills"].([]any)
	assert.Len(t, skills, len(catalog.Skills))
}

func TestSelfTestAllPassed(t *testing.T) {
	r, _ := newTestRouter(t)

	// Run some traffic first so the log-based checks see real data.
	sendText(t, r, "# Hello", nil)
	sendText(t, r, "Take a screenshot of https://example.com", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a2a-x402-test", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AllPassed bool `json:"allPassed"`
		Results   []struct {
			Test   string `json:"test"`
			Pass   bool   `json:"pass"`
			Detail string `json:"detail"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.AllPassed, "self-test must pass: %+v", body.Results)
	assert.GreaterOrEqual(t, len(body.Results), 6)
}

func TestStatsAuthGate(t *testing.T) {
	r, _ := newTestRouter(t)
	sendText(t, r, "# Hello", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var public map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	assert.Equal(t, "restricted", public["detail"])
	assert.NotContains(t, public, "revenue")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var detailed map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detailed))
	assert.Contains(t, detailed, "revenue")
	assert.Contains(t, detailed, "tasksByState")

	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-API-Key", "sekrit")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detailed))
	assert.Contains(t, detailed, "revenue")

	// The bare key without the Bearer scheme is not an authorization.
	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "sekrit")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var bare map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bare))
	assert.Equal(t, "restricted", bare["detail"])
	assert.NotContains(t, bare, "revenue")
}

func TestStatsRevenueFromSettledEvents(t *testing.T) {
	r, _ := newTestRouter(t)

	payment, _ := json.Marshal(map[string]any{
		"network": "eip155:8453", "from": "0xABC", "signature": "0xFF",
	})
	raw, _ := json.Marshal(map[string]any{"markdown": "# Invoice"})
	req := httptest.NewRequest(http.MethodPost, "/x402/markdown-to-pdf", bytes.NewReader(raw))
	req.Header.Set("X-Payment", string(payment))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	statsReq := httptest.NewRequest(http.MethodGet, "/stats", nil)
	statsReq.Header.Set("X-API-Key", "sekrit")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, statsReq)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	revenue := stats["revenue"].(map[string]any)
	assert.EqualValues(t, 5000, revenue["atomic"])
	assert.Equal(t, "$0.005", revenue["usd"])
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "timestamp")
}

func TestChainsCatalogue(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x402/chains", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Chains []map[string]any `json:"chains"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Chains, len(catalog.Networks))
	gasless := 0
	for _, chain := range body.Chains {
		if chain["gasless"] == true {
			gasless++
		}
	}
	assert.Equal(t, 1, gasless)
}

func TestCompatMatrix(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a2a-x402-compat", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["paymentStates"], 6)
	assert.Len(t, body["taskStates"], 6)
	codes := body["errorCodes"].(map[string]any)
	assert.EqualValues(t, -32001, codes["taskNotFound"])
}

func TestBazaarDescriptor(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x402/bazaar", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		X402Version int              `json:"x402Version"`
		Items       []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.X402Version)
	assert.Len(t, body.Items, len(catalog.Skills))
}
