package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
)

func testRequirements() *catalog.PaymentRequired {
	b := &catalog.Builder{PayTo: "0xPAYEE"}
	skill, _ := catalog.SkillByID(catalog.SkillScreenshot)
	return b.Build(skill)
}

func TestLocalSettlesWellFormedPayload(t *testing.T) {
	tx, err := Local{}.VerifyAndSettle(context.Background(), &a2a.PaymentPayload{
		Network: "eip155:8453", From: "0xABC", Signature: "0xFF",
	}, testRequirements())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx, "0x"))
	assert.Len(t, tx, 66, "0x plus 32 bytes of hex")

	tx2, err := Local{}.VerifyAndSettle(context.Background(), &a2a.PaymentPayload{
		Network: "eip155:8453",
	}, testRequirements())
	require.NoError(t, err)
	assert.NotEqual(t, tx, tx2, "each settlement gets a fresh id")
}

func TestLocalRejectsMalformedPayload(t *testing.T) {
	_, err := Local{}.VerifyAndSettle(context.Background(), nil, testRequirements())
	assert.Error(t, err)

	_, err = Local{}.VerifyAndSettle(context.Background(), &a2a.PaymentPayload{
		Network: "eip155:1",
	}, testRequirements())
	assert.Error(t, err, "network outside the accepts list is refused")
}

func TestRemoteVerifyThenSettle(t *testing.T) {
	var paths []string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/verify":
			_ = json.NewEncoder(w).Encode(map[string]any{"isValid": true, "payer": "0xABC"})
		case "/settle":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "transaction": "0xDEAD"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backend.Close()

	remote := NewRemote(RemoteConfig{URL: backend.URL})
	tx, err := remote.VerifyAndSettle(context.Background(), &a2a.PaymentPayload{
		Network: "eip155:8453", From: "0xABC",
	}, testRequirements())
	require.NoError(t, err)
	assert.Equal(t, "0xDEAD", tx)
	assert.Equal(t, []string{"/verify", "/settle"}, paths)
}

func TestRemoteInvalidPayment(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"isValid": false, "invalidReason": "bad signature"})
	}))
	defer backend.Close()

	remote := NewRemote(RemoteConfig{URL: backend.URL})
	_, err := remote.VerifyAndSettle(context.Background(), &a2a.PaymentPayload{Network: "eip155:8453"}, testRequirements())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad signature")
}

func TestRemoteSettleFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			_ = json.NewEncoder(w).Encode(map[string]any{"isValid": true})
		case "/settle":
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "errorReason": "insufficient funds"})
		}
	}))
	defer backend.Close()

	remote := NewRemote(RemoteConfig{URL: backend.URL})
	_, err := remote.VerifyAndSettle(context.Background(), &a2a.PaymentPayload{Network: "eip155:8453"}, testRequirements())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}
