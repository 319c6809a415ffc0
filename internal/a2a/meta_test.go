package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetaFromNamespacedAndAliasKeys(t *testing.T) {
	pm := PaymentMetaFrom(map[string]any{
		MetaPaymentStatus: "payment-submitted",
		MetaSIWXWallet:    "0xAAA",
		MetaPaymentPayload: map[string]any{
			"network": "eip155:8453",
			"from":    "0xAAA",
		},
	})
	assert.Equal(t, PaymentStatusSubmitted, pm.Status)
	assert.Equal(t, "0xAAA", pm.SessionWallet)
	require.True(t, pm.HasPayload())
	assert.Equal(t, "eip155:8453", pm.Payload.Network)

	pm = PaymentMetaFrom(map[string]any{
		"paymentStatus": "payment-rejected",
		"sessionWallet": "0xBBB",
	})
	assert.Equal(t, PaymentStatusRejected, pm.Status)
	assert.Equal(t, "0xBBB", pm.SessionWallet)
}

func TestPaymentMetaLaterBagsWin(t *testing.T) {
	pm := PaymentMetaFrom(
		map[string]any{"paymentStatus": "payment-required"},
		map[string]any{"paymentStatus": "payment-submitted"},
	)
	assert.Equal(t, PaymentStatusSubmitted, pm.Status)
}

func TestPaymentMetaSignatureString(t *testing.T) {
	pm := PaymentMetaFrom(map[string]any{"paymentSignature": "0xFF"})
	require.True(t, pm.HasPayload())
	assert.Equal(t, "0xFF", pm.Payload.Signature)
}

func TestPayerLookupThroughNestedShapes(t *testing.T) {
	assert.Equal(t, "0xTOP", (&PaymentPayload{From: "0xTOP"}).Payer())
	assert.Equal(t, "0xIN", (&PaymentPayload{Payload: map[string]any{"from": "0xIN"}}).Payer())
	assert.Equal(t, "0xAUTH", (&PaymentPayload{
		Payload: map[string]any{"authorization": map[string]any{"from": "0xAUTH"}},
	}).Payer())
	var nilPayload *PaymentPayload
	assert.Equal(t, "", nilPayload.Payer())
}

func TestPartUnknownKindRoundTrips(t *testing.T) {
	raw := []byte(`{"kind":"video","text":""}`)
	var p Part
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "video", p.Kind)

	_, err := json.Marshal(p)
	assert.Error(t, err, "unknown kinds do not serialise")
}

func TestMessageTextPicksFirstTextPart(t *testing.T) {
	msg := &Message{Parts: []Part{
		DataPart(map[string]any{"x": 1}),
		TextPart("hello"),
		TextPart("ignored"),
	}}
	assert.Equal(t, "hello", msg.Text())
	assert.Equal(t, "", (&Message{}).Text())
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, TaskStateCompleted.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.True(t, TaskStateCanceled.Terminal())
	assert.False(t, TaskStateSubmitted.Terminal())
	assert.False(t, TaskStateWorking.Terminal())
	assert.False(t, TaskStateInputRequired.Terminal())
}
