package a2a

import "encoding/json"

// Namespaced metadata keys carried on message metadata bags. The plain
// aliases are accepted on input because several client SDKs send them
// un-namespaced; the gateway always writes the namespaced form.
const (
	MetaPaymentStatus   = "x402.payment.status"
	MetaPaymentPayload  = "x402.payment.payload"
	MetaPaymentRequired = "x402.payment.required"
	MetaPaymentReceipts = "x402.payment.receipts"
	MetaSIWXWallet      = "x402.siwx.wallet"
	MetaPayer           = "x402.payer"

	// MetaPaymentRequiredCompat mirrors MetaPaymentRequired under the
	// legacy camel-case key that older clients read.
	MetaPaymentRequiredCompat = "x402PaymentRequired"

	metaAliasStatus    = "paymentStatus"
	metaAliasPayload   = "paymentPayload"
	metaAliasSignature = "paymentSignature"
	metaAliasWallet    = "sessionWallet"
	metaAliasPayer     = "payer"
)

// Task metadata keys written by the state machine.
const (
	TaskMetaSkill         = "skill"
	TaskMetaAccepts       = "accepts"
	TaskMetaRequest       = "request"
	TaskMetaReceipts      = "receipts"
	TaskMetaTransactionID = "txHash"
	TaskMetaPaymentStatus = "paymentStatus"
)

// PaymentMeta is the typed view over the flat payment metadata keys: the
// status variant plus the optional payload and wallet variants.
type PaymentMeta struct {
	Status        PaymentStatus
	Payload       *PaymentPayload
	SessionWallet string
	Payer         string
}

// HasPayload reports whether a signed payment payload is attached.
func (pm PaymentMeta) HasPayload() bool { return pm.Payload != nil }

// PaymentMetaFrom extracts the typed payment view from one or more flat
// metadata bags. Later bags win on conflicts, which lets callers layer
// request-level metadata over message-level metadata.
func PaymentMetaFrom(bags ...map[string]any) PaymentMeta {
	var pm PaymentMeta
	for _, md := range bags {
		if md == nil {
			continue
		}
		if s := stringAt(md, MetaPaymentStatus, metaAliasStatus); s != "" {
			pm.Status = PaymentStatus(s)
		}
		if w := stringAt(md, MetaSIWXWallet, metaAliasWallet); w != "" {
			pm.SessionWallet = w
		}
		if p := stringAt(md, MetaPayer, metaAliasPayer); p != "" {
			pm.Payer = p
		}
		if raw, ok := firstOf(md, MetaPaymentPayload, metaAliasPayload, metaAliasSignature); ok {
			if pp := decodePayload(raw); pp != nil {
				pm.Payload = pp
			}
		}
	}
	return pm
}

func stringAt(md map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := md[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstOf(md map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := md[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// decodePayload re-marshals an untyped metadata value into PaymentPayload.
// A bare string is treated as an opaque signature from the payer.
func decodePayload(v any) *PaymentPayload {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return &PaymentPayload{Signature: t}
	case map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		var pp PaymentPayload
		if err := json.Unmarshal(raw, &pp); err != nil {
			return nil
		}
		return &pp
	case *PaymentPayload:
		return t
	case PaymentPayload:
		return &t
	}
	return nil
}
