package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentmesh/x402-gateway/internal/a2a"
)

// RequirementsVersion is the payment-requirements object version.
const RequirementsVersion = "2.0"

// DefaultMaxTimeoutSeconds is the validity window for a payment authorization.
const DefaultMaxTimeoutSeconds = 600

// Accept is one entry of the accepts list: a network the server will take
// payment on, with the exact amount in atomic units.
type Accept struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Price             string `json:"price,omitempty"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Gasless           bool   `json:"gasless,omitempty"`
}

// PaymentRequired is the canonical payment-requirements object returned in
// 402 bodies and cached on input-required tasks.
type PaymentRequired struct {
	Version     string         `json:"version"`
	Accepts     []Accept       `json:"accepts"`
	Resource    string         `json:"resource"`
	Description string         `json:"description,omitempty"`
	Facilitator string         `json:"facilitator,omitempty"`
	Extensions  map[string]any `json:"extensions"`
}

// Builder derives payment requirements from the static catalogues plus the
// deployment's payee wallet and facilitator endpoint.
type Builder struct {
	PayTo          string
	FacilitatorURL string
}

// CapabilityExtensions is the fixed descriptor advertised on every
// requirements object: wallet-session auth and idempotent payments.
func CapabilityExtensions() map[string]any {
	return map[string]any{
		"siwxSessionAuth": map[string]any{
			"uri":         a2a.ExtensionURISIWX,
			"description": "Wallets that settled a payment for a skill reuse it without repaying.",
		},
		"idempotentPayment": map[string]any{
			"enabled":     true,
			"description": "Resubmitting a payment for a task past input-required is a no-op.",
		},
	}
}

// Build returns the requirements for a skill, or nil for free skills.
// Output is deterministic: one accepts entry per catalogue network, in
// catalogue order.
func (b *Builder) Build(skill Skill) *PaymentRequired {
	if !skill.RequiresPayment() {
		return nil
	}
	accepts := make([]Accept, 0, len(Networks))
	for _, n := range Networks {
		accepts = append(accepts, Accept{
			Scheme:            "exact",
			Network:           n.CAIP2,
			Price:             FormatUSD(skill.PriceAtomic),
			Asset:             n.Asset,
			PayTo:             b.PayTo,
			MaxAmountRequired: strconv.FormatUint(skill.PriceAtomic, 10),
			MaxTimeoutSeconds: DefaultMaxTimeoutSeconds,
			Gasless:           n.Gasless,
		})
	}
	return &PaymentRequired{
		Version:     RequirementsVersion,
		Accepts:     accepts,
		Resource:    "/" + skill.ID,
		Description: skill.Description,
		Facilitator: b.FacilitatorURL,
		Extensions:  CapabilityExtensions(),
	}
}

// AcceptsNetwork reports whether the requirements accept payment on the
// given caip2 network.
func (r *PaymentRequired) AcceptsNetwork(caip2 string) bool {
	if r == nil {
		return false
	}
	for _, a := range r.Accepts {
		if a.Network == caip2 {
			return true
		}
	}
	return false
}

// FormatUSD renders atomic stablecoin units (6 decimals) as a dollar price
// string, keeping at least two decimal places: 10000 -> "$0.01",
// 5000 -> "$0.005".
func FormatUSD(atomic uint64) string {
	whole := atomic / 1_000_000
	frac := atomic % 1_000_000
	s := fmt.Sprintf("%06d", frac)
	s = strings.TrimRight(s, "0")
	if len(s) < 2 {
		s = (s + "00")[:2]
	}
	return fmt.Sprintf("$%d.%s", whole, s)
}
