// Package facilitator abstracts payment verification and settlement behind
// a narrow interface. The gateway itself never checks signatures: the local
// implementation trusts well-formed payloads and synthesises settlement
// identifiers, while the remote implementation defers to an out-of-process
// facilitator service.
package facilitator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
)

// ErrMalformedPayload is returned when the payment payload is missing the
// fields even a trusting verifier needs.
var ErrMalformedPayload = errors.New("malformed payment payload")

// Facilitator verifies a payment payload against requirements and settles
// it, returning the settlement transaction identifier.
type Facilitator interface {
	VerifyAndSettle(ctx context.Context, payload *a2a.PaymentPayload, requirements *catalog.PaymentRequired) (string, error)
}

// Local accepts any well-formed payload and synthesises a fresh 32-byte
// transaction identifier. It is the default for test-mode deployments.
type Local struct{}

// VerifyAndSettle checks payload shape and network membership, then returns
// a random 0x-prefixed 32-byte hex identifier.
func (Local) VerifyAndSettle(_ context.Context, payload *a2a.PaymentPayload, requirements *catalog.PaymentRequired) (string, error) {
	if payload == nil {
		return "", ErrMalformedPayload
	}
	if payload.Network != "" && requirements != nil && !requirements.AcceptsNetwork(payload.Network) {
		return "", fmt.Errorf("%w: network %s not accepted", ErrMalformedPayload, payload.Network)
	}
	var tx [32]byte
	if _, err := rand.Read(tx[:]); err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}
	return hexutil.Encode(tx[:]), nil
}
