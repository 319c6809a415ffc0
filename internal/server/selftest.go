package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/store"
)

// requirementsSchema is the wire contract every accepts entry must satisfy.
const requirementsSchema = `{
  "type": "object",
  "required": ["version", "accepts", "resource", "extensions"],
  "properties": {
    "version": {"type": "string"},
    "resource": {"type": "string"},
    "accepts": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["scheme", "network", "asset", "payTo", "maxAmountRequired", "maxTimeoutSeconds"],
        "properties": {
          "scheme": {"type": "string", "enum": ["exact"]},
          "network": {"type": "string", "pattern": "^eip155:[0-9]+$"},
          "asset": {"type": "string"},
          "payTo": {"type": "string"},
          "maxAmountRequired": {"type": "string", "pattern": "^[0-9]+$"},
          "maxTimeoutSeconds": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

type selfTestEntry struct {
	Test   string `json:"test"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail"`
}

// handleSelfTest runs the conformance checks against the live stores and
// catalogues and reports one entry per check.
func (s *Server) handleSelfTest(c *gin.Context) {
	results := []selfTestEntry{
		s.testReceiptsOnCompletedPaid(),
		s.testRequiredPrecedesSettled(),
		s.testRequirementsSchema(),
		s.testAcceptsPerNetwork(),
		s.testStateSet(),
		s.testErrorCodeSet(),
	}
	allPassed := true
	for _, r := range results {
		if !r.Pass {
			allPassed = false
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"allPassed": allPassed, "results": results})
}

// Every completed paid task must carry a success receipt with a
// transaction id.
func (s *Server) testReceiptsOnCompletedPaid() selfTestEntry {
	entry := selfTestEntry{Test: "completed-paid-tasks-have-success-receipt", Pass: true}
	checked := 0
	for _, task := range s.engine.State().Tasks.All() {
		if task.Status.State != a2a.TaskStateCompleted {
			continue
		}
		skillID, _ := task.Metadata[a2a.TaskMetaSkill].(string)
		sk, ok := catalog.SkillByID(skillID)
		if !ok || !sk.RequiresPayment() {
			continue
		}
		// Session-granted reuse completes without a receipt; only tasks
		// that actually settled are in scope.
		tx, _ := task.Metadata[a2a.TaskMetaTransactionID].(string)
		receipts, hasReceipts := task.Metadata[a2a.TaskMetaReceipts].([]a2a.Receipt)
		if !hasReceipts || len(receipts) == 0 {
			continue
		}
		checked++
		if !receipts[0].Success || tx == "" {
			entry.Pass = false
			entry.Detail = "task " + task.ID + " completed without a success receipt"
			return entry
		}
	}
	entry.Detail = fmt.Sprintf("%d settled tasks checked", checked)
	return entry
}

// payment-received always precedes payment-settled for the same task.
func (s *Server) testRequiredPrecedesSettled() selfTestEntry {
	entry := selfTestEntry{Test: "received-precedes-settled", Pass: true, Detail: "log ordering holds"}
	received := map[string]bool{}
	for _, e := range s.engine.State().Events.All() {
		switch e.Kind {
		case store.EventPaymentReceived:
			received[e.TaskID] = true
		case store.EventPaymentSettled:
			if !received[e.TaskID] {
				entry.Pass = false
				entry.Detail = "settlement without prior receipt for task " + e.TaskID
				return entry
			}
		}
	}
	return entry
}

// Each priced skill's requirements must validate against the wire schema.
func (s *Server) testRequirementsSchema() selfTestEntry {
	entry := selfTestEntry{Test: "requirements-match-schema", Pass: true, Detail: "all priced skills validate"}
	schema := gojsonschema.NewStringLoader(requirementsSchema)
	for _, sk := range catalog.PricedSkills() {
		doc := gojsonschema.NewGoLoader(s.engine.Builder().Build(sk))
		res, err := gojsonschema.Validate(schema, doc)
		if err != nil {
			entry.Pass = false
			entry.Detail = sk.ID + ": " + err.Error()
			return entry
		}
		if !res.Valid() {
			entry.Pass = false
			entry.Detail = sk.ID + ": " + res.Errors()[0].String()
			return entry
		}
	}
	return entry
}

// The accepts list covers every enabled network, once.
func (s *Server) testAcceptsPerNetwork() selfTestEntry {
	entry := selfTestEntry{Test: "accepts-covers-networks", Pass: true}
	want := len(catalog.Networks)
	for _, sk := range catalog.PricedSkills() {
		req := s.engine.Builder().Build(sk)
		if req == nil || len(req.Accepts) != want {
			entry.Pass = false
			entry.Detail = fmt.Sprintf("%s: accepts length != %d", sk.ID, want)
			return entry
		}
	}
	entry.Detail = fmt.Sprintf("%d networks per priced skill", want)
	return entry
}

// The six payment substates are all declared.
func (s *Server) testStateSet() selfTestEntry {
	entry := selfTestEntry{Test: "payment-state-set-complete", Pass: true, Detail: "6 substates declared"}
	if len(a2a.AllPaymentStatuses) != 6 {
		entry.Pass = false
		entry.Detail = fmt.Sprintf("expected 6 substates, have %d", len(a2a.AllPaymentStatuses))
	}
	return entry
}

// The protocol error codes are all declared.
func (s *Server) testErrorCodeSet() selfTestEntry {
	entry := selfTestEntry{Test: "error-code-set-complete", Pass: true, Detail: "4 codes declared"}
	codes := []int{a2a.ErrCodeInvalidRequest, a2a.ErrCodeMethodNotFound, a2a.ErrCodeInvalidParams, a2a.ErrCodeTaskNotFound}
	seen := map[int]bool{}
	for _, code := range codes {
		if seen[code] {
			entry.Pass = false
			entry.Detail = fmt.Sprintf("duplicate error code %d", code)
			return entry
		}
		seen[code] = true
	}
	return entry
}
