package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/store"
)

// handleAgentCard serves the static capability descriptor.
func (s *Server) handleAgentCard(c *gin.Context) {
	skills := make([]gin.H, 0, len(catalog.Skills))
	for _, sk := range catalog.Skills {
		entry := gin.H{
			"id":          sk.ID,
			"name":        sk.Name,
			"description": sk.Description,
			"inputModes":  sk.InputModes,
			"outputModes": sk.OutputModes,
		}
		if sk.RequiresPayment() {
			entry["price"] = catalog.FormatUSD(sk.PriceAtomic)
		} else {
			entry["price"] = "free"
		}
		skills = append(skills, entry)
	}

	networks := make([]gin.H, 0, len(catalog.Networks))
	for _, n := range catalog.Networks {
		networks = append(networks, gin.H{
			"network": n.CAIP2,
			"asset":   n.Asset,
			"gasless": n.Gasless,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"name":               "x402 Agent Gateway",
		"description":        "Pay-per-request agent skills over A2A and x402.",
		"url":                s.cfg.PublicURL,
		"version":            "1.0.0",
		"protocolVersion":    "0.2.0",
		"defaultInputModes":  []string{"text/plain"},
		"defaultOutputModes": []string{"text/plain", "application/json"},
		"capabilities": gin.H{
			"streaming":         false,
			"pushNotifications": false,
			"extensions": []gin.H{
				{"uri": a2a.ExtensionURIV01, "required": false},
				{"uri": a2a.ExtensionURIV02, "required": false},
				{
					"uri":      a2a.ExtensionURISIWX,
					"required": false,
					"params": gin.H{
						"paymentConfiguration": gin.H{
							"payTo":    s.cfg.PayTo,
							"networks": networks,
						},
					},
				},
			},
		},
		"skills": skills,
	})
}

// handleCatalogue serves the human-oriented price list.
func (s *Server) handleCatalogue(c *gin.Context) {
	services := make([]gin.H, 0, len(catalog.Skills))
	for _, sk := range catalog.Skills {
		price := "free"
		if sk.RequiresPayment() {
			price = catalog.FormatUSD(sk.PriceAtomic)
		}
		services = append(services, gin.H{
			"id":          sk.ID,
			"name":        sk.Name,
			"description": sk.Description,
			"price":       price,
			"endpoint":    "/x402/" + sk.ID,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"name":     "x402 Agent Gateway",
		"payTo":    s.cfg.PayTo,
		"services": services,
	})
}

// handleBazaar serves the machine-readable descriptor used by listing
// aggregators: per-skill schemas, chains, endpoint aliases.
func (s *Server) handleBazaar(c *gin.Context) {
	chains := make([]string, 0, len(catalog.Networks))
	for _, n := range catalog.Networks {
		chains = append(chains, n.CAIP2)
	}

	items := make([]gin.H, 0, len(catalog.Skills))
	for _, sk := range catalog.Skills {
		item := gin.H{
			"id":          sk.ID,
			"name":        sk.Name,
			"description": sk.Description,
			"inputSchema": skillInputSchema(sk.ID),
			"outputModes": sk.OutputModes,
			"chains":      chains,
			"endpoints": gin.H{
				"rest":    "/x402/" + sk.ID,
				"jsonrpc": "/a2a",
			},
		}
		if sk.RequiresPayment() {
			item["maxAmountRequired"] = sk.PriceAtomic
			item["price"] = catalog.FormatUSD(sk.PriceAtomic)
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"x402Version": 1,
		"items":       items,
	})
}

func skillInputSchema(skillID string) gin.H {
	switch skillID {
	case catalog.SkillScreenshot:
		return gin.H{
			"type":       "object",
			"properties": gin.H{"url": gin.H{"type": "string", "format": "uri"}},
			"required":   []string{"url"},
		}
	case catalog.SkillAIAnalysis:
		return gin.H{
			"type":       "object",
			"properties": gin.H{"text": gin.H{"type": "string"}},
			"required":   []string{"text"},
		}
	default:
		return gin.H{
			"type":       "object",
			"properties": gin.H{"markdown": gin.H{"type": "string"}},
			"required":   []string{"markdown"},
		}
	}
}

// handleChains serves the chain metadata catalogue.
func (s *Server) handleChains(c *gin.Context) {
	chains := make([]gin.H, 0, len(catalog.Networks))
	for _, n := range catalog.Networks {
		chains = append(chains, gin.H{
			"key":        n.Key,
			"network":    n.CAIP2,
			"asset":      n.Asset,
			"rpcUrl":     n.RPCURL,
			"gasless":    n.Gasless,
			"finalityMs": n.FinalityMs,
		})
	}
	c.JSON(http.StatusOK, gin.H{"chains": chains})
}

// handleCompat serves the compatibility matrix for client implementers.
func (s *Server) handleCompat(c *gin.Context) {
	states := make([]string, 0, len(a2a.AllPaymentStatuses))
	for _, ps := range a2a.AllPaymentStatuses {
		states = append(states, string(ps))
	}
	c.JSON(http.StatusOK, gin.H{
		"extensions":    []string{a2a.ExtensionURIV01, a2a.ExtensionURIV02, a2a.ExtensionURISIWX},
		"paymentStates": states,
		"taskStates": []string{
			string(a2a.TaskStateSubmitted), string(a2a.TaskStateWorking),
			string(a2a.TaskStateInputRequired), string(a2a.TaskStateCompleted),
			string(a2a.TaskStateFailed), string(a2a.TaskStateCanceled),
		},
		"errorCodes": gin.H{
			"invalidRequest": a2a.ErrCodeInvalidRequest,
			"methodNotFound": a2a.ErrCodeMethodNotFound,
			"invalidParams":  a2a.ErrCodeInvalidParams,
			"taskNotFound":   a2a.ErrCodeTaskNotFound,
		},
		"stateTransitions": []gin.H{
			{"from": "submitted", "to": []string{"working", "input-required", "canceled"}},
			{"from": "input-required", "to": []string{"submitted", "canceled"}},
			{"from": "working", "to": []string{"completed", "failed", "canceled"}},
		},
		"paymentRequirementFields": []string{
			"scheme", "network", "asset", "payTo",
			"maxAmountRequired", "maxTimeoutSeconds",
		},
	})
}

// handleStats serves aggregated counters. With STATS_API_KEY configured,
// the detailed view needs a bearer token or X-API-Key; everyone else gets
// the public summary.
func (s *Server) handleStats(c *gin.Context) {
	st := s.engine.State()
	total := st.Tasks.Total()
	sessions := st.Sessions.Len()

	if s.cfg.StatsAPIKey != "" && !s.statsAuthorized(c) {
		c.JSON(http.StatusOK, gin.H{
			"totalTasks": total,
			"sessions":   sessions,
			"detail":     "restricted",
		})
		return
	}

	byState := map[string]int{}
	for state, n := range st.Tasks.CountByState() {
		byState[string(state)] = n
	}
	byKind := map[string]int{}
	for kind, n := range st.Events.CountByKind() {
		byKind[string(kind)] = n
	}

	var revenueAtomic uint64
	for _, e := range st.Events.All() {
		if e.Kind != store.EventPaymentSettled {
			continue
		}
		if sk, ok := catalog.SkillByID(e.Skill); ok {
			revenueAtomic += sk.PriceAtomic
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"totalTasks":   total,
		"tasksByState": byState,
		"events": gin.H{
			"total":  st.Events.Len(),
			"byKind": byKind,
		},
		"sessions": sessions,
		"revenue": gin.H{
			"atomic": revenueAtomic,
			"usd":    catalog.FormatUSD(revenueAtomic),
		},
		"startedAt": s.startedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) statsAuthorized(c *gin.Context) bool {
	if key := c.GetHeader("X-API-Key"); key == s.cfg.StatsAPIKey {
		return true
	}
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	return strings.TrimPrefix(auth, "Bearer ") == s.cfg.StatsAPIKey
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
