package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentmesh/x402-gateway/internal/a2a"
)

// handleRPC is the JSON-RPC 2.0 dispatcher mounted at / and /a2a.
// Protocol-level failures surface through the error channel of the
// envelope; the HTTP status stays 200.
func (s *Server) handleRPC(c *gin.Context) {
	echoExtensions(c)

	var req a2a.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(nil, a2a.NewError(a2a.ErrCodeInvalidRequest, "malformed JSON-RPC envelope")))
		return
	}
	if req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, a2a.NewError(a2a.ErrCodeInvalidRequest, `jsonrpc must be "2.0"`)))
		return
	}

	switch req.Method {
	case "message/send", "tasks/send":
		s.rpcMessageSend(c, &req)
	case "tasks/get":
		s.rpcTaskGet(c, &req)
	case "tasks/cancel":
		s.rpcTaskCancel(c, &req)
	default:
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, a2a.NewError(a2a.ErrCodeMethodNotFound, "unknown method: "+req.Method)))
	}
}

func (s *Server) rpcMessageSend(c *gin.Context, req *a2a.Request) {
	var params a2a.MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, a2a.NewError(a2a.ErrCodeInvalidParams, "invalid params")))
		return
	}
	if len(params.Message.Parts) == 0 {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, a2a.NewError(a2a.ErrCodeInvalidParams, "message.parts is required")))
		return
	}
	task, rpcErr := s.engine.Handle(c.Request.Context(), &params.Message, params.Metadata)
	if rpcErr != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, rpcErr))
		return
	}
	c.JSON(http.StatusOK, a2a.ResultResponse(req.ID, task))
}

func (s *Server) rpcTaskGet(c *gin.Context, req *a2a.Request) {
	id, rpcErr := taskIDFrom(req)
	if rpcErr != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, rpcErr))
		return
	}
	task, rpcErr := s.engine.Get(id)
	if rpcErr != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, rpcErr))
		return
	}
	c.JSON(http.StatusOK, a2a.ResultResponse(req.ID, task))
}

func (s *Server) rpcTaskCancel(c *gin.Context, req *a2a.Request) {
	id, rpcErr := taskIDFrom(req)
	if rpcErr != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, rpcErr))
		return
	}
	task, rpcErr := s.engine.Cancel(id)
	if rpcErr != nil {
		c.JSON(http.StatusOK, a2a.ErrorResponse(req.ID, rpcErr))
		return
	}
	c.JSON(http.StatusOK, a2a.ResultResponse(req.ID, task))
}

func taskIDFrom(req *a2a.Request) (string, *a2a.Error) {
	var params a2a.TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		return "", a2a.NewError(a2a.ErrCodeInvalidParams, "params.id is required")
	}
	return params.ID, nil
}
