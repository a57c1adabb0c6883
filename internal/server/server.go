// Package server exposes the compliance tools over MCP: line-delimited JSON-RPC
// on stdio, or SSE sessions on HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golovatskygroup/compliance-mcp/internal/compliance"
	"github.com/golovatskygroup/compliance-mcp/internal/logging"
	"github.com/golovatskygroup/compliance-mcp/pkg/mcp"
)

const (
	ServerName    = "fintech-compliance"
	ServerVersion = "1.0.0"
)

// Server answers MCP requests with the dispatcher.
type Server struct {
	dispatcher *compliance.Dispatcher
	logger     *slog.Logger
}

// New creates a server around d. A nil logger discards output.
func New(d *compliance.Dispatcher, logger *slog.Logger) *Server {
	return &Server{
		dispatcher: d,
		logger:     logging.Component(logger, "server"),
	}
}

// Handle answers one request. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req *mcp.Request) *mcp.Response {
	if req.IsNotification() {
		if req.Method != "notifications/initialized" {
			s.logger.Debug("ignoring notification", "method", req.Method)
		}
		return nil
	}
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "ping":
		return s.handlePing(req)
	default:
		return mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *mcp.Request) *mcp.Response {
	result := mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		},
		ServerInfo: mcp.ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Instructions: s.buildInstructions(),
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleListTools(req *mcp.Request) *mcp.Response {
	descs := s.dispatcher.Tools()
	tools := make([]mcp.Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}

	resp, err := mcp.NewResponse(req.ID, mcp.ListToolsResult{Tools: tools})
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}

	rep, err := s.dispatcher.InvokeJSON(ctx, params.Name, params.Arguments)
	if err != nil {
		var unknown *compliance.UnknownToolError
		switch {
		case errors.As(err, &unknown):
			return mcp.NewErrorResponseWithData(req.ID, mcp.InvalidParams, err.Error(), map[string]any{
				"suggestions": unknown.Suggestions,
			})
		case errors.Is(err, compliance.ErrInvalidArguments):
			return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, err.Error())
		default:
			return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
		}
	}

	resp, err := mcp.NewResponse(req.ID, mcp.TextResult(rep.Text, rep.Failed()))
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handlePing(req *mcp.Request) *mcp.Response {
	resp, _ := mcp.NewResponse(req.ID, map[string]any{})
	return resp
}

func (s *Server) buildInstructions() string {
	var sb strings.Builder
	sb.WriteString("Fintech compliance tools. Each call returns a markdown report.\n\n")
	for _, d := range s.dispatcher.Tools() {
		names := make([]string, 0, len(d.Parameters))
		for _, p := range d.Parameters {
			names = append(names, p.Name)
		}
		sb.WriteString(fmt.Sprintf("- %s(%s): %s\n", d.Name, strings.Join(names, ", "), d.Description))
	}
	return sb.String()
}
