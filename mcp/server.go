// Package mcp exposes docsrs.LookupService as a Model Context Protocol
// server over stdio or Server-Sent Events. Protocol handling is delegated
// to mark3labs/mcp-go; this package only registers the tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fwojciec/docsrs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerName is reported to clients during initialization.
const ServerName = "docsrs-mcp"

// ToolCrateItems is the name of the tool listing a crate's items.
const ToolCrateItems = "crate_items"

// CrateItems is the JSON document returned by the crate_items tool.
type CrateItems struct {
	CrateName string            `json:"crate_name"`
	Version   string            `json:"version"`
	SourceURL string            `json:"source_url"`
	FetchedAt time.Time         `json:"fetched_at"`
	Stale     bool              `json:"stale"`
	Count     int               `json:"count"`
	Items     []docsrs.Resource `json:"items"`
}

// NewCrateItems builds the tool document for a lookup result.
func NewCrateItems(result *docsrs.LookupResult) CrateItems {
	return CrateItems{
		CrateName: result.Package.Name,
		Version:   result.Package.Version,
		SourceURL: result.SourceURL,
		FetchedAt: result.FetchedAt,
		Stale:     result.Stale,
		Count:     len(result.Resources),
		Items:     result.Resources,
	}
}

// Server adapts a LookupService to an MCP server. It holds no lookup logic
// of its own.
type Server struct {
	lookup   docsrs.LookupService
	logger   *slog.Logger
	mcp      *server.MCPServer
	sessions atomic.Int64
}

// NewServer creates a Server registering the crate_items tool. A nil
// logger discards output.
func NewServer(lookup docsrs.LookupService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{lookup: lookup, logger: logger}

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		s.sessions.Add(1)
		s.logger.Debug("session opened", "session", session.SessionID())
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		s.sessions.Add(-1)
		s.logger.Debug("session closed", "session", session.SessionID())
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		s.logger.Warn("request failed", "method", string(method), "err", err)
	})

	s.mcp = server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithHooks(hooks),
		server.WithRecovery(),
	)
	s.mcp.AddTool(crateItemsTool(), s.crateItems)
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Sessions returns the number of connected clients across transports.
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

func crateItemsTool() mcp.Tool {
	kinds := make([]string, 0, len(docsrs.Kinds()))
	for _, k := range docsrs.Kinds() {
		kinds = append(kinds, string(k))
	}
	return mcp.NewTool(ToolCrateItems,
		mcp.WithDescription("List the documented items (structs, enums, traits, functions, modules, macros, type aliases and constants) of a Rust crate on docs.rs, with links to their documentation."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithString("crate_name",
			mcp.Required(),
			mcp.Description("Name of the crate, e.g. serde"),
		),
		mcp.WithString("version",
			mcp.Description("Crate version; defaults to latest"),
		),
		mcp.WithString("kind",
			mcp.Description("Only return items of this kind"),
			mcp.Enum(kinds...),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass the cache and fetch the page again"),
		),
	)
}

// crateItems reports lookup failures as tool errors so the model can read
// them. Only cancellation surfaces as a protocol error.
func (s *Server) crateItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("crate_name")
	if err != nil {
		return toolError(docsrs.Errorf(docsrs.EINVALID, "%s", err.Error())), nil
	}
	lookup := docsrs.LookupRequest{
		Name:    name,
		Version: req.GetString("version", ""),
		Refresh: req.GetBool("refresh", false),
	}
	if kind := req.GetString("kind", ""); kind != "" {
		k, err := docsrs.ParseKind(kind)
		if err != nil {
			return toolError(err), nil
		}
		lookup.Kind = k
	}

	result, err := s.lookup.Lookup(ctx, lookup)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		if docsrs.ErrorCode(err) == docsrs.EINTERNAL {
			s.logger.Error("crate_items failed", "crate", name, "err", err)
		}
		return toolError(err), nil
	}
	return mcp.NewToolResultJSON(NewCrateItems(result))
}

// toolError renders err as "<code>: <message>", flagging failures worth
// retrying.
func toolError(err error) *mcp.CallToolResult {
	text := docsrs.ErrorCode(err) + ": " + docsrs.ErrorMessage(err)
	if docsrs.IsRetryable(err) {
		text += " (temporary, retry later)"
	}
	return mcp.NewToolResultError(text)
}
