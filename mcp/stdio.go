package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
)

// DefaultConcurrency is how many tool calls the stdio transport runs at once.
const DefaultConcurrency = 8

// ServeStdio reads newline-delimited JSON-RPC messages from r and writes
// replies to w, one per line. Tool calls run on a worker pool so a slow
// lookup does not block pings; replies may be written out of order.
// It returns nil once r is exhausted and ctx.Err() once ctx is done, even
// while a read from r is still pending.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	for _, opt := range []server.StdioOption{
		server.WithErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
		server.WithWorkerPoolSize(DefaultConcurrency),
	} {
		opt(stdio)
	}
	return stdio.Listen(ctx, r, w)
}
