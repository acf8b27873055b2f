package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/docsrs/mcp"
)

// shutdownTimeout bounds how long in-flight HTTP requests may finish.
const shutdownTimeout = 5 * time.Second

func newServer(deps *Dependencies) *mcp.Server {
	return mcp.NewServer(deps.Lookup, version, deps.Logger)
}

// Run executes the stdio command.
func (c *StdioCmd) Run(deps *Dependencies) error {
	deps.Logger.Info("serving MCP over stdio")
	return newServer(deps).ServeStdio(deps.Ctx, deps.Stdin, deps.Stdout)
}

// Run executes the sse command.
func (c *SSECmd) Run(deps *Dependencies) error {
	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           mcp.NewSSEHandler(newServer(deps)),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return deps.Ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("serving MCP over SSE", "addr", c.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-deps.Ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
