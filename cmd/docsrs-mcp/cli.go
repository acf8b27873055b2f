package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/docsrs"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Lookup docsrs.LookupService
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	BaseURL      string          `name:"base-url" env:"DOCS_RS_URL" default:"https://docs.rs" help:"Documentation site to look crates up on"`
	CacheTTL     time.Duration   `name:"cache-ttl" env:"DOCSRS_CACHE_TTL" default:"1h" help:"How long lookup results are served from cache"`
	FetchTimeout time.Duration   `name:"fetch-timeout" env:"DOCSRS_FETCH_TIMEOUT" default:"10s" help:"Timeout for a single page fetch"`
	MaxBodySize  int64           `name:"max-body-size" env:"DOCSRS_MAX_BODY_SIZE" default:"10485760" help:"Largest page accepted, in bytes"`
	RetryDelays  []time.Duration `name:"retry-delays" env:"DOCSRS_RETRY_DELAYS" default:"500ms,1s,2s" help:"Backoff between retries of transient fetch failures"`
	RateLimit    float64         `name:"rate-limit" env:"DOCSRS_RATE_LIMIT" default:"5" help:"Fetches per second per host (0 disables limiting)"`
	DB           string          `name:"db" env:"DOCSRS_DB" help:"SQLite file keeping lookup snapshots across restarts"`
	Verbose      bool            `short:"v" help:"Enable debug logging"`

	Stdio  StdioCmd  `cmd:"" help:"Serve MCP over stdin/stdout"`
	SSE    SSECmd    `cmd:"" name:"sse" help:"Serve MCP over HTTP Server-Sent Events"`
	Lookup LookupCmd `cmd:"" help:"Look up a crate's documented items"`
}

// StdioCmd is the "stdio" subcommand.
type StdioCmd struct{}

// SSECmd is the "sse" subcommand.
type SSECmd struct {
	Addr string `env:"DOCSRS_ADDR" default:"127.0.0.1:8080" help:"Address to listen on"`
}

// LookupCmd is the "lookup" subcommand.
type LookupCmd struct {
	Crate   string `arg:"" help:"Crate name"`
	Version string `help:"Crate version (default latest)"`
	Kind    string `short:"k" help:"Only list items of this kind"`
	Refresh bool   `help:"Bypass the cache"`
	JSON    bool   `name:"json" help:"Print the result as JSON"`
}
