package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docsrs"
	"github.com/fwojciec/docsrs/cache"
	"github.com/fwojciec/docsrs/goquery"
	"github.com/fwojciec/docsrs/htmltomarkdown"
	docshttp "github.com/fwojciec/docsrs/http"
	"github.com/fwojciec/docsrs/lookup"
	docslog "github.com/fwojciec/docsrs/slog"
	"github.com/fwojciec/docsrs/sqlite"
)

// version is set via build flags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Snapshot database, opened when a database path is configured.
	DB *sqlite.DB

	// Cache shared by all lookups of this run.
	Cache *cache.Cache

	// Fetcher replaces the HTTP fetcher when set. Used for end-to-end testing.
	Fetcher docsrs.Fetcher
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docsrs-mcp"),
		kong.Description("Look up Rust crate documentation on docs.rs, as an MCP server or from the command line"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docsrs-mcp --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// stdout carries the stdio transport, so logs always go to stderr.
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Logger = logger

	svc, err := m.wire(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	deps.Lookup = docslog.NewLoggingLookupService(svc, logger)
	defer func() {
		st := m.Cache.Stats()
		logger.Debug("cache stats", "hits", st.Hits, "misses", st.Misses, "shared", st.Shared, "stale", st.StaleServed)
	}()

	return kongCtx.Run(deps)
}

// wire builds the lookup pipeline: rate-limited single-attempt fetches with
// retries, the rustdoc parser and the cache, plus the snapshot store when
// a database is configured.
func (m *Main) wire(ctx context.Context, cli *CLI, logger *slog.Logger) (*lookup.Service, error) {
	fetcher := m.Fetcher
	if fetcher == nil {
		opts := []docshttp.Option{
			docshttp.WithTimeout(cli.FetchTimeout),
			docshttp.WithMaxBodySize(cli.MaxBodySize),
		}
		if cli.RateLimit > 0 {
			opts = append(opts, docshttp.WithRateLimiter(docshttp.NewDomainLimiter(cli.RateLimit, 1)))
		}
		fetcher = docshttp.NewFetcher(opts...)
	}
	// Resolving redirects needs the real transport, so fakes opt in by
	// implementing docsrs.Resolver themselves.
	resolver, _ := fetcher.(docsrs.Resolver)
	fetcher = docslog.NewLoggingFetcher(fetcher, logger)
	fetcher = docshttp.NewRetryFetcher(fetcher, cli.RetryDelays, logger)

	parser := goquery.NewParser(goquery.WithConverter(htmltomarkdown.NewConverter()))

	m.Cache = cache.New(cache.WithTTL(cli.CacheTTL))

	svc := &lookup.Service{
		Fetcher:  fetcher,
		Resolver: resolver,
		Parser:   docslog.NewLoggingParser(parser, logger),
		Cache:    m.Cache,
		BaseURL:  cli.BaseURL,
		Logger:   logger,
	}

	if cli.DB == "" {
		return svc, nil
	}

	m.DB = sqlite.NewDB(cli.DB)
	if err := m.DB.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", cli.DB, err)
	}
	store := sqlite.NewResultStore(m.DB)
	svc.Store = store

	if err := warmCache(ctx, store, m.Cache, logger); err != nil {
		// A broken snapshot store only costs the warm start.
		logger.Warn("failed to load snapshots", "err", err)
	}

	return svc, nil
}

// warmCache seeds c with the stored snapshots. Seeded entries expire
// relative to their original fetch time.
func warmCache(ctx context.Context, store docsrs.ResultStore, c *cache.Cache, logger *slog.Logger) error {
	results, err := store.FindResults(ctx)
	if err != nil {
		return err
	}
	var seeded int
	for _, r := range results {
		if c.Seed(r) {
			seeded++
		}
	}
	logger.Debug("cache warmed", "snapshots", len(results), "seeded", seeded)
	return nil
}
