package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fwojciec/docsrs"
	"github.com/fwojciec/docsrs/mcp"
)

// Run executes the lookup command.
func (c *LookupCmd) Run(deps *Dependencies) error {
	req := docsrs.LookupRequest{
		Name:    c.Crate,
		Version: c.Version,
		Refresh: c.Refresh,
	}
	if c.Kind != "" {
		kind, err := docsrs.ParseKind(c.Kind)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", docsrs.ErrorMessage(err))
			return err
		}
		req.Kind = kind
	}

	result, err := deps.Lookup.Lookup(deps.Ctx, req)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docsrs.ErrorMessage(err))
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mcp.NewCrateItems(result))
	}

	if len(result.Resources) == 0 {
		fmt.Fprintf(deps.Stdout, "No items found for %s.\n", result.Package)
		return nil
	}

	tw := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range result.Resources {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Kind, r.Name, r.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if result.Stale {
		fmt.Fprintf(deps.Stderr, "warning: docs.rs unavailable, showing results fetched %s\n", result.FetchedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}
