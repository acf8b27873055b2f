package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docsrs"
)

// Compile-time interface verification.
var _ docsrs.ResultStore = (*ResultStore)(nil)

// ResultStore implements docsrs.ResultStore using SQLite.
type ResultStore struct {
	db *DB
}

// NewResultStore creates a new ResultStore.
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

// hashResources computes an xxHash over the resources in order.
func hashResources(resources []docsrs.Resource) string {
	d := xxhash.New()
	for _, r := range resources {
		_, _ = d.WriteString(r.Name)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(string(r.Kind))
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(r.URL)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(r.Description)
		_, _ = d.WriteString("\x1e")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// SaveResult creates or replaces the snapshot for result.Package.
// Resource rows are only rewritten when their content changed.
func (s *ResultStore) SaveResult(ctx context.Context, result *docsrs.LookupResult) error {
	if result == nil || result.Package.Name == "" {
		return docsrs.Errorf(docsrs.EINVALID, "result package required")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	id := result.Package
	hash := hashResources(result.Resources)

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT content_hash FROM lookup_results WHERE name = ? AND version = ?
	`, id.Name, id.Version).Scan(&existing)
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return err
	}

	if found {
		_, err = tx.ExecContext(ctx, `
			UPDATE lookup_results
			SET source_url = ?, dropped = ?, content_hash = ?, fetched_at = ?
			WHERE name = ? AND version = ?
		`, result.SourceURL, result.Dropped, hash, formatTimestamp(result.FetchedAt), id.Name, id.Version)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lookup_results (name, version, source_url, dropped, content_hash, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id.Name, id.Version, result.SourceURL, result.Dropped, hash, formatTimestamp(result.FetchedAt))
	}
	if err != nil {
		return err
	}

	if found && existing == hash {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM resources WHERE package_name = ? AND package_version = ?
	`, id.Name, id.Version); err != nil {
		return err
	}
	for i, r := range result.Resources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resources (package_name, package_version, position, name, kind, url, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id.Name, id.Version, i, r.Name, string(r.Kind), r.URL, r.Description); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindResults returns all snapshots ordered by package, each with its
// resources in their original order.
func (s *ResultStore) FindResults(ctx context.Context) ([]*docsrs.LookupResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, source_url, dropped, fetched_at
		FROM lookup_results
		ORDER BY name, version
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*docsrs.LookupResult, 0)
	byID := make(map[docsrs.PackageIdentifier]*docsrs.LookupResult)
	for rows.Next() {
		var r docsrs.LookupResult
		var fetchedAt string
		if err := rows.Scan(&r.Package.Name, &r.Package.Version, &r.SourceURL, &r.Dropped, &fetchedAt); err != nil {
			return nil, err
		}
		if r.FetchedAt, err = parseTimestamp(fetchedAt, "fetched_at"); err != nil {
			return nil, err
		}
		r.Resources = []docsrs.Resource{}
		results = append(results, &r)
		byID[r.Package] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// The single connection must be released before the next query.
	rows.Close()

	resRows, err := s.db.QueryContext(ctx, `
		SELECT package_name, package_version, name, kind, url, description
		FROM resources
		ORDER BY package_name, package_version, position
	`)
	if err != nil {
		return nil, err
	}
	defer resRows.Close()

	for resRows.Next() {
		var id docsrs.PackageIdentifier
		var res docsrs.Resource
		var kind string
		if err := resRows.Scan(&id.Name, &id.Version, &res.Name, &kind, &res.URL, &res.Description); err != nil {
			return nil, err
		}
		res.Kind = docsrs.Kind(kind)
		if r, ok := byID[id]; ok {
			r.Resources = append(r.Resources, res)
		}
	}
	if err := resRows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// DeleteResult removes the snapshot for id and its resources.
func (s *ResultStore) DeleteResult(ctx context.Context, id docsrs.PackageIdentifier) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM lookup_results WHERE name = ? AND version = ?
	`, id.Name, id.Version)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return docsrs.Errorf(docsrs.ENOTFOUND, "snapshot for %s not found", id)
	}
	return nil
}
