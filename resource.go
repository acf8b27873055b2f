package docsrs

import (
	"context"
	"strings"
	"time"
)

// Kind is the category of a documented symbol.
type Kind string

// Supported resource kinds.
const (
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindTrait     Kind = "trait"
	KindFunction  Kind = "function"
	KindModule    Kind = "module"
	KindMacro     Kind = "macro"
	KindTypeAlias Kind = "type_alias"
	KindConstant  Kind = "constant"
	KindUnknown   Kind = "unknown"
)

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindStruct, KindEnum, KindTrait, KindFunction, KindModule,
		KindMacro, KindTypeAlias, KindConstant, KindUnknown,
	}
}

// ParseKind parses a caller-supplied kind filter such as "trait",
// "Trait" or "TypeAlias". Site tokens like "fn" are not accepted here;
// see KindFromToken.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, k := range Kinds() {
		if norm == strings.ReplaceAll(string(k), "_", "") {
			return k, nil
		}
	}
	return "", Errorf(EINVALID, "unknown kind %q", s)
}

// kindTokens maps the documentation site's kind markers (CSS classes,
// section ids and href prefixes) to kinds.
var kindTokens = map[string]Kind{
	"struct":     KindStruct,
	"structs":    KindStruct,
	"enum":       KindEnum,
	"enums":      KindEnum,
	"trait":      KindTrait,
	"traits":     KindTrait,
	"traitalias": KindTrait,
	"fn":         KindFunction,
	"function":   KindFunction,
	"functions":  KindFunction,
	"mod":        KindModule,
	"module":     KindModule,
	"modules":    KindModule,
	"macro":      KindMacro,
	"macros":     KindMacro,
	"attr":       KindMacro,
	"attributes": KindMacro,
	"derive":     KindMacro,
	"derives":    KindMacro,
	"type":       KindTypeAlias,
	"types":      KindTypeAlias,
	"typealias":  KindTypeAlias,
	"constant":   KindConstant,
	"constants":  KindConstant,
	"const":      KindConstant,
	"static":     KindConstant,
	"statics":    KindConstant,
}

// KindFromToken maps a site kind token to a Kind.
// Unrecognized tokens map to KindUnknown.
func KindFromToken(token string) Kind {
	if k, ok := kindTokens[strings.ToLower(strings.TrimSpace(token))]; ok {
		return k
	}
	return KindUnknown
}

// RawEntry is a parser's unvalidated extraction of one documentation item.
// Kind holds the site token, not a Kind.
type RawEntry struct {
	Name        string
	Kind        string
	Href        string
	Description string
}

// Resource is one normalized documentation entry.
type Resource struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	URL         string `json:"url"` // always absolute
	Description string `json:"description"`
}

// LookupResult holds the resources documented for one package version.
type LookupResult struct {
	Package   PackageIdentifier `json:"package"`
	Resources []Resource        `json:"resources"`
	SourceURL string            `json:"sourceUrl"`
	FetchedAt time.Time         `json:"fetchedAt"`

	// Dropped counts parser entries the normalizer discarded.
	Dropped int `json:"dropped"`

	// Stale is set when a failed refresh was answered with a previously
	// cached result. FetchedAt then reports when that result was fetched.
	Stale bool `json:"stale"`
}

// Clone returns a deep copy of r.
func (r *LookupResult) Clone() *LookupResult {
	if r == nil {
		return nil
	}
	other := *r
	other.Resources = append([]Resource(nil), r.Resources...)
	return &other
}

// Filter returns a copy of r holding only resources of the given kind.
// An empty kind returns an unfiltered copy.
func (r *LookupResult) Filter(kind Kind) *LookupResult {
	other := r.Clone()
	if other == nil || kind == "" {
		return other
	}
	filtered := make([]Resource, 0, len(other.Resources))
	for _, res := range other.Resources {
		if res.Kind == kind {
			filtered = append(filtered, res)
		}
	}
	other.Resources = filtered
	return other
}

// LookupRequest holds the parameters of a lookup.
type LookupRequest struct {
	Name    string
	Version string // empty means LatestVersion
	Kind    Kind   // empty means no kind filter

	// Refresh evicts any cached result before looking up.
	Refresh bool
}

// LookupService is the entry point transport adapters call.
type LookupService interface {
	// Lookup returns the documented resources of a package.
	// Failures carry one of ENOTFOUND, ESTRUCTURE, EUNAVAILABLE,
	// ETOOLARGE or EINVALID.
	Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error)
}

// RefreshFunc produces a fresh result for a cache key.
type RefreshFunc func(ctx context.Context) (*LookupResult, error)

// LookupCache stores lookup results per package identifier.
type LookupCache interface {
	// GetOrRefresh returns the cached result for id while it is fresh and
	// calls refresh otherwise. Concurrent callers for the same id share a
	// single refresh. Returned results are copies owned by the caller.
	GetOrRefresh(ctx context.Context, id PackageIdentifier, refresh RefreshFunc) (*LookupResult, error)

	// Invalidate evicts id. Reports whether an entry was present.
	Invalidate(id PackageIdentifier) bool
}

// ResultStore persists lookup results across process restarts.
type ResultStore interface {
	// SaveResult creates or replaces the snapshot for result.Package.
	SaveResult(ctx context.Context, result *LookupResult) error

	// FindResults returns all stored snapshots.
	FindResults(ctx context.Context) ([]*LookupResult, error)

	// DeleteResult removes a snapshot.
	// Returns ENOTFOUND if no snapshot exists.
	DeleteResult(ctx context.Context, id PackageIdentifier) error
}
