package docsrs

import (
	"net/url"
	"strings"
)

// Normalize converts parser entries into resources.
//
// Relative hrefs are resolved against docRoot. Entries without a name,
// with an unusable href or whose URL does not resolve to an absolute
// http(s) URL are dropped and counted. Resources are deduplicated by
// (name, kind); the first occurrence wins and document order is kept.
func Normalize(docRoot string, entries []RawEntry) (resources []Resource, dropped int) {
	root, err := url.Parse(docRoot)
	if err != nil || !isAbsoluteHTTP(root) {
		return []Resource{}, len(entries)
	}

	type key struct {
		name string
		kind Kind
	}
	seen := make(map[key]struct{}, len(entries))
	resources = make([]Resource, 0, len(entries))

	for _, e := range entries {
		name := collapseSpace(e.Name)
		if name == "" {
			dropped++
			continue
		}

		resolved, ok := resolveHref(root, e.Href)
		if !ok {
			dropped++
			continue
		}

		res := Resource{
			Name:        name,
			Kind:        KindFromToken(e.Kind),
			URL:         resolved,
			Description: collapseSpace(e.Description),
		}

		k := key{res.Name, res.Kind}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		resources = append(resources, res)
	}

	return resources, dropped
}

// resolveHref resolves href against root and reports whether the result
// is an absolute http(s) URL.
func resolveHref(root *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || isNonHTTPLink(href) {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := root.ResolveReference(ref)
	if !isAbsoluteHTTP(resolved) {
		return "", false
	}
	return resolved.String(), true
}

func isAbsoluteHTTP(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(href)
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
