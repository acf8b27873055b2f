package docsrs

import (
	"net/url"
	"strings"
)

// LatestVersion is the version used when a lookup does not name one.
const LatestVersion = "latest"

// PackageIdentifier names one package version on the documentation site.
// It is comparable and used as the cache key.
type PackageIdentifier struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewPackageIdentifier validates name and normalizes version.
// An empty version becomes LatestVersion.
func NewPackageIdentifier(name, version string) (PackageIdentifier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PackageIdentifier{}, Errorf(EINVALID, "package name required")
	}
	if !isPackageName(name) {
		return PackageIdentifier{}, Errorf(EINVALID, "invalid package name %q", name)
	}

	version = strings.TrimSpace(version)
	if version == "" || strings.EqualFold(version, LatestVersion) {
		version = LatestVersion
	}
	if strings.ContainsAny(version, "/?#") {
		return PackageIdentifier{}, Errorf(EINVALID, "invalid version %q", version)
	}

	return PackageIdentifier{Name: name, Version: version}, nil
}

// String returns the identifier as name@version.
func (id PackageIdentifier) String() string {
	return id.Name + "@" + id.Version
}

// Ident returns the package name as rustdoc spells it in paths.
func (id PackageIdentifier) Ident() string {
	return strings.ReplaceAll(id.Name, "-", "_")
}

// DocRoot returns the URL of the package's documentation root page,
// e.g. https://docs.rs/serde-json/1.0.0/serde_json/. It assumes the
// library target is named after the package.
func (id PackageIdentifier) DocRoot(baseURL string) (string, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	return dirURL(base.JoinPath(id.Name, id.Version, id.Ident())), nil
}

// CrateURL returns the URL docs.rs redirects to the documentation root
// of whatever library target the package has, e.g.
// https://docs.rs/serde-json/1.0.0/.
func (id PackageIdentifier) CrateURL(baseURL string) (string, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	return dirURL(base.JoinPath(id.Name, id.Version)), nil
}

func parseBaseURL(baseURL string) (*url.URL, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, Errorf(EINVALID, "invalid base URL: %v", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, Errorf(EINVALID, "base URL must be absolute: %q", baseURL)
	}
	return base, nil
}

func dirURL(u *url.URL) string {
	return strings.TrimSuffix(u.String(), "/") + "/"
}

// isPackageName reports whether s only uses the crate-name alphabet.
func isPackageName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
