package docsrs

// PageParser extracts documentation items from a fetched page.
// All knowledge of the documentation site's markup lives behind this
// interface.
type PageParser interface {
	// Parse returns the page's items in document order.
	// It never returns an empty successful result: a page without
	// recognizable items yields a *ParseError.
	Parse(page []byte) ([]RawEntry, error)
}

// ParseErrorKind classifies parse failures.
type ParseErrorKind int

// Parse failure kinds.
const (
	ParseNotFound ParseErrorKind = iota + 1
	ParseStructuralMismatch
	ParseMalformed
)

// ParseError reports why a page could not be parsed.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}
