// Package goquery implements docsrs.PageParser for rustdoc-generated pages
// using CSS selectors.
package goquery

import (
	"bytes"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/docsrs"
	"golang.org/x/net/html"
)

// Ensure Parser implements docsrs.PageParser at compile time.
var _ docsrs.PageParser = (*Parser)(nil)

// Layout describes one page structure listing documentation items.
type Layout struct {
	Name string

	// Container selects one element per documented item.
	Container string

	// Link selects the item's anchor within the container. Empty means
	// the container is the anchor.
	Link string

	// Description returns the node holding the item's short description.
	// Nil means the layout carries no descriptions.
	Description func(item *goquery.Selection) *goquery.Selection

	// Section returns a kind token taken from the item's surroundings,
	// such as the id of the enclosing section header. May be nil.
	Section func(item *goquery.Selection) string
}

// DefaultLayouts returns the rustdoc layouts in the order they are tried.
// Newer rustdoc output comes first.
func DefaultLayouts() []Layout {
	return []Layout{
		{
			Name:        "item-table-dl",
			Container:   "dl.item-table:not(.reexports) > dt",
			Link:        "a[href]",
			Description: func(item *goquery.Selection) *goquery.Selection { return item.NextFiltered("dd") },
			Section:     precedingHeaderID("h2"),
		},
		{
			Name:        "item-table-ul",
			Container:   "ul.item-table > li",
			Link:        ".item-name a[href]",
			Description: func(item *goquery.Selection) *goquery.Selection { return item.Find(".desc") },
			Section:     precedingHeaderID("h2"),
		},
		{
			Name:        "item-table-div",
			Container:   "div.item-table > div.item-row",
			Link:        ".item-left a[href]",
			Description: func(item *goquery.Selection) *goquery.Selection { return item.Find(".item-right") },
			Section:     precedingHeaderID("h2"),
		},
		{
			Name:      "all-items",
			Container: "ul.all-items > li",
			Link:      "a[href]",
			Section:   precedingHeaderID("h3"),
		},
	}
}

// DefaultNotFoundPatterns returns page texts docs.rs shows for unknown
// crates and versions.
func DefaultNotFoundPatterns() []string {
	return []string{
		"The requested crate does not exist",
		"The requested version does not exist",
		"crate not found",
	}
}

// Parser extracts documentation items from rustdoc pages.
type Parser struct {
	layouts          []Layout
	notFoundPatterns []string
	converter        docsrs.Converter
}

// Option configures a Parser.
type Option func(*Parser)

// WithLayouts replaces the layouts the parser recognizes.
func WithLayouts(layouts ...Layout) Option {
	return func(p *Parser) {
		p.layouts = layouts
	}
}

// WithNotFoundPatterns replaces the texts that identify a "does not
// exist" page.
func WithNotFoundPatterns(patterns ...string) Option {
	return func(p *Parser) {
		p.notFoundPatterns = patterns
	}
}

// WithConverter converts description HTML to Markdown instead of using
// the plain text.
func WithConverter(c docsrs.Converter) Option {
	return func(p *Parser) {
		p.converter = c
	}
}

// NewParser creates a Parser using DefaultLayouts and
// DefaultNotFoundPatterns unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		layouts:          DefaultLayouts(),
		notFoundPatterns: DefaultNotFoundPatterns(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the items of the first layout that matches the page.
func (p *Parser) Parse(page []byte) ([]docsrs.RawEntry, error) {
	root, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, &docsrs.ParseError{Kind: docsrs.ParseMalformed, Message: "failed to parse HTML: " + err.Error()}
	}
	doc := goquery.NewDocumentFromNode(root)

	for _, layout := range p.layouts {
		items := doc.Find(layout.Container)
		if items.Length() == 0 {
			continue
		}
		return p.extract(items, layout), nil
	}

	// Only consult the not-found texts once no layout matched, so a crate
	// whose docs mention them is still parsed.
	if p.isNotFoundPage(doc) {
		return nil, &docsrs.ParseError{Kind: docsrs.ParseNotFound, Message: "package does not exist"}
	}
	return nil, &docsrs.ParseError{Kind: docsrs.ParseStructuralMismatch, Message: "no documentation items found on page"}
}

func (p *Parser) extract(items *goquery.Selection, layout Layout) []docsrs.RawEntry {
	entries := make([]docsrs.RawEntry, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		link := item.Filter("a[href]")
		if layout.Link != "" {
			link = item.Find(layout.Link).First()
		}

		var section string
		if layout.Section != nil {
			section = layout.Section(item)
		}

		entry := docsrs.RawEntry{
			Name: strings.TrimSpace(link.Text()),
			Href: strings.TrimSpace(link.AttrOr("href", "")),
		}
		entry.Kind = kindToken(link, section, entry.Href)
		if layout.Description != nil {
			entry.Description = p.description(layout.Description(item))
		}

		// Entries with missing parts are still emitted; the normalizer
		// decides what to drop.
		entries = append(entries, entry)
	})
	return entries
}

func (p *Parser) description(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(sel.First().Text())
	if p.converter == nil || text == "" {
		return text
	}
	inner, err := sel.First().Html()
	if err != nil {
		return text
	}
	md, err := p.converter.Convert(inner)
	if err != nil {
		return text
	}
	return md
}

func (p *Parser) isNotFoundPage(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Find("title").Text() + " " + doc.Find("body").Text())
	for _, pattern := range p.notFoundPatterns {
		if pattern != "" && strings.Contains(text, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// kindToken picks the item's kind marker: the anchor's CSS class, then
// the section token, then the href filename prefix (struct.Foo.html).
// The first recognized candidate wins; otherwise the first non-empty one
// is passed through for the normalizer to map to unknown.
func kindToken(link *goquery.Selection, section, href string) string {
	var candidates []string
	if class, ok := link.Attr("class"); ok {
		candidates = append(candidates, strings.Fields(class)...)
	}
	candidates = append(candidates, section, hrefToken(href))

	for _, c := range candidates {
		if c != "" && docsrs.KindFromToken(c) != docsrs.KindUnknown {
			return c
		}
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// hrefToken returns the rustdoc item-type prefix of an href's file name.
func hrefToken(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	base := path.Base(href)
	if base == "index.html" {
		return "mod"
	}
	if prefix, _, ok := strings.Cut(base, "."); ok {
		return prefix
	}
	return ""
}

// precedingHeaderID returns a Section func reading the id of the closest
// header of the given tag before the item's list.
func precedingHeaderID(tag string) func(item *goquery.Selection) string {
	return func(item *goquery.Selection) string {
		return item.Parent().PrevAllFiltered(tag).First().AttrOr("id", "")
	}
}
