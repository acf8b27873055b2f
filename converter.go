package docsrs

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms an HTML fragment, such as an item's short
	// description, into Markdown.
	Convert(html string) (string, error)
}
