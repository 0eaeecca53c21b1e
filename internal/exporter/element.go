package exporter

import (
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ExportElement exports the inner HTML of the element whose id is elementID in
// the given page. When the page cannot be parsed or has no such element the
// failure is logged and nothing is delivered.
func (e *Exporter) ExportElement(ctx context.Context, page io.Reader, elementID, title string, opts Options) error {
	content, ok := FindElementHTML(page, elementID)
	if !ok {
		e.logger.Error().Str("element_id", elementID).Msgf("Element with ID %q not found", elementID)
		return nil
	}
	return e.ExportCustomContent(ctx, title, content, opts)
}

// FindElementHTML parses page and returns the serialized children of the
// first element with the given id, in document order.
func FindElementHTML(page io.Reader, id string) (string, bool) {
	if id == "" {
		return "", false
	}

	doc, err := html.Parse(page)
	if err != nil {
		return "", false
	}

	node := findByID(doc, id)
	if node == nil {
		return "", false
	}

	var b strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", false
		}
	}
	return b.String(), true
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
