package exporter

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ContentType is the media type of every exported file.
const ContentType = "text/html; charset=utf-8"

// exportedAtLayout mirrors the en-US locale date string, e.g. "3/14/2024, 9:05:00 PM".
const exportedAtLayout = "1/2/2006, 3:04:05 PM"

// Document is a rendered-once export: a title, a trusted HTML fragment and
// CSS appended after the options' styles.
type Document struct {
	Title   string
	Content template.HTML
	Styles  string
}

// File is a finished export ready for delivery.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Sink receives finished files. It is the destination of every export:
// a directory, a blob store, an HTTP response.
type Sink interface {
	Deliver(ctx context.Context, f File) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, f File) error

// Deliver calls fn(ctx, f).
func (fn SinkFunc) Deliver(ctx context.Context, f File) error {
	return fn(ctx, f)
}

type documentView struct {
	Title      string
	Styles     template.CSS
	BodyClass  string
	Content    template.HTML
	ExportedAt string
}

// Render wraps doc in the page shell. Title and timestamp are escaped; the
// content fragment is inserted verbatim.
func Render(doc Document, opts Options, exportedAt time.Time) ([]byte, error) {
	if doc.Styles != "" {
		opts.Styles = strings.TrimPrefix(opts.Styles+"\n"+doc.Styles, "\n")
	}

	view := documentView{
		Title:      doc.Title,
		Styles:     template.CSS(guardStyle(opts.Stylesheet())), //nolint:gosec // stylesheet is configuration, closing tags are neutralized
		BodyClass:  opts.BodyClass(),
		Content:    doc.Content,
		ExportedAt: exportedAt.Format(exportedAtLayout),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "document", view); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// renderFragment executes a named content template.
func renderFragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of html/template
}

// guardStyle keeps caller CSS from closing the style element.
func guardStyle(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
