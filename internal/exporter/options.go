package exporter

import "strings"

// Theme selects the document color scheme.
type Theme string

// Supported themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a user-supplied theme name to a Theme. Anything other than
// "dark" (case-insensitive) is light.
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

// Options control how a document is rendered. The zero value renders the
// default stylesheet with the light theme.
type Options struct {
	// Title, when set, replaces the generated document title. File names
	// are unchanged.
	Title string `json:"title,omitempty" yaml:"title"`

	// Styles is extra CSS appended after the default stylesheet.
	Styles string `json:"styles,omitempty" yaml:"styles"`

	// IncludeStyles drops the default stylesheet when explicitly false.
	// Styles is kept either way.
	IncludeStyles *bool `json:"includeStyles,omitempty" yaml:"includeStyles"`

	Theme Theme `json:"theme,omitempty" yaml:"theme"`
}

// Normalize returns a copy with defaults applied: IncludeStyles set and the
// theme folded to ThemeLight or ThemeDark.
func (o Options) Normalize() Options {
	if o.IncludeStyles == nil {
		include := true
		o.IncludeStyles = &include
	}
	o.Theme = ParseTheme(string(o.Theme))
	return o
}

// DefaultStylesIncluded reports whether the built-in stylesheet is rendered.
func (o Options) DefaultStylesIncluded() bool {
	return o.IncludeStyles == nil || *o.IncludeStyles
}

// Stylesheet returns the CSS placed in the document's style block.
func (o Options) Stylesheet() string {
	if !o.DefaultStylesIncluded() {
		return o.Styles
	}
	if o.Styles == "" {
		return DefaultStylesheet
	}
	return DefaultStylesheet + "\n" + o.Styles
}

// BodyClass returns the class attribute value for the document body.
func (o Options) BodyClass() string {
	if ParseTheme(string(o.Theme)) == ThemeDark {
		return "dark-theme"
	}
	return ""
}

// Bool returns a pointer to b, for setting IncludeStyles.
func Bool(b bool) *bool {
	return &b
}
