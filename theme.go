package reach

import (
	"context"
)

// Theme is the color scheme the page is rendered in.
type Theme string

const (
	// ThemeLight is the default theme.
	ThemeLight Theme = "light"
	// ThemeDark renders light text on a dark page.
	ThemeDark Theme = "dark"
)

// ParseTheme returns the Theme named by s, and false if s isn't a theme.
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), true
	}
	return "", false
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ThemeToggle is the button that switches between the light and dark theme.
// Without JavaScript it's a form that posts to /theme; with it, the switch
// happens in place and the choice is saved in the background.
type ThemeToggle struct {
	Theme Theme
}

// Templates returns the toggle's template.
func (ThemeToggle) Templates(_ context.Context) []string {
	return []string{"theme_toggle.html.tmpl"}
}

// Next is the theme the toggle switches to.
func (t ThemeToggle) Next() Theme {
	return t.Theme.Toggle()
}

// Icon is shown on the toggle button.
func (t ThemeToggle) Icon() string {
	if t.Theme == ThemeDark {
		return "☀️"
	}
	return "🌙"
}

// EmbedCSS returns the rules for both themes.
func (ThemeToggle) EmbedCSS(_ context.Context) []CSSInline {
	return []CSSInline{
		{TemplatePath: "theme.css.tmpl", CSSInlineRelationCalculator: afterBaseCSS},
	}
}

// EmbedJS returns the script that switches the theme in place.
func (ThemeToggle) EmbedJS(_ context.Context) []JSInline {
	return []JSInline{
		{TemplatePath: "theme.js.tmpl", PlaceInFooter: true},
	}
}
