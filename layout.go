package reach

import (
	"context"
	"strings"
)

const baseCSSPath = "base.css.tmpl"

// afterBaseCSS orders a stylesheet after the base stylesheet, so it can
// override it.
func afterBaseCSS(_ context.Context, other CSSInline) ResourceRelationship {
	if other.TemplatePath == baseCSSPath {
		return ResourceRelationshipAfter
	}
	return ResourceRelationshipNeutral
}

// Layout is the HTML document every page of the form is rendered in.
type Layout struct {
	Revision Revision
	Theme    Theme
}

// Templates returns the layout template.
func (l Layout) Templates(_ context.Context) []string {
	return []string{l.BaseTemplate()}
}

// BaseTemplate is the template pages using the Layout execute.
func (Layout) BaseTemplate() string {
	return "layout.html.tmpl"
}

// EmbedCSS returns the base styles, plus the animations when the
// revision is animated.
func (l Layout) EmbedCSS(_ context.Context) []CSSInline {
	css := []CSSInline{
		{TemplatePath: baseCSSPath},
	}
	if l.Revision.Animated() {
		css = append(css, CSSInline{TemplatePath: "animations.css.tmpl", CSSInlineRelationCalculator: afterBaseCSS})
	}
	return css
}

// BodyClass is the class attribute of the <body> element.
func (l Layout) BodyClass() string {
	classes := []string{"revision-" + l.Revision.String()}
	if l.Revision.Themed() {
		theme := l.Theme
		if _, ok := ParseTheme(string(theme)); !ok {
			theme = ThemeLight
		}
		classes = append(classes, "theme-"+string(theme))
	}
	return strings.Join(classes, " ")
}
