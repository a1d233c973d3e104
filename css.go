package reach

import (
	"context"
	"html/template"
	"strings"
)

// CSSEmbedder is an interface that Components can fulfill to include some CSS
// that should be embedded directly into the rendered HTML, inside a <style>
// element. The rendered blocks are made available to the template as .CSS.
type CSSEmbedder interface {
	// EmbedCSS returns the templates that CSS should be rendered from.
	EmbedCSS(context.Context) []CSSInline
}

// CSSLinker is an interface that Components can fulfill to include some CSS
// that should be loaded through a <link> element. The elements are made
// available to the template as .CSS.
type CSSLinker interface {
	// LinkCSS returns the stylesheets that should be linked to from the
	// output HTML.
	LinkCSS(context.Context) []CSSLink
}

// CSSInline is a block of CSS rendered from a template and embedded in the
// page. The template is executed with the same RenderData as the page.
type CSSInline struct {
	// TemplatePath is the path of the CSS template within the Site's
	// TemplateDir. It's also what makes the block unique: two CSSInlines
	// with the same TemplatePath are only rendered once.
	TemplatePath string

	// CSSInlineRelationCalculator, if set, is consulted for every other
	// embedded CSS block on the page to decide which one renders first.
	CSSInlineRelationCalculator func(context.Context, CSSInline) ResourceRelationship

	// CSSLinkRelationCalculator, if set, is consulted for every linked
	// stylesheet on the page to decide which one renders first.
	CSSLinkRelationCalculator func(context.Context, CSSLink) ResourceRelationship

	// DisableImplicitOrdering stops this block from being ordered after
	// the block that precedes it in its Component's EmbedCSS output.
	DisableImplicitOrdering bool
}

func (c CSSInline) identity() string { return "css-inline:" + c.TemplatePath }

func (CSSInline) linked() bool { return false }

func (c CSSInline) sortKey() string { return c.TemplatePath }

func (c CSSInline) implicitlyOrdered() bool {
	return c.CSSInlineRelationCalculator == nil && c.CSSLinkRelationCalculator == nil && !c.DisableImplicitOrdering
}

func (c CSSInline) relate(ctx context.Context, other resource) ResourceRelationship {
	return relateCSS(ctx, c.CSSInlineRelationCalculator, c.CSSLinkRelationCalculator, other)
}

func (c CSSInline) templateSource(body string) string {
	return "<style>\n" + body + "\n</style>\n"
}

// CSSLink is a stylesheet loaded through a <link> element.
type CSSLink struct {
	// Href is the URL of the stylesheet. Two CSSLinks with the same Href
	// are only rendered once.
	Href string

	// Rel is the rel attribute, usually "stylesheet".
	Rel string

	// Type is the optional type attribute.
	Type string

	// Media is the optional media query the stylesheet applies to.
	Media string

	// CSSInlineRelationCalculator, if set, is consulted for every embedded
	// CSS block on the page to decide which one renders first.
	CSSInlineRelationCalculator func(context.Context, CSSInline) ResourceRelationship

	// CSSLinkRelationCalculator, if set, is consulted for every other
	// linked stylesheet on the page to decide which one renders first.
	CSSLinkRelationCalculator func(context.Context, CSSLink) ResourceRelationship

	// DisableImplicitOrdering stops this link from being ordered after
	// the link that precedes it in its Component's LinkCSS output.
	DisableImplicitOrdering bool
}

func (c CSSLink) identity() string { return "css-link:" + c.Href }

func (CSSLink) linked() bool { return true }

func (c CSSLink) sortKey() string { return c.Href }

func (c CSSLink) implicitlyOrdered() bool {
	return c.CSSInlineRelationCalculator == nil && c.CSSLinkRelationCalculator == nil && !c.DisableImplicitOrdering
}

func (c CSSLink) relate(ctx context.Context, other resource) ResourceRelationship {
	return relateCSS(ctx, c.CSSInlineRelationCalculator, c.CSSLinkRelationCalculator, other)
}

func (c CSSLink) html() template.HTML {
	var out strings.Builder
	out.WriteString(`<link href="`)
	out.WriteString(template.HTMLEscapeString(c.Href))
	out.WriteString(`"`)
	if c.Media != "" {
		out.WriteString(` media="` + template.HTMLEscapeString(c.Media) + `"`)
	}
	if c.Rel != "" {
		out.WriteString(` rel="` + template.HTMLEscapeString(c.Rel) + `"`)
	}
	if c.Type != "" {
		out.WriteString(` type="` + template.HTMLEscapeString(c.Type) + `"`)
	}
	out.WriteString(">\n")
	return template.HTML(out.String()) // #nosec G203 -- every attribute is escaped above
}

func relateCSS(ctx context.Context, inline func(context.Context, CSSInline) ResourceRelationship, link func(context.Context, CSSLink) ResourceRelationship, other resource) ResourceRelationship {
	switch res := other.(type) {
	case CSSInline:
		if inline != nil {
			return inline(ctx, res)
		}
	case CSSLink:
		if link != nil {
			return link(ctx, res)
		}
	}
	return ResourceRelationshipNeutral
}
