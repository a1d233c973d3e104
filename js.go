package reach

import (
	"context"
	"html/template"
	"strings"
)

// JSEmbedder is an interface that Components can fulfill to include some
// JavaScript that should be embedded directly into the rendered HTML, inside a
// <script> element. The rendered blocks are made available to the template as
// .HeaderJS or .FooterJS, depending on PlaceInFooter.
type JSEmbedder interface {
	// EmbedJS returns the templates that JavaScript should be rendered
	// from.
	EmbedJS(context.Context) []JSInline
}

// JSLinker is an interface that Components can fulfill to include some
// JavaScript that should be loaded separately from the HTML document, using a
// <script> tag with a src attribute.
type JSLinker interface {
	// LinkJS returns the scripts that should be linked to from the output
	// HTML.
	LinkJS(context.Context) []JSLink
}

// JSInline is a block of JavaScript rendered from a template and embedded in
// the page. The template is executed with the same RenderData as the page.
type JSInline struct {
	// TemplatePath is the path of the JavaScript template within the
	// Site's TemplateDir. Two JSInlines with the same TemplatePath are
	// only rendered once.
	TemplatePath string

	// PlaceInFooter renders the block as part of .FooterJS instead of
	// .HeaderJS.
	PlaceInFooter bool

	// JSInlineRelationCalculator, if set, is consulted for every other
	// embedded script in the same section of the page.
	JSInlineRelationCalculator func(context.Context, JSInline) ResourceRelationship

	// JSLinkRelationCalculator, if set, is consulted for every linked
	// script in the same section of the page.
	JSLinkRelationCalculator func(context.Context, JSLink) ResourceRelationship

	// DisableImplicitOrdering stops this block from being ordered after
	// the block that precedes it in its Component's EmbedJS output.
	DisableImplicitOrdering bool
}

func (j JSInline) identity() string { return "js-inline:" + j.TemplatePath }

func (JSInline) linked() bool { return false }

func (j JSInline) sortKey() string { return j.TemplatePath }

func (j JSInline) implicitlyOrdered() bool {
	return j.JSInlineRelationCalculator == nil && j.JSLinkRelationCalculator == nil && !j.DisableImplicitOrdering
}

func (j JSInline) relate(ctx context.Context, other resource) ResourceRelationship {
	return relateJS(ctx, j.JSInlineRelationCalculator, j.JSLinkRelationCalculator, other)
}

func (j JSInline) templateSource(body string) string {
	return "<script>\n" + body + "\n</script>\n"
}

// JSLink is a script loaded from a URL.
type JSLink struct {
	// Src is the URL of the script. Two JSLinks with the same Src are only
	// rendered once.
	Src string

	// Type is the optional type attribute, e.g. "module".
	Type string

	// Defer adds the defer attribute.
	Defer bool

	// Async adds the async attribute.
	Async bool

	// PlaceInFooter renders the element as part of .FooterJS instead of
	// .HeaderJS.
	PlaceInFooter bool

	// JSInlineRelationCalculator, if set, is consulted for every embedded
	// script in the same section of the page.
	JSInlineRelationCalculator func(context.Context, JSInline) ResourceRelationship

	// JSLinkRelationCalculator, if set, is consulted for every other
	// linked script in the same section of the page.
	JSLinkRelationCalculator func(context.Context, JSLink) ResourceRelationship

	// DisableImplicitOrdering stops this link from being ordered after
	// the link that precedes it in its Component's LinkJS output.
	DisableImplicitOrdering bool
}

func (j JSLink) identity() string { return "js-link:" + j.Src }

func (JSLink) linked() bool { return true }

func (j JSLink) sortKey() string { return j.Src }

func (j JSLink) implicitlyOrdered() bool {
	return j.JSInlineRelationCalculator == nil && j.JSLinkRelationCalculator == nil && !j.DisableImplicitOrdering
}

func (j JSLink) relate(ctx context.Context, other resource) ResourceRelationship {
	return relateJS(ctx, j.JSInlineRelationCalculator, j.JSLinkRelationCalculator, other)
}

func (j JSLink) html() template.HTML {
	var out strings.Builder
	out.WriteString("<script")
	if j.Type != "" {
		out.WriteString(` type="` + template.HTMLEscapeString(j.Type) + `"`)
	}
	out.WriteString(` src="` + template.HTMLEscapeString(j.Src) + `"`)
	if j.Async {
		out.WriteString(" async")
	}
	if j.Defer {
		out.WriteString(" defer")
	}
	out.WriteString("></script>\n")
	return template.HTML(out.String()) // #nosec G203 -- every attribute is escaped above
}

func relateJS(ctx context.Context, inline func(context.Context, JSInline) ResourceRelationship, link func(context.Context, JSLink) ResourceRelationship, other resource) ResourceRelationship {
	switch res := other.(type) {
	case JSInline:
		if inline != nil {
			return inline(ctx, res)
		}
	case JSLink:
		if link != nil {
			return link(ctx, res)
		}
	}
	return ResourceRelationshipNeutral
}
