package reach

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates
var builtinTemplates embed.FS

// BuiltinTemplates returns the templates compiled into the binary.
func BuiltinTemplates() fs.FS {
	sub, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		// only fails if the embedded directory name is wrong
		panic(err)
	}
	return sub
}

var (
	_ Site             = &FormSite{}
	_ FuncMapExtender  = &FormSite{}
	_ ServerErrorPager = &FormSite{}
)

// FormSite is the Site the predict page is served from.
type FormSite struct {
	*CachedSite

	// Title is shown as the page title and heading.
	Title string

	// Revision is the revision of the form every visitor gets.
	Revision Revision

	// DefaultTheme is used for visitors who never toggled the theme.
	DefaultTheme Theme
}

// NewFormSite returns a FormSite rendering the templates in templates,
// usually BuiltinTemplates().
func NewFormSite(templates fs.FS, title string, revision Revision, defaultTheme Theme) *FormSite {
	return &FormSite{
		CachedSite:   NewCachedSite(templates),
		Title:        title,
		Revision:     revision,
		DefaultTheme: defaultTheme,
	}
}

// FuncMap adds the number formatting helpers templates use.
func (*FormSite) FuncMap(_ context.Context) template.FuncMap {
	return template.FuncMap{
		"impression": FormatImpression,
		"metric":     formatMetric,
	}
}

// ServerErrorPage returns the page shown when rendering fails.
func (*FormSite) ServerErrorPage(_ context.Context) Page {
	return ErrorPage{}
}
