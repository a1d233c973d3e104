package reach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoTemplatePath is returned when a template path is needed, but
	// none are supplied.
	ErrNoTemplatePath = errors.New("need at least one template path")

	// ErrTemplatePatternMatchesNoFiles is returned when a template path is
	// a pattern, but that pattern doesn't match any files.
	ErrTemplatePatternMatchesNoFiles = errors.New("pattern matches no files")
)

var tracer = otel.Tracer("impractical.co/reach")

// Component is an interface for a UI component that can be rendered to HTML.
type Component interface {
	// Templates returns a list of paths (or fs.Glob patterns) to
	// html/template contents that need to be parsed before the component
	// can be rendered.
	Templates(context.Context) []string
}

// ComponentUser is an interface that a Component can optionally implement to
// list the Components that it relies upon. Their templates, functions, CSS and
// JavaScript are all collected whenever the Component is rendered.
type ComponentUser interface {
	// UseComponents returns the Components that this Component relies on.
	UseComponents(context.Context) []Component
}

// FuncMapExtender is an interface that Components and Sites can fulfill to
// add to the map of functions available to templates when rendering.
type FuncMapExtender interface {
	// FuncMap returns an html/template.FuncMap containing all the
	// functions that the Component is adding to the FuncMap.
	FuncMap(context.Context) template.FuncMap
}

// Page is a Component that can be passed to Render. It defines a single
// logical page of the application and contains all the information needed to
// render its Components to HTML.
type Page interface {
	Component

	// Key is a unique key to use when caching this page so it doesn't need
	// to be re-parsed. Two Pages with the same Key must parse the same
	// set of templates.
	Key(context.Context) string

	// ExecutedTemplate is the template that needs to actually be executed
	// when rendering the page. This is usually the layout template that
	// the page's own templates fill blocks in.
	ExecutedTemplate(context.Context) string
}

// RenderData is the data that is passed to a page, and to every embedded CSS
// and JavaScript template, when rendering it.
type RenderData[SiteType Site, PageType Page] struct {
	// Site is the Site the page is being rendered for.
	Site SiteType

	// Page is the page being rendered.
	Page PageType

	// CSS holds the <link> and <style> elements for every CSS resource
	// the page's Components declared, in order.
	CSS template.HTML

	// HeaderJS holds the <script> elements that belong in the page
	// header.
	HeaderJS template.HTML

	// FooterJS holds the <script> elements that belong at the end of the
	// page body.
	FooterJS template.HTML
}

// Render renders the passed Page to the Writer. Nothing is written until the
// page rendered successfully; if it can't be rendered, a server error page is
// written instead. If the Site implements ServerErrorPager, that will be
// rendered; if not, a simple text page indicating a server error will be
// written.
func Render[SiteType Site, PageType Page](ctx context.Context, out io.Writer, site SiteType, page PageType) {
	body, _ := renderOrFallback(ctx, site, page)
	if _, err := out.Write(body); err != nil {
		Logger(ctx).ErrorContext(ctx, "error writing rendered page", "error", err)
	}
}

// RenderHTTP renders the passed Page as an HTML response with the passed
// status code. If the page can't be rendered, the server error page is sent
// with http.StatusInternalServerError instead.
func RenderHTTP[SiteType Site, PageType Page](ctx context.Context, w http.ResponseWriter, status int, site SiteType, page PageType) {
	body, ok := renderOrFallback(ctx, site, page)
	if !ok {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		Logger(ctx).ErrorContext(ctx, "error writing rendered page", "error", err)
	}
}

func renderOrFallback[SiteType Site, PageType Page](ctx context.Context, site SiteType, page PageType) ([]byte, bool) {
	ctx, span := tracer.Start(ctx, "reach.Render", trace.WithAttributes(
		attribute.String("reach.page", fmt.Sprintf("%T", page)),
		attribute.String("reach.page_key", page.Key(ctx)),
	))
	defer span.End()

	var buf bytes.Buffer
	err := basicRender(ctx, &buf, site, page)
	if err == nil {
		return buf.Bytes(), true
	}

	Logger(ctx).ErrorContext(ctx, "error rendering page", "error", err, "page", fmt.Sprintf("%T", page))
	span.RecordError(err)
	span.SetStatus(codes.Error, "render failed")

	if pager, ok := Site(site).(ServerErrorPager); ok {
		buf.Reset()
		err = basicRender(ctx, &buf, site, pager.ServerErrorPage(ctx))
		if err == nil {
			return buf.Bytes(), false
		}
		Logger(ctx).ErrorContext(ctx, "error rendering server error page", "error", err)
	}
	return []byte("Server error."), false
}

func basicRender[SiteType Site, PageType Page](ctx context.Context, output io.Writer, site SiteType, page PageType) error {
	funcMap := getComponentFuncMap(ctx, site, page)
	tmpl, err := getTemplate(ctx, site, page, funcMap)
	if err != nil {
		return err
	}

	data := RenderData[SiteType, PageType]{
		Site: site,
		Page: page,
	}

	graphs := buildGraphs(ctx, getRecursiveComponents(ctx, page))
	data.CSS, err = renderResources(ctx, site, funcMap, graphs.css, data)
	if err != nil {
		return fmt.Errorf("error rendering CSS for %T: %w", page, err)
	}
	data.HeaderJS, err = renderResources(ctx, site, funcMap, graphs.headJS, data)
	if err != nil {
		return fmt.Errorf("error rendering header JavaScript for %T: %w", page, err)
	}
	data.FooterJS, err = renderResources(ctx, site, funcMap, graphs.footJS, data)
	if err != nil {
		return fmt.Errorf("error rendering footer JavaScript for %T: %w", page, err)
	}

	executed := page.ExecutedTemplate(ctx)
	err = tmpl.ExecuteTemplate(output, executed, data)
	if err != nil {
		return fmt.Errorf("error executing template %q for %T: %w", executed, page, err)
	}
	return nil
}

func getTemplate(ctx context.Context, site Site, page Page, funcMap template.FuncMap) (*template.Template, error) {
	key := page.Key(ctx)
	if cache, ok := site.(TemplateCacher); ok {
		cached := cache.GetCachedTemplate(ctx, key)
		if cached != nil {
			return cached, nil
		}
	}
	tmplPaths := getComponentTemplatePaths(ctx, page)
	if len(tmplPaths) < 1 {
		return nil, fmt.Errorf("error rendering %T: %w", page, ErrNoTemplatePath)
	}
	parsed, err := parseTemplates(site.TemplateDir(ctx), funcMap, tmplPaths...)
	if err != nil {
		return nil, fmt.Errorf("error parsing templates %v for page %T: %w", tmplPaths, page, err)
	}
	if cache, ok := site.(TemplateCacher); ok {
		cache.SetCachedTemplate(ctx, key, parsed)
	}
	return parsed, nil
}

type templateSourcer interface {
	templateSource(body string) string
}

func renderResources(ctx context.Context, site Site, funcs template.FuncMap, resources *graph, data any) (template.HTML, error) {
	ordered, err := resources.walk()
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, res := range ordered {
		switch typed := res.(type) {
		case CSSLink:
			out.WriteString(string(typed.html()))
		case JSLink:
			out.WriteString(string(typed.html()))
		case CSSInline:
			err = renderInline(ctx, &out, site, funcs, typed.TemplatePath, typed, data)
		case JSInline:
			err = renderInline(ctx, &out, site, funcs, typed.TemplatePath, typed, data)
		default:
			err = fmt.Errorf("unexpected resource type %T", res)
		}
		if err != nil {
			return "", err
		}
	}
	return template.HTML(out.String()), nil // #nosec G203 -- built from escaped links and html/template output
}

func renderInline(ctx context.Context, out io.Writer, site Site, funcs template.FuncMap, path string, wrapper templateSourcer, data any) error {
	source, err := resourceSource(ctx, site, path)
	if err != nil {
		return err
	}
	tmpl, err := template.New(path).Funcs(funcs).Parse(wrapper.templateSource(source))
	if err != nil {
		return fmt.Errorf("error parsing %q: %w", path, err)
	}
	err = tmpl.Execute(out, data)
	if err != nil {
		return fmt.Errorf("error executing %q: %w", path, err)
	}
	return nil
}

func resourceSource(ctx context.Context, site Site, path string) (string, error) {
	cache, cacheable := site.(ResourceCacher)
	if cacheable {
		if cached := cache.GetCachedResource(ctx, path); cached != nil {
			return *cached, nil
		}
	}
	contents, err := fs.ReadFile(site.TemplateDir(ctx), path)
	if err != nil {
		return "", fmt.Errorf("error reading %q: %w", path, err)
	}
	source := strings.TrimRight(string(contents), "\n")
	if cacheable {
		cache.SetCachedResource(ctx, path, source)
	}
	return source, nil
}

func getRecursiveComponents(ctx context.Context, component Component) []Component {
	results := []Component{component}

	if uses, ok := component.(ComponentUser); ok {
		children := uses.UseComponents(ctx)
		for _, child := range children {
			results = append(results, getRecursiveComponents(ctx, child)...)
		}
	}
	return results
}

func getComponentTemplatePaths(ctx context.Context, component Component) []string {
	var results []string
	seen := map[string]struct{}{}
	components := getRecursiveComponents(ctx, component)
	for _, comp := range components {
		paths := comp.Templates(ctx)
		for _, path := range paths {
			if _, ok := seen[path]; !ok {
				results = append(results, path)
				seen[path] = struct{}{}
			}
		}
	}
	return results
}

func getComponentFuncMap(ctx context.Context, site Site, component Component) template.FuncMap {
	results := template.FuncMap{}
	if fm, ok := site.(FuncMapExtender); ok {
		results = mergeFuncMaps(results, fm.FuncMap(ctx))
	}
	components := getRecursiveComponents(ctx, component)
	for _, comp := range components {
		fm, ok := comp.(FuncMapExtender)
		if !ok {
			continue
		}
		results = mergeFuncMaps(results, fm.FuncMap(ctx))
	}
	return results
}

func parseTemplates(fsys fs.FS, funcs template.FuncMap, patterns ...string) (*template.Template, error) {
	var files []string
	for _, pattern := range patterns {
		list, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("error listing files for %q: %w", pattern, err)
		}
		if len(list) < 1 {
			return nil, fmt.Errorf("error parsing %q: %w", pattern, ErrTemplatePatternMatchesNoFiles)
		}
		files = append(files, list...)
	}
	if len(files) < 1 {
		return nil, ErrNoTemplatePath
	}
	tmpl := template.New("").Funcs(funcs)
	for _, file := range files {
		sub := tmpl.New(file)
		contents, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("error reading %q: %w", file, err)
		}
		_, err = sub.Parse(string(contents))
		if err != nil {
			return nil, fmt.Errorf("error parsing %q: %w", file, err)
		}
	}
	return tmpl, nil
}

// mergeFuncMaps flattens two FuncMaps into one, with the values in `page`
// overriding the values in `in` if they have the same keys.
func mergeFuncMaps(in template.FuncMap, page template.FuncMap) template.FuncMap {
	res := template.FuncMap{}
	for k, v := range in {
		res[k] = v
	}
	for k, v := range page {
		res[k] = v
	}
	return res
}
