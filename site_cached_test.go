package reach_test

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"impractical.co/reach"
)

type CachedSiteResult struct{}

func (CachedSiteResult) Templates(_ context.Context) []string {
	return []string{"layout.tmpl", "result.tmpl"}
}

func (CachedSiteResult) Key(_ context.Context) string {
	return "result.tmpl"
}

func (CachedSiteResult) ExecutedTemplate(_ context.Context) string {
	return "layout.tmpl"
}

type CachedSiteToast struct {
	Animated bool
}

func (toast CachedSiteToast) Templates(_ context.Context) []string {
	templates := []string{"layout.tmpl", "toast.tmpl"}
	if toast.Animated {
		templates = append(templates, "emoji.tmpl")
	}
	return templates
}

func (toast CachedSiteToast) Key(_ context.Context) string {
	// the animated toast parses an extra template, so it needs its own key
	if toast.Animated {
		return "toast.tmpl:animated"
	}
	return "toast.tmpl"
}

func (CachedSiteToast) ExecutedTemplate(_ context.Context) string {
	return "layout.tmpl"
}

func (CachedSiteToast) EmbedCSS(_ context.Context) []reach.CSSInline {
	return []reach.CSSInline{{TemplatePath: "toast.css"}}
}

func newCachedSiteFS() fstest.MapFS {
	return templateFS(map[string]string{
		"result.tmpl": `{{ define "content" }}result.tmpl{{ end }}`,
		"toast.tmpl":  `{{ define "content" }}toast.tmpl{{ if .Page.Animated }} {{ block "emoji" . }}{{ end }}{{ end }}{{ end }}`,
		"emoji.tmpl":  `{{ define "emoji" }}with emoji.tmpl{{ end }}`,
		"layout.tmpl": `{{ block "content" . }}layout.tmpl{{ end }}{{ .CSS }}`,
		"toast.css":   `.toast{}`,
	})
}

func TestCachedSite(t *testing.T) {
	t.Parallel()

	ctx := reach.LoggingContext(context.Background(), slog.Default())
	templateFS := newCachedSiteFS()
	site := reach.NewCachedSite(templateFS)
	renderChangeAndRerender(t, ctx, templateFS, CachedSiteResult{}, site, "result.tmpl", "result.tmpl")
	renderChangeAndRerender(t, ctx, templateFS, CachedSiteToast{}, site, "toast.tmpl", "toast.tmpl<style>\n.toast{}\n</style>\n")
	renderChangeAndRerender(t, ctx, templateFS, CachedSiteToast{Animated: true}, site, "toast.tmpl", "toast.tmpl with emoji.tmpl<style>\n.toast{}\n</style>\n")
	renderChangeAndRerender(t, ctx, templateFS, CachedSiteToast{}, site, "toast.css", "toast.tmpl<style>\n.toast{}\n</style>\n")
}

func TestCachedSitePurge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	templateFS := newCachedSiteFS()
	site := reach.NewCachedSite(templateFS)

	var out bytes.Buffer
	reach.Render(ctx, &out, site, CachedSiteResult{})
	assert.Equal(t, "result.tmpl", out.String())

	templateFS["result.tmpl"].Data = []byte(`{{ define "content" }}edited result.tmpl{{ end }}`)
	out.Reset()
	reach.Render(ctx, &out, site, CachedSiteResult{})
	assert.Equal(t, "result.tmpl", out.String(), "cached template should still be used")

	site.Purge(ctx)
	out.Reset()
	reach.Render(ctx, &out, site, CachedSiteResult{})
	assert.Equal(t, "edited result.tmpl", out.String())
}

func renderChangeAndRerender(t *testing.T, ctx context.Context, fs fstest.MapFS, page reach.Page, site reach.Site, file, expected string) {
	t.Helper()

	var out bytes.Buffer
	reach.Render(ctx, &out, site, page)
	if output := out.String(); output != expected {
		t.Errorf("Expected to get %q, got %q", expected, output)
	}
	out.Reset()
	oldData := slices.Clone(fs[file].Data)
	fs[file].Data = []byte(strings.NewReplacer("tmpl", "changed", "toast", "changed").Replace(string(oldData)))
	reach.Render(ctx, &out, site, page)
	if output := out.String(); output != expected {
		t.Errorf("Expected to get %q after modifying %s, got %q", expected, file, output)
	}
	fs[file].Data = oldData
}
