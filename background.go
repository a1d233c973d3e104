package reach

import (
	"context"

	"impractical.co/reach/internal/photos"
)

// Background is the full-page photo behind the form, with a credit for the
// photographer. Without a photo a gradient is shown instead.
type Background struct {
	Photo *photos.Photo
}

// Templates returns the background template.
func (Background) Templates(_ context.Context) []string {
	return []string{"background.html.tmpl"}
}

// EmbedCSS returns the background styles, gradient fallback included.
func (Background) EmbedCSS(_ context.Context) []CSSInline {
	return []CSSInline{
		{TemplatePath: "background.css.tmpl", CSSInlineRelationCalculator: afterBaseCSS},
	}
}
