package reach

import (
	"context"
)

const (
	toastSuccessMessage = "Prediction successful!"
	toastErrorMessage   = "Error predicting impression"
)

// Toast is the transient notice shown after a submission. It dismisses
// itself after a few seconds.
type Toast struct {
	Kind     ToastKind
	Animated bool
}

// Templates returns the toast's template.
func (Toast) Templates(_ context.Context) []string {
	return []string{"toast.html.tmpl"}
}

// EmbedCSS returns the toast styles, animations included.
func (Toast) EmbedCSS(_ context.Context) []CSSInline {
	return []CSSInline{
		{TemplatePath: "toast.css.tmpl", CSSInlineRelationCalculator: afterBaseCSS},
	}
}

// EmbedJS returns the script that hides the toast again.
func (Toast) EmbedJS(_ context.Context) []JSInline {
	return []JSInline{
		{TemplatePath: "toast.js.tmpl", PlaceInFooter: true},
	}
}

// Visible reports whether there's anything to show.
func (t Toast) Visible() bool {
	return t.Kind == ToastSuccess || t.Kind == ToastError
}

// Message is the text of the toast.
func (t Toast) Message() string {
	switch t.Kind {
	case ToastSuccess:
		if t.Animated {
			return "✅ " + toastSuccessMessage
		}
		return toastSuccessMessage
	case ToastError:
		if t.Animated {
			return "❌ " + toastErrorMessage
		}
		return toastErrorMessage
	}
	return ""
}

// Class is the class attribute of the toast element.
func (t Toast) Class() string {
	class := "toast"
	switch t.Kind {
	case ToastSuccess:
		class += " toast-success"
	case ToastError:
		class += " toast-error"
	}
	if t.Animated {
		class += " toast-animated"
	}
	return class
}
