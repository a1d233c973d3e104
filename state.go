package reach

import (
	"net/url"

	"impractical.co/reach/internal/prediction"
)

// ToastKind is the notice shown after a submission.
type ToastKind int

const (
	// ToastNone shows no toast, before any submission or after a
	// rejected one.
	ToastNone ToastKind = iota
	// ToastSuccess follows a prediction.
	ToastSuccess
	// ToastError follows a failed prediction request.
	ToastError
)

// State is what the predict page shows after the last submission: the
// values that were submitted, why any of them were rejected, the predicted
// impression and the toast.
//
// Impression is nil until a prediction succeeds, and goes back to nil
// whenever one fails.
type State struct {
	Values     url.Values
	Errors     prediction.FieldErrors
	Impression *float64
	Toast      ToastKind
}

// Succeeded returns the state after the prediction service answered with
// impression.
func (s State) Succeeded(impression float64) State {
	s.Impression = &impression
	s.Errors = nil
	s.Toast = ToastSuccess
	return s
}

// Failed returns the state after the prediction request failed for any
// reason. The previous impression is cleared.
func (s State) Failed() State {
	s.Impression = nil
	s.Errors = nil
	s.Toast = ToastError
	return s
}

// Rejected returns the state after the submitted values failed validation.
// No request is made, so the impression and toast are left alone.
func (s State) Rejected(errs prediction.FieldErrors) State {
	s.Errors = errs
	s.Toast = ToastNone
	return s
}
