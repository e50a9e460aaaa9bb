package httpx

import (
	"net/http"

	apperrors "github.com/target/coffee-ui/internal/errors"
)

// ErrorRenderer renders a page with the given status and data.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, status int, data map[string]any)

// ErrorOpts contains all options needed to render an inline error.
type ErrorOpts struct {
	W http.ResponseWriter
	R *http.Request
	// Err is the error that occurred (optional, can be nil if only field errors)
	Err error
	// Message overrides the general message derived from Err.
	Message string
	// FieldErrors contains field-level validation errors (field name → error message)
	FieldErrors map[string]string
	// Renderer is typically h.renderPage
	Renderer ErrorRenderer
	PageMeta PageMeta
	// Data is merged into the template data, e.g. to preserve submitted values.
	Data map[string]any
	// StatusCode overrides DetermineErrorStatus.
	StatusCode int
	// ShowToast also sends the general message as an htmx toast.
	ShowToast bool
}

// DetermineErrorStatus picks the status of an inline error response. htmx only swaps 2xx
// responses by default, so htmx requests get 200 for anything that re-renders a form.
func DetermineErrorStatus(r *http.Request, err error, hasFieldErrors bool) int {
	if IsHTMX(r) {
		return http.StatusOK
	}
	if err == nil {
		if hasFieldErrors {
			return http.StatusUnprocessableEntity
		}
		return http.StatusOK
	}
	if apperrors.IsValidation(err) {
		return http.StatusUnprocessableEntity
	}
	return StatusFor(err)
}

// RenderError re-renders a page with a general message and field errors derived from err.
func RenderError(opts ErrorOpts) {
	if opts.Renderer == nil {
		http.Error(opts.W, "misconfigured error renderer", http.StatusInternalServerError)
		return
	}

	builder := NewTemplateData(opts.R, opts.PageMeta)

	generalError := processError(opts.Err, &opts.FieldErrors)
	if opts.Message != "" {
		generalError = opts.Message
	}

	if len(opts.FieldErrors) > 0 {
		builder.WithFieldErrors(opts.FieldErrors)
	}

	if generalError != "" {
		builder.WithError(generalError)
	} else if len(opts.FieldErrors) > 0 {
		builder.WithError(errMsgFixBelow)
	}

	for k, v := range opts.Data {
		builder.With(k, v)
	}

	if opts.ShowToast && generalError != "" {
		triggerToast(opts.W, generalError, "error")
	}

	status := opts.StatusCode
	if status == 0 {
		status = DetermineErrorStatus(opts.R, opts.Err, len(opts.FieldErrors) > 0)
	}
	opts.Renderer(opts.W, opts.R, status, builder.Build())
}

// processError returns the general message for err. A validation error naming a field is
// attached to that field instead.
func processError(err error, fieldErrors *map[string]string) string {
	if err == nil {
		return ""
	}

	if field := apperrors.GetField(err); field != "" && apperrors.IsValidation(err) && fieldErrors != nil {
		if *fieldErrors == nil {
			*fieldErrors = make(map[string]string)
		}
		(*fieldErrors)[field] = apperrors.Message(err, "This field has an invalid value.")
		return errMsgFixBelow
	}

	switch {
	case apperrors.IsTimeout(err):
		return "Request timed out. Please try again."
	case apperrors.IsCanceled(err):
		return "Request was canceled."
	case apperrors.IsConflict(err):
		return apperrors.Message(err, "This value already exists. Please choose a different one.")
	case apperrors.IsValidation(err), apperrors.IsForbidden(err), apperrors.IsNotFound(err):
		return apperrors.Message(err, "The request was rejected.")
	default:
		return userMessage(err)
	}
}
