package httpx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/domain/resource"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/http/ui/viewmodel"
	"github.com/target/coffee-ui/internal/ports"
	"github.com/target/coffee-ui/internal/service"
)

func resourceURL(name string) string { return ResourcePrefix + name }

func resourceItemURL(name, key string) string {
	return ResourcePrefix + name + "/" + url.PathEscape(key)
}

// caller returns the request's session as a service caller.
func caller(r *http.Request) service.Caller {
	if s, ok := SessionFromContext(r.Context()); ok {
		return s
	}
	return anonymousCaller{}
}

type anonymousCaller struct{}

func (anonymousCaller) Client() ports.APIClient { return nil }

func (anonymousCaller) Profile() (domainauth.Profile, bool) { return domainauth.Profile{}, false }

func (h *UIHandlers) listMeta(schema *resource.Schema) PageMeta {
	return PageMeta{
		Title:       schema.Title + " - Coffee Shop",
		PageTitle:   schema.Title,
		CurrentPage: PageResourceList,
	}
}

// ResourceList renders one page of a collection. GET /r/{resource}.
func (h *UIHandlers) ResourceList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("resource")
	page := max(parseIntQuery(r, "page", 1), 1)

	result, err := h.Resources.List(r.Context(), caller(r), name, page)
	if err != nil {
		h.handleBackendError(w, r, err)
		return
	}

	data := h.pageData(r, h.listMeta(result.Schema)).
		WithPagination(PaginationData{
			Page:       result.Page,
			PageSize:   result.Schema.PageSize,
			TotalPages: result.TotalPages,
			TotalCount: result.Total,
			ItemCount:  len(result.Rows),
			BasePath:   resourceURL(name),
		}).
		With("Schema", result.Schema).
		With("Rows", result.Rows).
		With("CanWrite", result.CanWrite).
		With("BasePath", resourceURL(name)).
		Build()
	h.renderPage(w, r, http.StatusOK, data)
}

// ResourceNew renders an empty create form. GET /r/{resource}/new.
func (h *UIHandlers) ResourceNew(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.writableSchema(w, r)
	if !ok {
		return
	}
	data := h.formExtra(r, schema, FormModeCreate, "", nil)
	data["FormData"] = resource.Submission{Raw: map[string]string{}}
	h.renderResourceForm(w, r, http.StatusOK, mergeInto(NewTemplateData(r, formMeta(schema, FormModeCreate)).Build(), data))
}

// ResourceEdit renders the edit form for one row. GET /r/{resource}/{key}/edit.
func (h *UIHandlers) ResourceEdit(w http.ResponseWriter, r *http.Request) {
	schema, ok := h.writableSchema(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	_, row, err := h.Resources.Get(r.Context(), caller(r), schema.Name, key)
	if err != nil {
		h.handleBackendError(w, r, err)
		return
	}

	current := schema.FormValues(row)
	data := h.formExtra(r, schema, FormModeEdit, key, current)
	data["FormData"] = resource.Submission{Raw: current}
	h.renderResourceForm(w, r, http.StatusOK, mergeInto(NewTemplateData(r, formMeta(schema, FormModeEdit)).Build(), data))
}

// ResourceCreate handles POST /r/{resource}.
func (h *UIHandlers) ResourceCreate(w http.ResponseWriter, r *http.Request) {
	h.submitResource(w, r, FormModeCreate)
}

// ResourceUpdate handles POST /r/{resource}/{key}.
func (h *UIHandlers) ResourceUpdate(w http.ResponseWriter, r *http.Request) {
	h.submitResource(w, r, FormModeEdit)
}

func (h *UIHandlers) submitResource(w http.ResponseWriter, r *http.Request, mode FormMode) {
	schema, ok := h.writableSchema(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")

	var current map[string]string
	if mode == FormModeEdit {
		// Immutable fields are not submitted on edit; the form shows them from the stored row.
		if _, row, err := h.Resources.Get(r.Context(), caller(r), schema.Name, key); err == nil {
			current = schema.FormValues(row)
		}
	}

	toast := schema.Singular + " created."
	if mode == FormModeEdit {
		toast = schema.Singular + " updated."
	}

	HandleForm(FormHandlerOpts[resource.Submission]{
		W:            w,
		R:            r,
		Mode:         mode,
		Parser:       resourceFormParser(schema, mode),
		Service:      resourceForm{svc: h.Resources, caller: caller(r), name: schema.Name},
		Renderer:     h.renderResourceForm,
		SuccessURL:   resourceURL(schema.Name),
		SuccessToast: toast,
		PageMeta:     formMeta(schema, mode),
		ExtraData:    h.formExtra(r, schema, mode, key, current),
		Intercept:    h.interceptFormError,
	})
}

// interceptFormError handles failures that must not re-render the form.
func (h *UIHandlers) interceptFormError(w http.ResponseWriter, r *http.Request, err error) bool {
	if h.interceptAuthFailure(w, r, err) {
		return true
	}
	if apperrors.IsForbidden(err) && apperrors.GetField(err) == "" {
		h.handleBackendError(w, r, err)
		return true
	}
	return false
}

// ResourceDelete handles POST /r/{resource}/{key}/delete. htmx callers get an empty 200
// so the row can be swapped out.
func (h *UIHandlers) ResourceDelete(w http.ResponseWriter, r *http.Request) {
	name, key := r.PathValue("resource"), r.PathValue("key")
	err := h.Resources.Delete(r.Context(), caller(r), name, key)
	if err != nil {
		if h.interceptAuthFailure(w, r, err) {
			return
		}
		if IsHTMX(r) {
			triggerToast(w, processError(err, nil), "error")
			w.WriteHeader(StatusFor(err))
			return
		}
		h.handleBackendError(w, r, err)
		return
	}

	if IsHTMX(r) {
		triggerToast(w, "Deleted "+key+".", "success")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, resourceURL(name), http.StatusSeeOther)
}

// ResourceRefill handles POST /r/{resource}/{key}/refill.
func (h *UIHandlers) ResourceRefill(w http.ResponseWriter, r *http.Request) {
	name, key := r.PathValue("resource"), r.PathValue("key")
	qty, perr := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("quantity")), 64)
	if perr != nil {
		qty = 0
	}

	_, err := h.Resources.Refill(r.Context(), caller(r), name, key, qty)
	if err != nil {
		if h.interceptAuthFailure(w, r, err) {
			return
		}
		if IsHTMX(r) {
			triggerToast(w, processError(err, nil), "error")
			w.WriteHeader(StatusFor(err))
			return
		}
		h.handleBackendError(w, r, err)
		return
	}

	triggerToast(w, "Refilled "+key+".", "success")
	redirectAfterPost(w, r, resourceURL(name))
}

// writableSchema resolves the path's schema for a write, answering the request itself on failure.
func (h *UIHandlers) writableSchema(w http.ResponseWriter, r *http.Request) (*resource.Schema, bool) {
	schema, err := h.Resources.Schema(caller(r), r.PathValue("resource"))
	if err != nil {
		h.handleBackendError(w, r, err)
		return nil, false
	}
	if !schema.CanWrite(profileOrZero(r)) {
		msg := "You cannot change " + schema.Title + "."
		if schema.ReadOnly {
			msg = schema.Title + " is read-only."
		}
		h.handleBackendError(w, r, apperrors.Forbidden(msg))
		return nil, false
	}
	return schema, true
}

func profileOrZero(r *http.Request) domainauth.Profile {
	p, _ := ProfileFromContext(r.Context())
	return p
}

func formMeta(schema *resource.Schema, mode FormMode) PageMeta {
	title := "New " + strings.ToLower(schema.Singular)
	if mode == FormModeEdit {
		title = "Edit " + strings.ToLower(schema.Singular)
	}
	return PageMeta{
		Title:       title + " - Coffee Shop",
		PageTitle:   title,
		CurrentPage: PageResourceForm,
	}
}

// formExtra is the data every render of a resource form carries.
func (h *UIHandlers) formExtra(r *http.Request, schema *resource.Schema, mode FormMode, key string, current map[string]string) map[string]any {
	action := resourceURL(schema.Name)
	if mode == FormModeEdit {
		action = resourceItemURL(schema.Name, key)
	}
	extra := map[string]any{
		"Schema":   schema,
		"Mode":     mode,
		"Key":      key,
		"Action":   action,
		"BasePath": resourceURL(schema.Name),
		"Current":  current,
	}
	if nav := h.navFor(r); len(nav) > 0 {
		extra["Nav"] = nav
	}
	return extra
}

// renderResourceForm derives the input list from the submitted values and errors, then renders.
func (h *UIHandlers) renderResourceForm(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	schema, ok := data["Schema"].(*resource.Schema)
	if !ok {
		h.renderErrorPage(w, r, errorPage{Status: http.StatusInternalServerError, Title: "Something went wrong", Message: "Form is not configured."})
		return
	}
	mode, _ := data["Mode"].(FormMode)
	sub, _ := data["FormData"].(resource.Submission)
	errs, _ := data["Errors"].(map[string]string)
	current, _ := data["Current"].(map[string]string)

	data["Fields"] = buildFormFields(schema, mode, formValues{raw: sub.Raw, current: current, errs: errs})
	h.renderPage(w, r, status, data)
}

type formValues struct {
	raw     map[string]string
	current map[string]string
	errs    map[string]string
}

func buildFormFields(schema *resource.Schema, mode FormMode, v formValues) []viewmodel.FormField {
	fields := make([]viewmodel.FormField, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		ff := viewmodel.FormField{
			Name:      f.Name,
			Label:     f.Label,
			InputType: f.Kind.InputType(),
			Error:     v.errs[f.Name],
			Required:  f.Required && !(mode == FormModeEdit && f.OptionalOnUpdate),
			ReadOnly:  mode == FormModeEdit && f.Immutable,
		}
		value, submitted := v.raw[f.Name]
		if !submitted || ff.ReadOnly {
			value = v.current[f.Name]
		}
		if f.Kind == resource.KindBool {
			ff.Checked = value == "on" || value == "true"
		} else {
			ff.Value = value
		}
		if f.Kind == resource.KindNumber {
			ff.Step = "any"
		}
		fields = append(fields, ff)
	}
	return fields
}

func resourceFormParser(schema *resource.Schema, mode FormMode) FormParser[resource.Submission] {
	m := resource.ModeCreate
	if mode == FormModeEdit {
		m = resource.ModeUpdate
	}
	return func(r *http.Request) (resource.Submission, map[string]string) {
		if err := r.ParseForm(); err != nil {
			return resource.Submission{Raw: map[string]string{}}, map[string]string{"_form": "Could not read the form."}
		}
		return schema.ParseForm(r.PostForm, m)
	}
}

// resourceForm adapts ResourcesService to FormService for one collection and caller.
type resourceForm struct {
	svc    ResourcesService
	caller service.Caller
	name   string
}

func (f resourceForm) Create(ctx context.Context, sub resource.Submission) (any, error) {
	return f.svc.Create(ctx, f.caller, f.name, sub)
}

func (f resourceForm) Update(ctx context.Context, key string, sub resource.Submission) (any, error) {
	return f.svc.Update(ctx, f.caller, f.name, key, sub)
}

func mergeInto(dst, src map[string]any) map[string]any {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
