package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/target/coffee-ui/internal/http/ui/viewmodel"
)

// PaginationData contains pagination information for list views.
type PaginationData struct {
	Page       int
	PageSize   int
	TotalPages int
	TotalCount int
	ItemCount  int // Items on this page
	BasePath   string
}

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
	r    *http.Request
}

// NewTemplateData creates a new TemplateDataBuilder initialized with basePageData.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{
		data: basePageData(r, meta),
		r:    r,
	}
}

// WithPagination adds a viewmodel.Pagination under "Pagination" and builds PrevURL/NextURL.
func (b *TemplateDataBuilder) WithPagination(opts PaginationData) *TemplateDataBuilder {
	p := viewmodel.Pagination{
		Page:       opts.Page,
		TotalPages: opts.TotalPages,
		TotalCount: opts.TotalCount,
		HasPrev:    opts.Page > 1,
		HasNext:    opts.Page < opts.TotalPages,
	}
	if opts.ItemCount > 0 {
		p.StartIndex = (opts.Page-1)*opts.PageSize + 1
		p.EndIndex = p.StartIndex + opts.ItemCount - 1
	}
	if p.HasPrev {
		p.PrevURL = buildPageURL(opts.BasePath, b.r.URL.Query(), opts.Page-1)
	}
	if p.HasNext {
		p.NextURL = buildPageURL(opts.BasePath, b.r.URL.Query(), opts.Page+1)
	}
	b.data["Pagination"] = p
	return b
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	b.data["Error"] = true
	b.data["ErrorMessage"] = msg
	return b
}

// WithFieldErrors adds field-level validation errors.
func (b *TemplateDataBuilder) WithFieldErrors(errs map[string]string) *TemplateDataBuilder {
	if len(errs) > 0 {
		b.data["Errors"] = errs
	}
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map.
func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}

// buildPageURL returns basePath with page set, preserving other non-empty query params.
func buildPageURL(basePath string, q url.Values, page int) string {
	qq := make(url.Values, len(q))
	for k, v := range q {
		if strings.HasPrefix(k, "hx-") || strings.HasPrefix(k, "hx_") {
			continue
		}
		tmp := make([]string, 0, len(v))
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				tmp = append(tmp, s)
			}
		}
		if len(tmp) > 0 {
			qq[k] = tmp
		}
	}
	qq.Set("page", strconv.Itoa(page))
	return basePath + "?" + qq.Encode()
}
