package service

import (
	"context"
	"log/slog"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/domain/resource"
	apperrors "github.com/target/coffee-ui/internal/errors"
	"github.com/target/coffee-ui/internal/ports"
)

// Caller is the authenticated party a resource request runs as.
type Caller interface {
	Client() ports.APIClient
	Profile() (domainauth.Profile, bool)
}

// ResourceServiceOptions groups dependencies for ResourceService.
type ResourceServiceOptions struct {
	Registry *resource.Registry // Optional: defaults to the built-in schemas
	Logger   *slog.Logger       // Optional: structured logger
}

// ResourceService runs schema-driven CRUD against the backend on behalf of a caller.
// Role checks here mirror the backend's; the backend remains authoritative.
type ResourceService struct {
	registry *resource.Registry
	logger   *slog.Logger
}

// NewResourceService constructs a new ResourceService.
func NewResourceService(opts ResourceServiceOptions) *ResourceService {
	reg := opts.Registry
	if reg == nil {
		reg = resource.DefaultRegistry()
	}
	return &ResourceService{registry: reg, logger: opts.Logger}
}

func (s *ResourceService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Registry returns the schema registry.
func (s *ResourceService) Registry() *resource.Registry { return s.registry }

// ListRow is one rendered list row.
type ListRow struct {
	Key   string
	Cells []string
}

// ListResult is one page of a collection.
type ListResult struct {
	Schema     *resource.Schema
	Rows       []ListRow
	Page       int
	TotalPages int
	Total      int
	CanWrite   bool
}

// HasPrev reports whether a previous page exists.
func (r ListResult) HasPrev() bool { return r.Page > 1 }

// HasNext reports whether a next page exists.
func (r ListResult) HasNext() bool { return r.Page < r.TotalPages }

func (s *ResourceService) authorize(c Caller, name string, write bool) (*resource.Schema, domainauth.Profile, error) {
	schema, ok := s.registry.Get(name)
	if !ok {
		return nil, domainauth.Profile{}, apperrors.NotFoundf("unknown resource %q", name)
	}
	p, ok := c.Profile()
	if !ok {
		return nil, domainauth.Profile{}, apperrors.Authentication("not authenticated")
	}
	if !schema.CanRead(p) {
		return nil, p, apperrors.Forbidden("You do not have access to " + schema.Title + ".")
	}
	if write && !schema.CanWrite(p) {
		if schema.ReadOnly {
			return nil, p, apperrors.Forbidden(schema.Title + " is read-only.")
		}
		return nil, p, apperrors.Forbidden("You cannot change " + schema.Title + ".")
	}
	return schema, p, nil
}

// Schema returns the named schema if the caller may read it.
func (s *ResourceService) Schema(c Caller, name string) (*resource.Schema, error) {
	schema, _, err := s.authorize(c, name, false)
	return schema, err
}

func (s *ResourceService) fetchAll(ctx context.Context, c Caller, schema *resource.Schema) ([]resource.Row, error) {
	var rows []resource.Row
	if err := c.Client().Get(ctx, schema.CollectionPath(), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns one page of the collection, 1-based. Out-of-range pages are clamped.
func (s *ResourceService) List(ctx context.Context, c Caller, name string, page int) (ListResult, error) {
	schema, p, err := s.authorize(c, name, false)
	if err != nil {
		return ListResult{}, err
	}
	rows, err := s.fetchAll(ctx, c, schema)
	if err != nil {
		return ListResult{}, err
	}

	size := schema.PageSize
	total := len(rows)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	page = min(max(page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, total)

	out := ListResult{
		Schema:     schema,
		Page:       page,
		TotalPages: pages,
		Total:      total,
		CanWrite:   schema.CanWrite(p),
		Rows:       make([]ListRow, 0, end-start),
	}
	for _, row := range rows[start:end] {
		cells, cerr := schema.Cells(row)
		if cerr != nil {
			s.log().Warn("render row failed", "resource", name, "error", cerr)
			cells = make([]string, len(schema.Columns))
		}
		out.Rows = append(out.Rows, ListRow{Key: schema.KeyOf(row), Cells: cells})
	}
	return out, nil
}

// Get finds one row by key. The backend has no item endpoint, so the collection is scanned.
func (s *ResourceService) Get(ctx context.Context, c Caller, name, key string) (*resource.Schema, resource.Row, error) {
	schema, _, err := s.authorize(c, name, false)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.fetchAll(ctx, c, schema)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range rows {
		if schema.KeyOf(row) == key {
			return schema, row, nil
		}
	}
	return schema, nil, apperrors.NotFoundf("%s %q not found", schema.Singular, key)
}

// Create posts a new row.
func (s *ResourceService) Create(ctx context.Context, c Caller, name string, sub resource.Submission) (resource.Row, error) {
	schema, _, err := s.authorize(c, name, true)
	if err != nil {
		return nil, err
	}
	var out resource.Row
	if err := c.Client().Post(ctx, schema.CollectionPath(), sub.Values, &out); err != nil {
		return nil, err
	}
	s.log().Info("resource created", "resource", name, "key", schema.KeyOf(out))
	return out, nil
}

// Update patches an existing row.
func (s *ResourceService) Update(ctx context.Context, c Caller, name, key string, sub resource.Submission) (resource.Row, error) {
	schema, _, err := s.authorize(c, name, true)
	if err != nil {
		return nil, err
	}
	if !resource.ValidKey(key) {
		return nil, apperrors.Validation("invalid key")
	}
	var out resource.Row
	if err := c.Client().Patch(ctx, schema.ItemPath(key), sub.Values, &out); err != nil {
		return nil, err
	}
	s.log().Info("resource updated", "resource", name, "key", key)
	return out, nil
}

// Delete removes a row.
func (s *ResourceService) Delete(ctx context.Context, c Caller, name, key string) error {
	schema, _, err := s.authorize(c, name, true)
	if err != nil {
		return err
	}
	if !resource.ValidKey(key) {
		return apperrors.Validation("invalid key")
	}
	if err := c.Client().Delete(ctx, schema.ItemPath(key)); err != nil {
		return err
	}
	s.log().Info("resource deleted", "resource", name, "key", key)
	return nil
}

// Refill adds quantity to an inventory item's stock.
func (s *ResourceService) Refill(ctx context.Context, c Caller, name, key string, quantity float64) (resource.Row, error) {
	schema, _, err := s.authorize(c, name, true)
	if err != nil {
		return nil, err
	}
	if !schema.Refill {
		return nil, apperrors.NotFoundf("%s cannot be refilled", schema.Title)
	}
	if !resource.ValidKey(key) {
		return nil, apperrors.Validation("invalid key")
	}
	if quantity <= 0 {
		return nil, apperrors.ValidationField("quantity", "Quantity must be greater than 0.")
	}
	var out resource.Row
	body := map[string]any{"quantity": quantity}
	if err := c.Client().Post(ctx, schema.RefillPath(key), body, &out); err != nil {
		return nil, err
	}
	s.log().Info("inventory refilled", "key", key, "quantity", quantity)
	return out, nil
}
