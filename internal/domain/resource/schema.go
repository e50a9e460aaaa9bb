// Package resource describes the backend collections the UI can browse and edit.
// A Schema drives the generic list and form pages: which fields a form has, how each
// list column is derived from a row, and which roles may read or write.
package resource

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
)

// FieldKind selects the HTML input and the value conversion for a field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindNumber   FieldKind = "number"
	KindInteger  FieldKind = "integer"
	KindBool     FieldKind = "bool"
	KindPassword FieldKind = "password"
	KindTime     FieldKind = "time"
	KindDateTime FieldKind = "datetime"
)

// InputType returns the HTML input type for the kind.
func (k FieldKind) InputType() string {
	switch k {
	case KindEmail:
		return "email"
	case KindNumber, KindInteger:
		return "number"
	case KindBool:
		return "checkbox"
	case KindPassword:
		return "password"
	case KindTime:
		return "time"
	case KindDateTime:
		return "datetime-local"
	default:
		return "text"
	}
}

// Field is one editable attribute of a row.
type Field struct {
	Name  string
	Label string
	Kind  FieldKind
	// Required fields must be non-empty on create, and on update unless OptionalOnUpdate.
	Required bool
	// Immutable fields are set on create only. They render read-only on edit and are never sent in a PATCH.
	Immutable bool
	// OptionalOnUpdate fields left blank on edit keep their current value.
	OptionalOnUpdate bool
	// Rules are extra validator tags applied to the converted value, e.g. "gte=0".
	Rules string
}

// Column is one list column. Expr is a JMESPath expression evaluated against the row.
type Column struct {
	Header string
	Expr   string
}

// Row is one backend record as decoded from JSON.
type Row map[string]any

// Schema describes one backend collection.
type Schema struct {
	// Name is both the route segment under /r/ and the backend collection path.
	Name     string
	Title    string
	Singular string
	Key      string
	Fields   []Field
	Columns  []Column
	// ReadRole and WriteRole restrict access to one role. Empty means any authenticated user.
	ReadRole  domainauth.Role
	WriteRole domainauth.Role
	ReadOnly  bool
	PageSize  int
	// Refill enables the inventory refill action.
	Refill bool
}

// CollectionPath is the backend path for list and create.
func (s *Schema) CollectionPath() string { return "/" + s.Name + "/" }

// ItemPath is the backend path for one row. Dot-only keys are percent-encoded so URL
// resolution never treats them as dot segments.
func (s *Schema) ItemPath(key string) string {
	seg := url.PathEscape(key)
	if isDotSegment(key) {
		seg = strings.ReplaceAll(key, ".", "%2E")
	}
	return "/" + s.Name + "/" + seg
}

// ValidKey reports whether key can address a single row.
func ValidKey(key string) bool { return key != "" && !isDotSegment(key) }

func isDotSegment(key string) bool { return key == "." || key == ".." }

// RefillPath is the backend path for the refill action.
func (s *Schema) RefillPath(key string) string { return s.ItemPath(key) + "/refill" }

// CanRead reports whether p may list the collection.
func (s *Schema) CanRead(p domainauth.Profile) bool {
	return s.ReadRole == "" || p.Role == s.ReadRole
}

// CanWrite reports whether p may create, edit or delete rows.
func (s *Schema) CanWrite(p domainauth.Profile) bool {
	if s.ReadOnly {
		return false
	}
	if !s.CanRead(p) {
		return false
	}
	return s.WriteRole == "" || p.Role == s.WriteRole
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeyOf returns the key value of a row.
func (s *Schema) KeyOf(row Row) string {
	return FormatValue(row[s.Key])
}

// Cells evaluates every column against row.
func (s *Schema) Cells(row Row) ([]string, error) {
	data := map[string]any(row)
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		v, err := jmespath.Search(c.Expr, data)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Header, err)
		}
		out[i] = FormatValue(v)
	}
	return out, nil
}

// Validate checks the schema for configuration mistakes.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return errors.New("schema name is required")
	}
	if s.Key == "" {
		return fmt.Errorf("schema %s: key is required", s.Name)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %s: at least one column is required", s.Name)
	}
	for _, c := range s.Columns {
		if _, err := jmespath.Compile(c.Expr); err != nil {
			return fmt.Errorf("schema %s: column %q: %w", s.Name, c.Header, err)
		}
	}
	if !s.ReadOnly {
		if _, ok := s.Field(s.Key); !ok {
			return fmt.Errorf("schema %s: key field %q is not a form field", s.Name, s.Key)
		}
	}
	return nil
}

// FormatValue renders a decoded JSON value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, FormatValue(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// Registry holds the schemas by name.
type Registry struct {
	byName map[string]*Schema
	order  []string
}

// NewRegistry validates and indexes schemas. Order of All follows the argument order.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate schema %q", s.Name)
		}
		if s.PageSize <= 0 {
			s.PageSize = 25
		}
		r.byName[s.Name] = &s
		r.order = append(r.order, s.Name)
	}
	return r, nil
}

// Get returns the named schema.
func (r *Registry) Get(name string) (*Schema, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns every schema in registration order.
func (r *Registry) All() []*Schema {
	out := make([]*Schema, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Readable returns the schemas p may list.
func (r *Registry) Readable(p domainauth.Profile) []*Schema {
	var out []*Schema
	for _, s := range r.All() {
		if s.CanRead(p) {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the sorted schema names.
func (r *Registry) Names() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}
