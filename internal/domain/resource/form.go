package resource

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode distinguishes create from update submissions.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Submission is a parsed form. Values holds the typed backend body; Raw holds the
// submitted strings for re-rendering. Passwords are never kept in Raw.
type Submission struct {
	Values map[string]any
	Raw    map[string]string
}

var validate = validator.New()

// ParseForm converts form values into a typed backend body, collecting one error message per field.
func (s *Schema) ParseForm(form url.Values, mode Mode) (Submission, map[string]string) {
	sub := Submission{Values: make(map[string]any), Raw: make(map[string]string)}
	fieldErrors := make(map[string]string)

	for _, f := range s.Fields {
		if mode == ModeUpdate && f.Immutable {
			continue
		}
		raw := form.Get(f.Name)
		if f.Kind != KindPassword {
			raw = strings.TrimSpace(raw)
			sub.Raw[f.Name] = raw
		}

		if f.Kind == KindBool {
			sub.Values[f.Name] = parseBool(raw)
			continue
		}

		if raw == "" {
			if mode == ModeUpdate && f.OptionalOnUpdate {
				continue
			}
			if f.Required {
				fieldErrors[f.Name] = f.Label + " is required."
			}
			continue
		}

		v, msg := convert(f, raw)
		if msg != "" {
			fieldErrors[f.Name] = msg
			continue
		}
		if msg := checkRules(f, v); msg != "" {
			fieldErrors[f.Name] = msg
			continue
		}
		sub.Values[f.Name] = v
	}

	return sub, fieldErrors
}

// FormValues renders a row as form strings for an edit form. Passwords are left blank.
func (s *Schema) FormValues(row Row) map[string]string {
	out := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		if f.Kind == KindPassword {
			continue
		}
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		if f.Kind == KindBool {
			if b, _ := v.(bool); b {
				out[f.Name] = "on"
			}
			continue
		}
		out[f.Name] = FormatValue(v)
	}
	return out
}

func convert(f Field, raw string) (any, string) {
	switch f.Kind {
	case KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, f.Label + " must be a number."
		}
		return n, ""
	case KindInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, f.Label + " must be a whole number."
		}
		return n, ""
	case KindEmail:
		if err := validate.Var(raw, "email"); err != nil {
			return nil, "Enter a valid email address."
		}
		return raw, ""
	default:
		return raw, ""
	}
}

func checkRules(f Field, v any) string {
	if f.Rules == "" {
		return ""
	}
	err := validate.Var(v, f.Rules)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return f.Label + " is invalid."
	}
	return RuleMessage(f.Label, verrs[0].Tag(), verrs[0].Param())
}

// RuleMessage renders a validator tag failure as a user-facing sentence.
func RuleMessage(label, tag, param string) string {
	switch tag {
	case "required":
		return label + " is required."
	case "email":
		return "Enter a valid email address."
	case "gte":
		return fmt.Sprintf("%s must be at least %s.", label, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s.", label, param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s.", label, param)
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters.", label, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(param, " ", ", "))
	default:
		return label + " is invalid."
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "on", "true", "1", "yes":
		return true
	default:
		return false
	}
}
