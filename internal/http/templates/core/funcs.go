// Package core holds the template helpers shared by every page.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
}

// Funcs returns a template.FuncMap containing helpers that are broadly useful across templates.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"sectionTmpl":  deps.ContentTemplateFor,
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
		"contains":     strings.Contains,
		"formatNumber": FormatNumber,
		"money":        Money,
		"truncateText": TruncateText,
		"initials":     Initials,
		"dict":         Dict,
		"pathEscape":   url.PathEscape,
	}

	addRenderFuncs(funcs, deps)
	return funcs
}

func addRenderFuncs(funcs template.FuncMap, deps Deps) {
	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		if deps.ContentTemplateFor == nil {
			return "", errors.New("content template lookup not configured")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - rendered by our own html/template set; values were escaped during execution.
		return template.HTML(buf.String()), nil
	}

	funcs["toJSON"] = func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// FormatNumber formats integers and floats with comma thousands separators.
// Floats keep up to two decimals.
func FormatNumber(v any) string {
	switch x := v.(type) {
	case int:
		return groupInt(int64(x))
	case int64:
		return groupInt(x)
	case int32:
		return groupInt(int64(x))
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return groupInt(int64(x))
		}
		return groupFloat(x, 2)
	case float32:
		return FormatNumber(float64(x))
	default:
		return fmt.Sprint(v)
	}
}

// Money formats an amount with two decimals and a leading dollar sign.
func Money(v any) string {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return x
		}
		f = parsed
	default:
		return fmt.Sprint(v)
	}
	if f < 0 {
		return "-$" + groupFloat(-f, 2)
	}
	return "$" + groupFloat(f, 2)
}

func groupInt(x int64) string {
	neg := x < 0
	var s string
	if neg {
		s = strconv.FormatUint(uint64(-x), 10)
	} else {
		s = strconv.FormatUint(uint64(x), 10)
	}
	return withCommas(s, neg)
}

func groupFloat(f float64, decimals int) string {
	neg := f < 0
	s := strconv.FormatFloat(math.Abs(f), 'f', decimals, 64)
	whole, frac, _ := strings.Cut(s, ".")
	out := withCommas(whole, neg)
	if frac != "" {
		out += "." + frac
	}
	return out
}

// withCommas inserts thousands separators into a string of digits.
func withCommas(s string, neg bool) string {
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + (len(s)-1)/3 + 1)
	if neg {
		b.WriteByte('-')
	}

	prefix := len(s) % 3
	if prefix == 0 {
		prefix = 3
	}
	b.WriteString(s[:prefix])
	for i := prefix; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// TruncateText truncates a string to a maximum number of runes (not bytes).
// Adds an ellipsis (…) when truncated.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > 1 {
		return string(runes[:maxLen-1]) + "…"
	}
	return string(runes[:1])
}

// Initials returns up to two uppercase initials for an avatar badge.
func Initials(name string) string {
	var out []rune
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		out = append(out, []rune(strings.ToUpper(string(r[0])))...)
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

// Dict builds a map from alternating keys and values so partials can take several arguments.
func Dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict requires an even number of arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %d is not a string", i/2)
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}
