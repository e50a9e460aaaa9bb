package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts the human-readable message from an error body.
// The backend sends {"detail": "text"} for handled errors and
// {"detail": [{"loc": [...], "msg": "..."}]} for request validation failures.
// field is set when exactly one validation item names a field.
func parseDetail(raw []byte) (detail, field string) {
	if len(raw) == 0 {
		return "", ""
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return "", ""
	}

	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return strings.TrimSpace(text), ""
	}

	var items []validationItem
	if err := json.Unmarshal(body.Detail, &items); err != nil || len(items) == 0 {
		return "", ""
	}

	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := locField(it.Loc)
		if name == "" {
			parts = append(parts, it.Msg)
			continue
		}
		parts = append(parts, name+": "+it.Msg)
	}
	if len(items) == 1 {
		field = locField(items[0].Loc)
	}
	return strings.Join(parts, "; "), field
}

// locField returns the last location element, skipping the "body"/"query" prefix.
func locField(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	last := loc[len(loc)-1]
	s := fmt.Sprint(last)
	switch s {
	case "body", "query", "path":
		return ""
	}
	return s
}
