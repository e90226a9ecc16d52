package openapi

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var v2Methods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "options": true, "head": true,
}

// normalizeV2 rewrites Swagger 2 operations that openapi2conv rejects:
// several body parameters are merged into one object body, and body
// parameters mixed with formData become formData fields of a multipart
// request. It reports whether anything changed.
func normalizeV2(data []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths, _ := doc["paths"].(map[string]any)

	changed := false
	for _, item := range paths {
		ops, _ := item.(map[string]any)
		for method, raw := range ops {
			if !v2Methods[strings.ToLower(method)] {
				continue
			}
			op, _ := raw.(map[string]any)
			if op == nil {
				continue
			}
			if fixV2Operation(op) {
				changed = true
			}
		}
	}
	if !changed {
		return data, false, nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func fixV2Operation(op map[string]any) bool {
	params, _ := op["parameters"].([]any)
	bodies, hasForm := 0, false
	for _, p := range params {
		switch paramIn(p) {
		case "body":
			bodies++
		case "formdata":
			hasForm = true
		}
	}
	switch {
	case bodies > 0 && hasForm:
		op["parameters"] = bodiesToFormData(params)
		consumes, _ := op["consumes"].([]any)
		for _, c := range consumes {
			if c == "multipart/form-data" {
				return true
			}
		}
		op["consumes"] = append(consumes, "multipart/form-data")
		return true
	case bodies > 1:
		op["parameters"] = mergeBodies(params)
		return true
	}
	return false
}

func paramIn(p any) string {
	m, _ := p.(map[string]any)
	s, _ := m["in"].(string)
	return strings.ToLower(s)
}

func paramName(m map[string]any) string {
	if s, _ := m["name"].(string); s != "" {
		return s
	}
	return "field"
}

func mergeBodies(params []any) []any {
	props := map[string]any{}
	var required []any
	rest := make([]any, 0, len(params))
	for _, p := range params {
		if paramIn(p) != "body" {
			rest = append(rest, p)
			continue
		}
		m := p.(map[string]any)
		name := paramName(m)
		sch, _ := m["schema"].(map[string]any)
		if sch == nil {
			sch = map[string]any{"type": "string"}
		}
		props[name] = sch
		if req, _ := m["required"].(bool); req {
			required = append(required, name)
		}
	}
	body := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		body["required"] = required
	}
	merged := map[string]any{"in": "body", "name": "body", "schema": body}
	return append([]any{merged}, rest...)
}

func bodiesToFormData(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		if paramIn(p) != "body" {
			out = append(out, p)
			continue
		}
		m := p.(map[string]any)
		field := map[string]any{"in": "formData", "name": paramName(m), "type": "string"}
		if d, _ := m["description"].(string); d != "" {
			field["description"] = d
		}
		if req, ok := m["required"].(bool); ok {
			field["required"] = req
		}
		if sch, _ := m["schema"].(map[string]any); sch != nil {
			// Referenced objects cannot be form fields; they stay strings.
			if t, _ := sch["type"].(string); t != "" && t != "object" {
				field["type"] = t
				if f, _ := sch["format"].(string); f != "" {
					field["format"] = f
				}
				if it, ok := sch["items"]; ok {
					field["items"] = it
				}
			}
		}
		out = append(out, field)
	}
	return out
}
