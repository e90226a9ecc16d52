package openapi

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/mark3labs/yapi2zod/internal/naming"
	"github.com/mark3labs/yapi2zod/internal/yapi"
)

const maxSchemaDepth = 32

type filter struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// FilterOption narrows the operations Endpoints returns.
type FilterOption func(*filter)

// WithIncludeTags keeps only operations carrying at least one of tags.
func WithIncludeTags(tags []string) FilterOption {
	return func(f *filter) { f.include = tagSet(f.include, tags) }
}

// WithExcludeTags drops operations carrying any of tags.
func WithExcludeTags(tags []string) FilterOption {
	return func(f *filter) { f.exclude = tagSet(f.exclude, tags) }
}

func tagSet(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

func (f *filter) allows(tags []string) bool {
	if len(f.include) > 0 {
		found := false
		for _, t := range tags {
			if _, ok := f.include[t]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range tags {
		if _, ok := f.exclude[t]; ok {
			return false
		}
	}
	return true
}

// Endpoints converts every operation of doc into a YAPI endpoint
// descriptor, sorted by path then method. IDs are assigned from 1 in that
// order. Schemas are written as YAPI JSON schema text with properties in
// name order.
func Endpoints(doc *openapi3.T, opts ...FilterOption) ([]yapi.Endpoint, error) {
	if doc == nil {
		return nil, nil
	}
	f := &filter{}
	for _, opt := range opts {
		opt(f)
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []yapi.Endpoint
	for _, path := range paths {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			op := ops[method]
			if op == nil || !f.allows(op.Tags) {
				continue
			}
			ep, err := toEndpoint(path, method, item, op)
			if err != nil {
				return nil, fmt.Errorf("openapi: %s %s: %w", strings.ToUpper(method), path, err)
			}
			ep.ID = int64(len(out) + 1)
			out = append(out, ep)
		}
	}
	return out, nil
}

func toEndpoint(path, method string, item *openapi3.PathItem, op *openapi3.Operation) (yapi.Endpoint, error) {
	ep := yapi.Endpoint{
		Title:       title(path, method, op),
		Path:        path,
		Method:      strings.ToUpper(method),
		Tags:        append([]string(nil), op.Tags...),
		OperationID: strings.TrimSpace(op.OperationID),
	}
	ep.ReqQuery = queryParams(item.Parameters, op.Parameters)

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		content := op.RequestBody.Value.Content
		if media := jsonMedia(content); media != nil {
			text, err := schemaText(media.Schema)
			if err != nil {
				return ep, err
			}
			ep.ReqBodyType = "json"
			ep.ReqBodyOther = text
		} else if media := formMedia(content); media != nil {
			ep.ReqBodyType = "form"
			ep.ReqBodyForm = formFields(media.Schema)
		}
	}

	if media := successMedia(op.Responses); media != nil {
		text, err := schemaText(media.Schema)
		if err != nil {
			return ep, err
		}
		ep.ResBodyType = "json"
		ep.ResBody = text
	}
	return ep, nil
}

// OperationName is the name base for an imported operation: its
// operationId, or the method and path with parameters spelled "by_<name>",
// e.g. "get_pets_by_petId". Operations sharing a last path segment still
// get distinct names.
func OperationName(ep *yapi.Endpoint) string {
	if ep.OperationID != "" {
		return ep.OperationID
	}
	parts := []string{strings.ToLower(ep.Method)}
	for _, seg := range strings.Split(ep.Path, "/") {
		if seg == "" {
			continue
		}
		if name, ok := naming.PathParam(seg); ok {
			parts = append(parts, "by", name)
			continue
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "_")
}

func title(path, method string, op *openapi3.Operation) string {
	if s := strings.TrimSpace(op.Summary); s != "" {
		return s
	}
	if s := strings.TrimSpace(op.OperationID); s != "" {
		return s
	}
	return strings.ToUpper(method) + " " + path
}

// queryParams merges path-level and operation-level query parameters; an
// operation parameter replaces a path parameter of the same name.
func queryParams(lists ...openapi3.Parameters) []yapi.QueryParam {
	var out []yapi.QueryParam
	index := map[string]int{}
	for _, list := range lists {
		for _, ref := range list {
			if ref == nil || ref.Value == nil || ref.Value.In != openapi3.ParameterInQuery {
				continue
			}
			p := ref.Value
			qp := yapi.QueryParam{Name: p.Name, Desc: strings.TrimSpace(p.Description), Required: flag(p.Required)}
			if i, ok := index[p.Name]; ok {
				out[i] = qp
				continue
			}
			index[p.Name] = len(out)
			out = append(out, qp)
		}
	}
	return out
}

func flag(b bool) yapi.Flag {
	if b {
		return yapi.FlagRequired
	}
	return yapi.FlagOptional
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonMedia(content openapi3.Content) *openapi3.MediaType {
	if mt := content["application/json"]; mt != nil {
		return mt
	}
	for _, k := range sortedKeys(content) {
		if strings.Contains(strings.ToLower(k), "json") {
			return content[k]
		}
	}
	return nil
}

func formMedia(content openapi3.Content) *openapi3.MediaType {
	for _, k := range []string{"multipart/form-data", "application/x-www-form-urlencoded"} {
		if mt := content[k]; mt != nil {
			return mt
		}
	}
	return nil
}

// successMedia returns the JSON body of the first 2xx response that has
// one.
func successMedia(responses openapi3.Responses) *openapi3.MediaType {
	for _, code := range sortedKeys(responses) {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		if mt := jsonMedia(ref.Value.Content); mt != nil {
			return mt
		}
	}
	return nil
}

func formFields(ref *openapi3.SchemaRef) []yapi.FormField {
	if ref == nil || ref.Value == nil {
		return nil
	}
	s := ref.Value
	required := map[string]bool{}
	for _, r := range s.Required {
		required[r] = true
	}
	out := make([]yapi.FormField, 0, len(s.Properties))
	for _, name := range sortedKeys(s.Properties) {
		field := yapi.FormField{Name: name, Type: "text", Required: flag(required[name])}
		if prop := s.Properties[name]; prop != nil && prop.Value != nil {
			field.Desc = strings.TrimSpace(prop.Value.Description)
			if isFile(prop.Value) {
				field.Type = "file"
			}
		}
		out = append(out, field)
	}
	return out
}

func isFile(s *openapi3.Schema) bool {
	if s.Type == "file" || s.Format == "binary" || s.Format == "base64" {
		return true
	}
	return s.Type == "array" && s.Items != nil && s.Items.Value != nil && isFile(s.Items.Value)
}

// schemaText renders ref as YAPI JSON schema text.
func schemaText(ref *openapi3.SchemaRef) (string, error) {
	var buf bytes.Buffer
	enc := jsontext.NewEncoder(&buf)
	w := &schemaWriter{enc: enc, seen: map[*openapi3.Schema]bool{}}
	if err := w.write(ref, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

type schemaWriter struct {
	enc  *jsontext.Encoder
	seen map[*openapi3.Schema]bool
}

func (w *schemaWriter) tokens(toks ...jsontext.Token) error {
	for _, t := range toks {
		if err := w.enc.WriteToken(t); err != nil {
			return err
		}
	}
	return nil
}

func (w *schemaWriter) write(ref *openapi3.SchemaRef, depth int) error {
	if ref == nil || ref.Value == nil {
		return w.tokens(jsontext.BeginObject, jsontext.String("type"), jsontext.String("object"), jsontext.EndObject)
	}
	s := ref.Value
	if len(s.OneOf) > 0 && s.Type == "" {
		return w.write(s.OneOf[0], depth)
	}
	if len(s.AnyOf) > 0 && s.Type == "" {
		return w.write(s.AnyOf[0], depth)
	}
	// Cycles and runaway nesting become open objects.
	if w.seen[s] || depth > maxSchemaDepth {
		return w.tokens(jsontext.BeginObject, jsontext.String("type"), jsontext.String("object"), jsontext.EndObject)
	}
	w.seen[s] = true
	defer delete(w.seen, s)

	props, required := flatten(s)
	kind := s.Type
	switch {
	case kind == "integer" && s.Format == "int64":
		kind = "long"
	case kind == "" && len(props) > 0:
		kind = "object"
	case kind == "" && s.Items != nil:
		kind = "array"
	case kind == "" && len(s.AllOf) > 0:
		kind = "object"
	}

	if err := w.tokens(jsontext.BeginObject); err != nil {
		return err
	}
	if kind != "" {
		if err := w.tokens(jsontext.String("type"), jsontext.String(kind)); err != nil {
			return err
		}
	}
	desc := strings.TrimSpace(s.Description)
	if desc == "" {
		desc = strings.TrimSpace(s.Title)
	}
	if desc != "" {
		if err := w.tokens(jsontext.String("description"), jsontext.String(desc)); err != nil {
			return err
		}
	}

	switch kind {
	case "object":
		if err := w.tokens(jsontext.String("properties"), jsontext.BeginObject); err != nil {
			return err
		}
		for _, name := range sortedKeys(props) {
			if err := w.tokens(jsontext.String(name)); err != nil {
				return err
			}
			if err := w.write(props[name], depth+1); err != nil {
				return err
			}
		}
		if err := w.tokens(jsontext.EndObject); err != nil {
			return err
		}
		if len(required) > 0 {
			if err := w.tokens(jsontext.String("required"), jsontext.BeginArray); err != nil {
				return err
			}
			for _, r := range required {
				if err := w.tokens(jsontext.String(r)); err != nil {
					return err
				}
			}
			if err := w.tokens(jsontext.EndArray); err != nil {
				return err
			}
		}
	case "array":
		if err := w.tokens(jsontext.String("items")); err != nil {
			return err
		}
		if err := w.write(s.Items, depth+1); err != nil {
			return err
		}
	}
	return w.tokens(jsontext.EndObject)
}

// flatten merges the properties and required names of s and its allOf
// members. Later members win on name clashes.
func flatten(s *openapi3.Schema) (openapi3.Schemas, []string) {
	props := openapi3.Schemas{}
	var required []string
	seenReq := map[string]bool{}

	var visit func(*openapi3.Schema, int)
	visit = func(cur *openapi3.Schema, depth int) {
		if cur == nil || depth > maxSchemaDepth {
			return
		}
		for name, p := range cur.Properties {
			props[name] = p
		}
		for _, r := range cur.Required {
			if !seenReq[r] {
				seenReq[r] = true
				required = append(required, r)
			}
		}
		for _, m := range cur.AllOf {
			if m != nil {
				visit(m.Value, depth+1)
			}
		}
	}
	visit(s, 0)
	return props, required
}
