// Package zod renders schema trees as zod validator expressions.
//
// Rendering is pure: the same tree and indent level always produce the same
// text, and trees are never modified.
package zod

import (
	"strings"

	"github.com/mark3labs/yapi2zod/internal/naming"
	"github.com/mark3labs/yapi2zod/internal/schema"
)

const (
	AnyToken         = "z.any()"
	EmptyObjectToken = "z.object({})"
	ArraySuffix      = ".array()"
	OptionalSuffix   = ".optional()"

	// QueryToken is used for every query parameter: values arrive as
	// strings on the wire but are often documented as numbers.
	QueryToken = "z.string().or(z.number())"
)

var primitives = map[schema.Kind]string{
	schema.KindBoolean: "z.boolean()",
	schema.KindInteger: "z.number().int()",
	schema.KindNull:    "z.nullable()",
	schema.KindNumber:  "z.number()",
	schema.KindString:  "z.string()",
	schema.KindLong:    "z.string().or(z.number())",
}

// Primitive returns the validator call for a scalar kind.
func Primitive(k schema.Kind) (string, bool) {
	tok, ok := primitives[k]
	return tok, ok
}

// Indent returns two spaces per level.
func Indent(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat("  ", level)
}

// Comment returns an inline doc comment on its own line, or "" when desc
// is empty.
func Comment(desc string, level int) string {
	if desc == "" {
		return ""
	}
	return "\n" + Indent(level) + "/** " + EscapeComment(desc) + " */"
}

// EscapeComment keeps text from closing a block comment early.
func EscapeComment(text string) string {
	return strings.ReplaceAll(text, "*/", `*\/`)
}

// Render returns the validator expression for n at the given indent level.
// indented is set by an object parent that already placed the value on an
// indented line; an array then renders its items at the same level instead
// of one deeper. The flag applies to one call only.
func Render(n *schema.Node, level int, indented bool) string {
	if n == nil {
		return AnyToken
	}
	if tok, ok := primitives[n.Kind]; ok {
		return tok
	}
	switch n.Kind {
	case schema.KindObject:
		return renderObject(n, level)
	case schema.KindArray:
		next := level + 1
		if indented {
			next = level
		}
		return Render(n.Items, next, false) + ArraySuffix
	}
	return AnyToken
}

func renderObject(n *schema.Node, level int) string {
	if len(n.Properties) == 0 {
		return EmptyObjectToken
	}
	var b strings.Builder
	b.WriteString("z.object({")
	for i, p := range n.Properties {
		if i > 0 {
			b.WriteByte(',')
		}
		var desc string
		if p.Node != nil {
			desc = p.Node.Description
		}
		b.WriteString(Comment(desc, level+1))
		b.WriteByte('\n')
		b.WriteString(Indent(level + 1))
		b.WriteString(naming.EncodeKey(p.Name))
		b.WriteString(": ")
		b.WriteString(Render(p.Node, level+1, true))
		if !n.IsRequired(p.Name) {
			b.WriteString(OptionalSuffix)
		}
	}
	b.WriteString(",\n")
	b.WriteString(Indent(level))
	b.WriteString("})")
	return b.String()
}

// Field is one flat entry of a query string or form body.
type Field struct {
	Name        string
	Kind        string // form field kind; ignored for query parameters
	Description string
	Required    bool
}

var formKinds = map[string]string{
	"text":  "z.string()",
	"int64": "z.number()",
	"file":  AnyToken,
}

// FormToken maps a form field kind to its validator call. Scalar schema
// kinds are accepted too; anything else is AnyToken.
func FormToken(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if tok, ok := formKinds[k]; ok {
		return tok
	}
	if tok, ok := primitives[schema.Kind(k)]; ok {
		return tok
	}
	return AnyToken
}

func renderFields(fields []Field, token func(Field) string) string {
	var b strings.Builder
	b.WriteString("z.object({")
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Comment(f.Description, 1))
		b.WriteByte('\n')
		b.WriteString(Indent(1))
		b.WriteString(naming.EncodeKey(f.Name))
		b.WriteString(": ")
		b.WriteString(token(f))
		if !f.Required {
			b.WriteString(OptionalSuffix)
		}
	}
	b.WriteString(",\n})")
	return b.String()
}

// RenderQuery declares modelName as an object of query parameters. Every
// parameter accepts a string or a number.
func RenderQuery(modelName string, params []Field) string {
	if len(params) == 0 {
		return ""
	}
	return Declare(modelName, renderFields(params, func(Field) string { return QueryToken }))
}

// RenderForm declares modelName as an object of form fields.
func RenderForm(modelName string, fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	return Declare(modelName, renderFields(fields, func(f Field) string { return FormToken(f.Kind) }))
}

// RenderSchema declares modelName from a schema tree rendered at level 0.
func RenderSchema(modelName string, n *schema.Node) string {
	expr := Render(n, 0, false)
	if expr == "" {
		return ""
	}
	return Declare(modelName, expr)
}

// Declare returns `export const <name> = <expr>;`.
func Declare(name, expr string) string {
	return "export const " + name + " = " + expr + ";"
}

// TypeAliases returns one inferred type alias per model name, newline
// separated.
func TypeAliases(modelNames ...string) string {
	lines := make([]string, 0, len(modelNames))
	for _, m := range modelNames {
		if m == "" {
			continue
		}
		lines = append(lines, "export type "+naming.TypeName(m)+" = z.infer<typeof "+m+">;")
	}
	return strings.Join(lines, "\n")
}

// Import is the validator library import placed in every file header.
const Import = "import z from 'zod';"
