// Package naming derives identifiers and file names for generated code.
package naming

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ReqSuffix = "Req"
	ResSuffix = "Res"

	modelSuffix = "Model"
)

// LastSegment returns the last non-empty piece of path split on '/' and
// '.'. Path parameters ("{id}", ":id") are skipped.
func LastSegment(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '.' })
	for i := len(parts) - 1; i >= 0; i-- {
		if _, ok := PathParam(parts[i]); !ok {
			return parts[i]
		}
	}
	return ""
}

// PathParam returns the parameter name of a "{id}" or ":id" segment.
func PathParam(seg string) (string, bool) {
	if name, ok := strings.CutPrefix(seg, ":"); ok {
		return name, true
	}
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

func isWordRune(r rune) bool {
	return r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// PascalCase converts snake_case to PascalCase. Underscores and any rune
// that cannot appear in an identifier separate words. Only the first rune
// of each word changes; the rest is kept as written.
func PascalCase(s string) string {
	// Casers carry state; one per call keeps this safe for concurrent use.
	upper := cases.Upper(language.Und)
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) }) {
		r, size := utf8.DecodeRuneInString(part)
		b.WriteString(upper.String(string(r)))
		b.WriteString(part[size:])
	}
	return b.String()
}

// Identifier turns a name base into a PascalCase identifier. A result that
// starts with a digit gets a leading underscore.
func Identifier(base string) string {
	name := PascalCase(base)
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		return "_" + name
	}
	return name
}

// InterfaceName derives the interface name from the last segment of an
// endpoint path: "/user/get_info" -> "GetInfo", "/api/list.json" -> "Json".
func InterfaceName(path string) string {
	return Identifier(LastSegment(path))
}

// ModelName returns the validator binding name, e.g. "GetInfoReqModel".
func ModelName(interfaceName, suffix string) string {
	return interfaceName + suffix + modelSuffix
}

// TypeName returns the type alias derived from a model name:
// "GetInfoReqModel" -> "GetInfoReqType".
func TypeName(modelName string) string {
	return strings.TrimSuffix(modelName, modelSuffix) + "Type"
}

// FileName returns the generated file name for an endpoint path: the last
// segment with underscores turned into hyphens, plus ".ts". It returns ""
// when the path has no usable segment.
func FileName(path string) string {
	return File(LastSegment(path))
}

// File returns the ".ts" file name for a name base. Underscores and other
// runes outside letters, digits and '-' become hyphens.
func File(base string) string {
	if base == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '-'
	}, base) + ".ts"
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// IsIdentifier reports whether name can be used as a bare object key.
func IsIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// EncodeKey returns name unchanged when it is a bare identifier, otherwise
// a single-quoted string literal.
func EncodeKey(name string) string {
	if IsIdentifier(name) {
		return name
	}
	return quote(name)
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028', '\u2029':
			b.WriteString(`\u` + strconv.FormatInt(int64(r), 16))
		default:
			if r < 0x20 {
				b.WriteString(`\x`)
				if r < 0x10 {
					b.WriteByte('0')
				}
				b.WriteString(strconv.FormatInt(int64(r), 16))
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
