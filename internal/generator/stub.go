package generator

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/yapi2zod/internal/yapi"
	"github.com/mark3labs/yapi2zod/internal/zod"
)

// FormData summarizes the generated pieces for a request stub generator.
// An empty model name means the section was not emitted.
type FormData struct {
	Comment       string
	InterfaceName string
	APIPath       string
	ReqModelName  string
	ResModelName  string
	// Resource is the YAPI project name when known.
	Resource string
}

// RequestGenerator renders the request stub in place of DefaultStub. Its
// output is used verbatim.
type RequestGenerator interface {
	GenerateRequest(ctx context.Context, form FormData, ep *yapi.Endpoint) (string, error)
}

// RequestGeneratorFunc adapts a function to RequestGenerator.
type RequestGeneratorFunc func(ctx context.Context, form FormData, ep *yapi.Endpoint) (string, error)

func (f RequestGeneratorFunc) GenerateRequest(ctx context.Context, form FormData, ep *yapi.Endpoint) (string, error) {
	return f(ctx, form, ep)
}

// TemplateGenerator is a RequestGenerator backed by a text/template. The
// template sees .Form (FormData) and .Endpoint (*yapi.Endpoint) and has no
// functions beyond the text/template builtins.
type TemplateGenerator struct {
	tmpl *template.Template
}

// NewTemplateGenerator parses text. Missing map keys are errors.
func NewTemplateGenerator(text string) (*TemplateGenerator, error) {
	tmpl, err := template.New("requestTemplate").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse request template: %w", err)
	}
	return &TemplateGenerator{tmpl: tmpl}, nil
}

type templateData struct {
	Form     FormData
	Endpoint *yapi.Endpoint
}

func (g *TemplateGenerator) GenerateRequest(ctx context.Context, form FormData, ep *yapi.Endpoint) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := g.tmpl.Execute(&b, templateData{Form: form, Endpoint: ep}); err != nil {
		return "", fmt.Errorf("execute request template: %w", err)
	}
	return b.String(), nil
}

// Header returns the configured header lines followed by the zod import.
func Header(lines []string) string {
	rows := make([]string, 0, len(lines)+1)
	rows = append(rows, lines...)
	rows = append(rows, zod.Import)
	return strings.Join(rows, "\n")
}

// StubComment is the doc block handed to generators as FormData.Comment.
func StubComment(title, apiURL string) string {
	return "/**\n * @description " + zod.EscapeComment(title) + "\n * @see {@link " + apiURL + "}\n */"
}

// DefaultStub renders the built-in request definition and its observer.
func DefaultStub(title string, form FormData, method string) string {
	def := form.InterfaceName + "ApiDef"

	var b strings.Builder
	b.WriteString(form.Comment)
	b.WriteString("\nexport const ")
	b.WriteString(def)
	b.WriteString(" = BizRemoteRequestApiDef.url(\n  '")
	b.WriteString(form.APIPath)
	b.WriteString("',\n)\n  .method('")
	b.WriteString(method)
	b.WriteString("')\n  .custom({ version: 'v2', service: '")
	b.WriteString(form.Resource)
	b.WriteString("' })")
	if form.ReqModelName != "" {
		b.WriteString("\n  .data(")
		b.WriteString(form.ReqModelName)
		b.WriteString(")")
	}
	if form.ResModelName != "" {
		b.WriteString("\n  .response(\n    RemoteBaseResponse.extend({\n      data: ")
		b.WriteString(form.ResModelName)
		b.WriteString(",\n    }),\n  )")
	}
	b.WriteString(";\n\n/**\n * @description ")
	b.WriteString(title)
	b.WriteString("\n */\nexport const ")
	b.WriteString(form.InterfaceName)
	b.WriteString("ApiObserver = BizRemoteRequestObserver.consume(")
	b.WriteString(def)
	b.WriteString(");")
	return b.String()
}
