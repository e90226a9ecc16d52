// Package generator assembles the zod file for one YAPI endpoint: query,
// request and response declarations, inferred type aliases, a header and
// a request stub.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mark3labs/yapi2zod/internal/config"
	"github.com/mark3labs/yapi2zod/internal/naming"
	"github.com/mark3labs/yapi2zod/internal/schema"
	"github.com/mark3labs/yapi2zod/internal/yapi"
	"github.com/mark3labs/yapi2zod/internal/zod"
)

// ErrNoPath is returned for endpoints whose path yields no interface name.
var ErrNoPath = errors.New("endpoint path yields no interface name")

// Output holds the generated fragments of one file. Empty fragments are
// left out of Content.
type Output struct {
	Header      string
	Request     string
	Response    string
	Types       string
	RequestStub string

	// Query is the query section, rendered for every method even when the
	// request section is a body.
	Query string

	InterfaceName string
	ReqModelName  string
	ResModelName  string
	FileName      string

	RequestStrategy  string
	ResponseStrategy string
}

// Content joins the non-empty fragments with blank lines and ends the file
// with a newline.
func (o *Output) Content() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{o.Header, o.Request, o.Response, o.Types, o.RequestStub} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// HasRequest reports whether a request declaration was emitted.
func (o *Output) HasRequest() bool { return o.Request != "" }

// HasResponse reports whether a response declaration was emitted.
func (o *Output) HasResponse() bool { return o.Response != "" }

// Assembler turns endpoints into Outputs. It is safe for concurrent use
// when its RequestGenerator is.
type Assembler struct {
	project config.Project
	server  string
	hook    RequestGenerator
	namer   Namer
	log     zerolog.Logger
}

// Namer returns the base an endpoint's interface and file names are built
// from, e.g. "get_info". An empty base fails the endpoint with ErrNoPath.
type Namer func(ep *yapi.Endpoint) string

func pathNamer(ep *yapi.Endpoint) string { return naming.LastSegment(ep.Path) }

// Option configures an Assembler.
type Option func(*Assembler)

// WithServer sets the YAPI server used in @see links.
func WithServer(server string) Option {
	return func(a *Assembler) { a.server = strings.TrimRight(server, "/") }
}

// WithRequestGenerator replaces the request stub renderer. It takes
// precedence over a configured request template.
func WithRequestGenerator(g RequestGenerator) Option {
	return func(a *Assembler) { a.hook = g }
}

// WithNamer replaces the last-path-segment naming, for sources where
// several endpoints share a final segment.
func WithNamer(n Namer) Option {
	return func(a *Assembler) { a.namer = n }
}

// WithLogger sets the logger for per-endpoint diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// NewAssembler builds an Assembler for project. A RequestTemplate in the
// project is compiled here, so template syntax errors surface before any
// endpoint is processed.
func NewAssembler(project config.Project, opts ...Option) (*Assembler, error) {
	a := &Assembler{project: project, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.namer == nil {
		a.namer = pathNamer
	}
	if a.hook == nil && strings.TrimSpace(project.RequestTemplate) != "" {
		g, err := NewTemplateGenerator(project.RequestTemplate)
		if err != nil {
			return nil, err
		}
		a.hook = g
	}
	return a, nil
}

// Assemble generates the file fragments for ep. resource is the YAPI
// project name, or empty. A malformed res_body is returned as a
// *schema.ParseError; a malformed req_body_other only drops the JSON body.
func (a *Assembler) Assemble(ctx context.Context, ep *yapi.Endpoint, resource string) (*Output, error) {
	if ep == nil {
		return nil, errors.New("assemble: nil endpoint")
	}
	base := a.namer(ep)
	iface := naming.Identifier(base)
	if iface == "" {
		return nil, fmt.Errorf("assemble %d %q: %w", ep.ID, ep.Path, ErrNoPath)
	}
	out := &Output{
		InterfaceName: iface,
		ReqModelName:  naming.ModelName(iface, naming.ReqSuffix),
		ResModelName:  naming.ModelName(iface, naming.ResSuffix),
		FileName:      naming.File(base),
	}
	log := a.log.With().Int64("interface", ep.ID).Str("path", ep.Path).Logger()

	resBody, err := parseOptional("res_body", ep.ResBody)
	if err != nil {
		return nil, err
	}
	reqBody, err := parseOptional("req_body_other", ep.ReqBodyOther)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring malformed request body schema")
		reqBody = nil
	}

	in := &sectionInput{
		title:    ep.Title,
		isGet:    ep.IsGet(),
		modelReq: out.ReqModelName,
		body:     reqBody,
		form:     formFields(ep.ReqBodyForm),
	}
	in.query = section(ep.Title, SubQuery, zod.RenderQuery(out.ReqModelName, queryFields(ep.ReqQuery)))
	out.Query = in.query

	out.RequestStrategy, out.Request = selectRequest(in)

	var resNode *schema.Node
	out.ResponseStrategy, resNode = selectResponse(a.project, resBody)
	if resNode != nil {
		out.Response = section(ep.Title, SubResponse, zod.RenderSchema(out.ResModelName, resNode))
	}
	log.Debug().
		Str("request", out.RequestStrategy).
		Str("response", out.ResponseStrategy).
		Bool("hasReq", out.HasRequest()).
		Bool("hasRes", out.HasResponse()).
		Msg("sections selected")

	var models []string
	if out.HasRequest() {
		models = append(models, out.ReqModelName)
	}
	if out.HasResponse() {
		models = append(models, out.ResModelName)
	}
	out.Types = zod.TypeAliases(models...)
	out.Header = Header(a.project.Header)

	form := FormData{
		Comment:       StubComment(ep.Title, yapi.DocURL(a.server, ep.ProjectID, ep.ID)),
		InterfaceName: iface,
		APIPath:       ep.Path,
		Resource:      resource,
	}
	if out.HasRequest() {
		form.ReqModelName = out.ReqModelName
	}
	if out.HasResponse() {
		form.ResModelName = out.ResModelName
	}

	if a.hook != nil {
		stub, err := a.hook.GenerateRequest(ctx, form, ep)
		if err != nil {
			return nil, fmt.Errorf("request generator for %q: %w", ep.Path, err)
		}
		out.RequestStub = stub
	} else {
		out.RequestStub = DefaultStub(ep.Title, form, ep.Method)
	}
	return out, nil
}

// parseOptional parses a schema string; blank text yields a nil tree.
func parseOptional(section, text string) (*schema.Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return schema.ParseString(section, text)
}

func queryFields(params []yapi.QueryParam) []zod.Field {
	fields := make([]zod.Field, 0, len(params))
	for _, p := range params {
		fields = append(fields, zod.Field{
			Name:        p.Name,
			Description: p.Desc,
			Required:    p.Required.IsSet(),
		})
	}
	return fields
}

func formFields(items []yapi.FormField) []zod.Field {
	fields := make([]zod.Field, 0, len(items))
	for _, f := range items {
		fields = append(fields, zod.Field{
			Name:        f.Name,
			Kind:        f.Type,
			Description: f.Desc,
			Required:    f.Required.IsSet(),
		})
	}
	return fields
}
