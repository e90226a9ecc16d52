package generator

import (
	"github.com/mark3labs/yapi2zod/internal/config"
	"github.com/mark3labs/yapi2zod/internal/schema"
	"github.com/mark3labs/yapi2zod/internal/zod"
)

// Section titles used in the doc comment above each declaration.
const (
	SubQuery    = "query params"
	SubBody     = "request body"
	SubResponse = "response body"
)

// DefaultDataKey is the envelope property unwrapped when no custom key is
// configured.
const DefaultDataKey = "data"

// sectionInput is what request strategies look at. Parsing happens once
// per endpoint, before any strategy runs.
type sectionInput struct {
	title    string
	isGet    bool
	modelReq string
	query    string // rendered query section, may be empty
	body     *schema.Node
	form     []zod.Field
}

// RequestStrategy is one candidate for the request section. The first
// strategy whose Guard matches wins, even when its Render is empty.
type RequestStrategy struct {
	Name   string
	Guard  func(in *sectionInput) bool
	Render func(in *sectionInput) string
}

// RequestStrategies lists the request section candidates in precedence
// order: GET uses the query string, other methods prefer a JSON body with
// at least one property over a form body.
var RequestStrategies = []RequestStrategy{
	{
		Name:   "query",
		Guard:  func(in *sectionInput) bool { return in.isGet },
		Render: func(in *sectionInput) string { return in.query },
	},
	{
		Name:  "json-body",
		Guard: func(in *sectionInput) bool { return in.body.HasProperties() },
		Render: func(in *sectionInput) string {
			return section(in.title, SubBody, zod.RenderSchema(in.modelReq, in.body))
		},
	},
	{
		Name:  "form-body",
		Guard: func(in *sectionInput) bool { return len(in.form) > 0 },
		Render: func(in *sectionInput) string {
			return section(in.title, SubBody, zod.RenderForm(in.modelReq, in.form))
		},
	},
}

func selectRequest(in *sectionInput) (string, string) {
	for _, s := range RequestStrategies {
		if s.Guard(in) {
			return s.Name, s.Render(in)
		}
	}
	return "", ""
}

// ResponseStrategy picks the response sub-tree for a response-key policy.
// Drilled selections only produce a section when the selected object has
// properties.
type ResponseStrategy struct {
	Name    string
	Drilled bool
	Guard   func(p config.Project) bool
	Select  func(p config.Project, body *schema.Node) *schema.Node
}

// dataKey is the drill path used when the policy unwraps the envelope.
func dataKey(p config.Project) string {
	if p.ResponseCustomKey != "" {
		return p.ResponseCustomKey
	}
	return DefaultDataKey
}

// ResponseStrategies lists the response-key policies in precedence order.
// An unset key unwraps the envelope like custom does; only an explicit
// key other than data or custom keeps the whole body.
var ResponseStrategies = []ResponseStrategy{
	{
		Name:    "data",
		Drilled: true,
		Guard:   func(p config.Project) bool { return p.ResponseKey == config.ResponseData },
		Select: func(_ config.Project, body *schema.Node) *schema.Node {
			return body.Drill(DefaultDataKey)
		},
	},
	{
		Name:    "custom",
		Drilled: true,
		Guard:   func(p config.Project) bool { return p.ResponseKey == config.ResponseCustom },
		Select: func(p config.Project, body *schema.Node) *schema.Node {
			return body.Drill(dataKey(p))
		},
	},
	{
		Name:    "default",
		Drilled: true,
		Guard:   func(p config.Project) bool { return p.ResponseKey == "" },
		Select: func(p config.Project, body *schema.Node) *schema.Node {
			return body.Drill(dataKey(p))
		},
	},
	{
		Name:   "all",
		Guard:  func(config.Project) bool { return true },
		Select: func(_ config.Project, body *schema.Node) *schema.Node { return body },
	},
}

// selectResponse returns the winning strategy name and the node to render,
// or nil when the response section is omitted.
func selectResponse(p config.Project, body *schema.Node) (string, *schema.Node) {
	for _, s := range ResponseStrategies {
		if !s.Guard(p) {
			continue
		}
		n := s.Select(p, body)
		if s.Drilled && !n.HasProperties() {
			return s.Name, nil
		}
		if !hasContent(n) {
			return s.Name, nil
		}
		return s.Name, n
	}
	return "", nil
}

// hasContent reports whether n should produce a section. Objects need at
// least one property; arrays and scalars always count.
func hasContent(n *schema.Node) bool {
	if n == nil {
		return false
	}
	if n.Kind == schema.KindObject {
		return n.HasProperties()
	}
	return true
}

func section(title, sub, decl string) string {
	if decl == "" {
		return ""
	}
	return "/**\n * @description " + zod.EscapeComment(title) + "-" + sub + "\n */\n" + decl
}
