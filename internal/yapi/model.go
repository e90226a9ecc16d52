package yapi

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
)

// Endpoint is the interface descriptor returned by api/interface/get.
// Only the fields the generator reads are decoded.
type Endpoint struct {
	ID        int64    `json:"_id"`
	ProjectID int64    `json:"project_id"`
	CatID     int64    `json:"catid"`
	Title     string   `json:"title"`
	Path      string   `json:"path"`
	Method    string   `json:"method"`
	Status    string   `json:"status"`
	Tags      []string `json:"tag"`

	ReqQuery     []QueryParam `json:"req_query"`
	ReqBodyType  string       `json:"req_body_type"`
	ReqBodyForm  []FormField  `json:"req_body_form"`
	ReqBodyOther string       `json:"req_body_other"`

	ResBodyType string `json:"res_body_type"`
	ResBody     string `json:"res_body"`

	AddTime int64 `json:"add_time"`
	UpTime  int64 `json:"up_time"`

	// OperationID is set by importers of other formats; YAPI has none.
	OperationID string `json:"-"`
}

// IsGet reports whether the endpoint uses GET, ignoring case.
func (e *Endpoint) IsGet() bool {
	return strings.EqualFold(strings.TrimSpace(e.Method), "GET")
}

// QueryParam is one entry of req_query.
type QueryParam struct {
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Example  string `json:"example"`
	Required Flag   `json:"required"`
}

// FormField is one entry of req_body_form. Type is "text" or "file".
type FormField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Desc     string `json:"desc"`
	Example  string `json:"example"`
	Required Flag   `json:"required"`
}

// Flag is YAPI's required marker, stored as the strings "1" and "0".
type Flag string

const (
	FlagRequired Flag = "1"
	FlagOptional Flag = "0"
)

// IsSet reports whether the flag marks the field required.
func (f Flag) IsSet() bool { return f == FlagRequired }

// UnmarshalJSON accepts "1"/"0", 1/0 and true/false.
func (f *Flag) UnmarshalJSON(b []byte) error {
	v := jsontext.Value(b)
	switch v.Kind() {
	case '"':
		s, err := jsontext.AppendUnquote(nil, b)
		if err != nil {
			return fmt.Errorf("yapi: invalid required flag: %w", err)
		}
		*f = Flag(strings.TrimSpace(string(s)))
	case '0':
		if string(b) == "0" {
			*f = FlagOptional
		} else {
			*f = FlagRequired
		}
	case 't':
		*f = FlagRequired
	case 'f', 'n':
		*f = FlagOptional
	default:
		return fmt.Errorf("yapi: invalid required flag %s", b)
	}
	return nil
}

// Project is the subset of api/project/get used for naming.
type Project struct {
	ID       int64  `json:"_id"`
	Name     string `json:"name"`
	Basepath string `json:"basepath"`
}

// envelope wraps every YAPI response.
type envelope struct {
	Errcode int            `json:"errcode"`
	Errmsg  string         `json:"errmsg"`
	Data    jsontext.Value `json:"data"`
}
