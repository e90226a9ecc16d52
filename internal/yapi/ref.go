package yapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Ref identifies one interface, optionally with its project.
type Ref struct {
	InterfaceID int64
	ProjectID   int64 // 0 when unknown
}

var (
	numericRe   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	projectRe   = regexp.MustCompile(`project/(\d+)`)
	interfaceRe = regexp.MustCompile(`interface/api/(\d+)`)
)

// ParseRef accepts a numeric interface id or a YAPI documentation URL such
// as https://yapi.example.com/project/12/interface/api/345.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, &APIError{Code: InputError, Message: "yapi: empty interface reference"}
	}
	if numericRe.MatchString(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return Ref{}, &APIError{Code: InputError, Message: fmt.Sprintf("yapi: invalid interface id %q", s), Cause: err}
		}
		return Ref{InterfaceID: id}, nil
	}

	m := interfaceRe.FindStringSubmatch(s)
	if m == nil {
		return Ref{}, &APIError{Code: InputError, Message: fmt.Sprintf("yapi: cannot extract interface id from %q", s)}
	}
	ref := Ref{}
	ref.InterfaceID, _ = strconv.ParseInt(m[1], 10, 64)
	if pm := projectRe.FindStringSubmatch(s); pm != nil {
		ref.ProjectID, _ = strconv.ParseInt(pm[1], 10, 64)
	}
	return ref, nil
}

// DocURL returns the documentation page of an endpoint on server.
func DocURL(server string, projectID, interfaceID int64) string {
	return fmt.Sprintf("%s/project/%d/interface/api/%d", strings.TrimRight(server, "/"), projectID, interfaceID)
}
