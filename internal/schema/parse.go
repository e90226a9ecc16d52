package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-json-experiment/json/jsontext"
)

// ParseError reports schema text that is not valid JSON.
type ParseError struct {
	Section string // e.g. "res_body"
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("schema: invalid JSON: %v", e.Cause)
	}
	return fmt.Sprintf("schema: invalid JSON in %s: %v", e.Section, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Parse decodes schema text into a normalized tree. Object property order
// follows the input. A root value that is not a JSON object yields a nil
// node. section only labels errors.
func Parse(section string, data []byte) (*Node, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data),
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	)
	n, err := decodeNode(dec)
	if err != nil {
		return nil, &ParseError{Section: section, Cause: err}
	}
	if _, err := dec.ReadToken(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, &ParseError{Section: section, Cause: err}
	}
	return n, nil
}

// ParseString is Parse for string input.
func ParseString(section, text string) (*Node, error) {
	return Parse(section, []byte(text))
}

func decodeNode(dec *jsontext.Decoder) (*Node, error) {
	if dec.PeekKind() != '{' {
		if err := dec.SkipValue(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, err
	}

	n := &Node{Kind: KindString}
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		switch key := tok.String(); key {
		case "type":
			if err := decodeKind(dec, n); err != nil {
				return nil, err
			}
		case "description":
			if dec.PeekKind() == '"' {
				tok, err := dec.ReadToken()
				if err != nil {
					return nil, err
				}
				n.Description = tok.String()
			} else if err := dec.SkipValue(); err != nil {
				return nil, err
			}
		case "properties":
			props, err := decodeProperties(dec)
			if err != nil {
				return nil, err
			}
			n.Properties = props
		case "items":
			items, err := decodeNode(dec)
			if err != nil {
				return nil, err
			}
			n.Items = items
		case "required":
			if err := decodeRequired(dec, n); err != nil {
				return nil, err
			}
		default:
			if err := dec.SkipValue(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, err
	}
	return n, nil
}

// decodeKind lowercases string tags; anything else keeps the string default.
func decodeKind(dec *jsontext.Decoder, n *Node) error {
	if dec.PeekKind() != '"' {
		return dec.SkipValue()
	}
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	n.Kind = Kind(strings.ToLower(tok.String()))
	return nil
}

func decodeProperties(dec *jsontext.Decoder) ([]Property, error) {
	if dec.PeekKind() != '{' {
		return nil, dec.SkipValue()
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, err
	}
	var props []Property
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		name := tok.String()
		child, err := decodeNode(dec)
		if err != nil {
			return nil, err
		}
		// Duplicate names: last value wins, first position is kept.
		replaced := false
		for i := range props {
			if props[i].Name == name {
				props[i].Node = child
				replaced = true
				break
			}
		}
		if !replaced {
			props = append(props, Property{Name: name, Node: child})
		}
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, err
	}
	return props, nil
}

func decodeRequired(dec *jsontext.Decoder, n *Node) error {
	switch dec.PeekKind() {
	case '[':
		if _, err := dec.ReadToken(); err != nil {
			return err
		}
		for dec.PeekKind() != ']' {
			if dec.PeekKind() != '"' {
				if err := dec.SkipValue(); err != nil {
					return err
				}
				continue
			}
			tok, err := dec.ReadToken()
			if err != nil {
				return err
			}
			n.Required = append(n.Required, tok.String())
		}
		_, err := dec.ReadToken()
		return err
	case 't':
		_, err := dec.ReadToken()
		n.SelfRequired = true
		return err
	case '"':
		tok, err := dec.ReadToken()
		if err != nil {
			return err
		}
		switch strings.TrimSpace(tok.String()) {
		case "1", "true":
			n.SelfRequired = true
		}
		return nil
	default:
		return dec.SkipValue()
	}
}
