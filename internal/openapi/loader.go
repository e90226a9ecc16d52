// Package openapi imports Swagger 2 and OpenAPI 3 documents as YAPI
// endpoint descriptors, so the same generator can run without a YAPI
// server.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-json-experiment/json"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes load failures.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// LoadError is a structured load failure with the document location and,
// when known, a JSON pointer into it.
type LoadError struct {
	Code        ErrorCode
	Message     string
	Location    string
	JSONPointer string
	Cause       error
}

func (e *LoadError) Error() string { return e.Message }
func (e *LoadError) Unwrap() error { return e.Cause }

// Settings configures Load.
type Settings struct {
	HTTPTimeout time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	Logger      zerolog.Logger
}

func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Logger:      zerolog.Nop(),
	}
}

type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithLogger(l zerolog.Logger) Option     { return func(s *Settings) { s.Logger = l } }

// Load reads an OpenAPI 3 document from a file path or http(s) URL.
// Swagger 2 input is converted to OpenAPI 3 first. Validation failures
// caused only by unresolved refs are logged and tolerated.
func Load(ctx context.Context, input string, opts ...Option) (*openapi3.T, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, &LoadError{Code: InputError, Message: "openapi: input is empty"}
	}
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	location, raw, err := read(ctx, input, settings)
	if err != nil {
		return nil, err
	}

	version, err := detectVersion(raw)
	if err != nil {
		return nil, &LoadError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	var doc *openapi3.T
	switch version {
	case 3:
		loader := newLoader(settings, location)
		doc, err = loader.LoadFromDataWithPath(raw, locationURL(location))
		if err != nil {
			return nil, mapLoadErr(err, location)
		}
	case 2:
		if fixed, changed, perr := normalizeV2(raw); perr == nil && changed {
			settings.Logger.Debug().Str("location", location).Msg("rewrote non-compliant swagger 2 body parameters")
			raw = fixed
		}
		doc, err = convertV2ToV3(raw)
		if err != nil {
			return nil, &LoadError{Code: ConversionError, Message: fmt.Sprintf("openapi: convert swagger 2 to openapi 3: %v", err), Location: location, Cause: err}
		}
		if err := newLoader(settings, location).ResolveRefsIn(doc, nil); err != nil {
			settings.Logger.Warn().Err(err).Str("location", location).Msg("unresolved refs after conversion")
		}
	}

	if err := doc.Validate(ctx); err != nil {
		if !onlyUnresolvedRefs(err) {
			return nil, mapLoadErr(err, location)
		}
		settings.Logger.Warn().Err(err).Str("location", location).Msg("continuing despite validation errors")
	}
	return doc, nil
}

// read returns the normalized location and raw bytes of input.
func read(ctx context.Context, input string, settings Settings) (string, []byte, error) {
	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && u.Host != "" {
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return "", nil, &LoadError{Code: InputError, Message: fmt.Sprintf("openapi: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		raw, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return "", nil, &LoadError{Code: NetworkError, Message: fmt.Sprintf("openapi: fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return input, raw, nil
	}
	if uerr == nil && strings.EqualFold(u.Scheme, "file") {
		return "", nil, &LoadError{Code: InputError, Message: "openapi: file:// URLs are not supported; pass a path", Location: input}
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", nil, &LoadError{Code: InputError, Message: fmt.Sprintf("openapi: resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return "", nil, &LoadError{Code: InputError, Message: fmt.Sprintf("openapi: read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return abs, raw, nil
}

func locationURL(location string) *url.URL {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && u.Host != "" {
		return u
	}
	return &url.URL{Path: filepath.ToSlash(location)}
}

// newLoader allows external refs relative to the root document: local
// files for a file root, http(s) for a URL root.
func newLoader(settings Settings, location string) *openapi3.Loader {
	rootIsFile := !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://")
	client := &http.Client{Timeout: settings.HTTPTimeout}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.ReadFromURIFunc = func(_ *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !rootIsFile {
				return nil, fmt.Errorf("blocked file ref from remote document: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			resp, err := client.Get(uri.String())
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectVersion returns 3 for OpenAPI 3.x and 2 for Swagger 2.0.
func detectVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("openapi: parse document: %w", err)
	}
	if s, _ := root["openapi"].(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
		return 3, nil
	}
	if s, _ := root["swagger"].(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
		return 2, nil
	}
	return 0, errors.New("openapi: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// convertV2ToV3 goes through JSON so kin-openapi's ref-aware unmarshalers
// run on every schema.
func convertV2ToV3(data []byte) (*openapi3.T, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	js, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(js, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// stringKeys turns YAML mappings with non-string keys (e.g. status codes
// written as 200) into JSON-compatible maps.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = stringKeys(e)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case []any:
		for i, e := range val {
			val[i] = stringKeys(e)
		}
		return val
	default:
		return v
	}
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode < 300 && rerr == nil:
				return body, nil
			case resp.StatusCode < 300:
				lastErr = rerr
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
			default:
				if len(body) > 1024 {
					body = body[:1024]
				}
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func mapLoadErr(err error, location string) error {
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "unmarshal") {
		code = ParseError
	}
	return &LoadError{Code: code, Message: err.Error(), Location: location, JSONPointer: jsonPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func jsonPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return jsonPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
	}
	return jsonPtrRe.FindString(err.Error())
}

func onlyUnresolvedRefs(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unresolved ref")
}
