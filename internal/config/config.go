// Package config loads yapi2zod settings: project generation options plus
// the YAPI connection and output settings, layered defaults -> YAML file ->
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is looked up in the working directory when no
	// --config flag is given.
	DefaultFileName = ".yapi-to-zod.yaml"
	// EnvPrefix prefixes every environment override, e.g. YAPI2ZOD_SERVER.
	EnvPrefix = "YAPI2ZOD"
)

// ErrInvalid marks configuration errors the user can fix.
var ErrInvalid = errors.New("invalid configuration")

// ResponseKey selects which part of a response envelope becomes the
// response model.
type ResponseKey string

const (
	ResponseAll    ResponseKey = "all"
	ResponseData   ResponseKey = "data"
	ResponseCustom ResponseKey = "custom"
)

// Project holds the options that shape generated files.
type Project struct {
	// Header lines are placed before the zod import.
	Header []string
	// ResponseKey is empty, all, data or custom.
	ResponseKey ResponseKey `validate:"omitempty,oneof=all data custom"`
	// ResponseCustomKey is a dotted property path, e.g. "data.list". When
	// empty, custom and the unset policy drill "data".
	ResponseCustomKey string
	// RequestTemplate, when set, replaces the built-in request stub. It is
	// a Go text/template rendered with .Form and .Endpoint.
	RequestTemplate string
}

// Config is the fully resolved configuration.
type Config struct {
	Project Project `ignored:"true"`

	Server      string        `split_words:"true" validate:"omitempty,url"`
	Email       string        `split_words:"true" validate:"omitempty,email"`
	Password    string        `split_words:"true"`
	Out         string        `split_words:"true"`
	Timeout     time.Duration `split_words:"true" validate:"gte=0"`
	Concurrency int           `split_words:"true" validate:"gte=1,lte=32"`
	RateLimit   float64       `split_words:"true" validate:"gte=0"`
	StateFile   string        `split_words:"true"`
	LogLevel    string        `split_words:"true" validate:"omitempty,oneof=trace debug info warn error"`
	DryRun      bool          `split_words:"true"`
	Force       bool          `split_words:"true"`

	// Path is the file the configuration was read from, if any.
	Path string `ignored:"true"`
	// Unknown lists file keys that were not recognized.
	Unknown []string `ignored:"true"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		Concurrency: 4,
		LogLevel:    "info",
	}
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. A missing file is an error only when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			cfg.Path = path
			if err := cfg.applyYAML(path, data); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("%w: read config file %q: %v", ErrInvalid, path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", ErrInvalid, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize trims string fields.
func (c *Config) Normalize() {
	c.Server = strings.TrimRight(strings.TrimSpace(c.Server), "/")
	c.Email = strings.TrimSpace(c.Email)
	c.Out = strings.TrimSpace(c.Out)
	c.StateFile = strings.TrimSpace(c.StateFile)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Project.ResponseKey = ResponseKey(strings.ToLower(strings.TrimSpace(string(c.Project.ResponseKey))))
	c.Project.ResponseCustomKey = strings.TrimSpace(c.Project.ResponseCustomKey)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	name := fieldKey(fe.StructNamespace())
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", name, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be an http(s) URL, got %q", name, fe.Value())
	case "email":
		return fmt.Sprintf("%s must be an email address, got %q", name, fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", name, fe.Tag(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q", name, fe.Tag())
	}
}

// fieldKey turns "Config.Project.ResponseKey" into "responseKey".
func fieldKey(ns string) string {
	if i := strings.LastIndex(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return ns
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func (c *Config) applyYAML(path string, data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse config file %q: %v", ErrInvalid, path, err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := c.applyKey(key, raw[key]); err != nil {
			return fmt.Errorf("%w: config field %q: %v", ErrInvalid, key, err)
		}
	}
	return nil
}

func (c *Config) applyKey(key string, value any) error {
	var err error
	switch normalizeKey(key) {
	case "header":
		c.Project.Header, err = valueAsLines(value)
	case "responsekey":
		var s string
		s, err = valueAsString(value)
		c.Project.ResponseKey = ResponseKey(s)
	case "responsecustomkey":
		c.Project.ResponseCustomKey, err = valueAsString(value)
	case "requesttemplate":
		c.Project.RequestTemplate, err = valueAsRaw(value)
	case "server":
		c.Server, err = valueAsString(value)
	case "email":
		c.Email, err = valueAsString(value)
	case "password":
		c.Password, err = valueAsRaw(value)
	case "out":
		c.Out, err = valueAsString(value)
	case "timeout":
		c.Timeout, err = valueAsDuration(value)
	case "concurrency":
		c.Concurrency, err = valueAsInt(value)
	case "ratelimit":
		c.RateLimit, err = valueAsFloat(value)
	case "statefile":
		c.StateFile, err = valueAsString(value)
	case "loglevel":
		c.LogLevel, err = valueAsString(value)
	case "dryrun":
		c.DryRun, err = valueAsBool(value)
	case "force":
		c.Force, err = valueAsBool(value)
	default:
		c.Unknown = append(c.Unknown, key)
	}
	return err
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	s, err := valueAsRaw(v)
	return strings.TrimSpace(s), err
}

// valueAsRaw keeps surrounding whitespace, which matters for templates.
func valueAsRaw(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// valueAsLines accepts a list of strings or a single (possibly multi-line)
// string. Lines are kept verbatim since they are emitted as code.
func valueAsLines(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return strings.Split(strings.TrimRight(val, "\n"), "\n"), nil
	case []any:
		lines := make([]string, 0, len(val))
		for idx, elem := range val {
			s, err := valueAsRaw(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			lines = append(lines, s)
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func valueAsFloat(v any) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// valueAsDuration accepts Go duration strings or a number of seconds.
func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case int:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}
