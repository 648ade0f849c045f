// Package config loads and validates the embedder Options contract of
// spec.md §6 (`create(options)`): a YAML file the host supplies, parsed
// with gopkg.in/yaml.v3 and checked against a published JSON Schema with
// santhosh-tekuri/jsonschema/v5 so a malformed option set is rejected by
// Load/Parse with a field-precise pointer (pkg/njs.Create does not
// validate the Options it is given) — the same role core/types/validation.go plays
// for the teacher's decorator parameter schemas.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Options mirrors the embedder `create(options)` contract: the fields
// spec.md §6 enumerates, plus the fields spec.md §6's CLI surface needs
// (SearchPath) that a host loads once at startup instead
// of passing positionally.
type Options struct {
	Init         bool     `yaml:"init" json:"init"`
	Accumulative bool     `yaml:"accumulative" json:"accumulative"`
	Disassemble  bool     `yaml:"disassemble" json:"disassemble"`
	Backtrace    bool     `yaml:"backtrace" json:"backtrace"`
	Quiet        bool     `yaml:"quiet" json:"quiet"`
	Sandbox      bool     `yaml:"sandbox" json:"sandbox"`
	Unsafe       bool     `yaml:"unsafe" json:"unsafe"`
	Module       bool     `yaml:"module" json:"module"`
	AST          bool     `yaml:"ast" json:"ast"`
	SearchPath   []string `yaml:"searchPath" json:"searchPath"`
	WatchModules bool     `yaml:"watchModules" json:"watchModules"`
}

// Default returns the zero-value Options a bare `njs script.js` run uses:
// no sandboxing, no disassembly, no watch.
func Default() *Options {
	return &Options{}
}

// schemaJSON is the published JSON Schema for Options; kept inline rather
// than an embedded file since the schema is small and versioned together
// with the Options struct it validates.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "init": {"type": "boolean"},
    "accumulative": {"type": "boolean"},
    "disassemble": {"type": "boolean"},
    "backtrace": {"type": "boolean"},
    "quiet": {"type": "boolean"},
    "sandbox": {"type": "boolean"},
    "unsafe": {"type": "boolean"},
    "module": {"type": "boolean"},
    "ast": {"type": "boolean"},
    "searchPath": {"type": "array", "items": {"type": "string"}},
    "watchModules": {"type": "boolean"}
  }
}`

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "njs://config/options.json"
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	compiledSchema = s
	return s, nil
}

// Load parses a YAML options file and validates its shape before
// unmarshalling into Options, so an unknown or mistyped field is
// reported against the schema's field-precise error path instead of
// silently being dropped by yaml.v3's default decode behavior.
func Load(path string) (*Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse validates and decodes raw YAML bytes into Options.
func Parse(raw []byte) (*Options, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}
	normalized, err := toJSONCompatible(generic)
	if err != nil {
		return nil, err
	}
	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("config: schema compile: %w", err)
	}
	if err := s.Validate(normalized); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var opts Options
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &opts, nil
}

// toJSONCompatible converts yaml.v3's map[string]interface{} decode
// result (which, unlike encoding/json, may produce map[interface{}]any
// nodes in edge cases) into something encoding/json — and therefore
// jsonschema/v5, which validates against json.Marshal-able values — can
// round-trip safely.
func toJSONCompatible(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return out, nil
}
