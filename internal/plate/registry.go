package plate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/plates-tracker/constants"
)

// grammarFileSchema describes an extra grammar registry file.
func grammarFileSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"grammars"},
		"properties": map[string]any{
			"grammars": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"label", "pattern"},
					"properties": map[string]any{
						"label": map[string]any{
							"type":      "string",
							"minLength": 1,
							"not":       map[string]any{"enum": []string{constants.FormatNonStandard}},
						},
						"pattern": map[string]any{"type": "string", "minLength": 1},
						"family": map[string]any{
							"type": "string",
							"enum": []string{constants.FamilyFR, constants.FamilyEU, constants.FamilyLegacy, constants.FamilyOther},
						},
					},
				},
			},
		},
	}
}

type grammarFile struct {
	Grammars []struct {
		Label   string `json:"label"`
		Pattern string `json:"pattern"`
		Family  string `json:"family"`
	} `json:"grammars"`
}

// LoadGrammars reads a YAML or JSON grammar file, validates it and compiles
// its patterns. Patterns are anchored to the whole text.
func LoadGrammars(path string) ([]Grammar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar file: %w", err)
	}
	return ParseGrammars(raw)
}

// ParseGrammars is LoadGrammars over an in-memory document.
func ParseGrammars(raw []byte) ([]Grammar, error) {
	// YAML is a superset of JSON; normalize to JSON for the schema check.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse grammar file: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode grammar file: %w", err)
	}
	if err := validateAgainstSchema(grammarFileSchema(), data); err != nil {
		return nil, err
	}

	var f grammarFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode grammar file: %w", err)
	}

	out := make([]Grammar, 0, len(f.Grammars))
	for _, g := range f.Grammars {
		expr := g.Pattern
		if !strings.HasPrefix(expr, "^") {
			expr = "^(?:" + expr + ")$"
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("grammar %q: %w", g.Label, err)
		}
		family := g.Family
		if family == "" {
			family = constants.FamilyOther
		}
		out = append(out, Grammar{Label: g.Label, Family: family, Pattern: re})
	}
	return out, nil
}

func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("grammars.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("grammars.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("grammar file does not match schema: %w", err)
	}
	return nil
}
