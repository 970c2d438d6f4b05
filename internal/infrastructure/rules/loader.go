// Package rules loads the YAML rule tables that drive classification and
// compliance checks, validating them against an embedded JSON Schema.
package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/legal-intake/internal/core/classification"
	"github.com/kirillkom/legal-intake/internal/core/compliance"
)

//go:embed default.yaml
var defaultRules []byte

//go:embed schema.json
var schemaJSON []byte

// Bundle is a compiled rule file.
type Bundle struct {
	Classification classification.Rules
	Compliance     compliance.Phrasebook
}

type weightedPattern struct {
	Pattern string  `json:"pattern"`
	Weight  float64 `json:"weight"`
}

type categoryDef struct {
	Category string            `json:"category"`
	Patterns []weightedPattern `json:"patterns"`
}

type namedPattern struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

type file struct {
	Version       int           `json:"version"`
	DocumentTypes []categoryDef `json:"document_types"`
	Subjects      []categoryDef `json:"subjects"`
	Vocabulary    struct {
		Keywords        []string `json:"keywords"`
		LegalTerms      []string `json:"legal_terms"`
		ProceduralTerms []string `json:"procedural_terms"`
	} `json:"vocabulary"`
	Compliance struct {
		HighRisk             []namedPattern `json:"high_risk"`
		LegalAdvice          []namedPattern `json:"legal_advice"`
		Disclaimers          []namedPattern `json:"disclaimers"`
		Privileged           []namedPattern `json:"privileged"`
		MandatoryReview      []namedPattern `json:"mandatory_review"`
		JurisdictionTriggers []namedPattern `json:"jurisdiction_triggers"`
	} `json:"compliance"`
}

// Default compiles the rule tables shipped with the binary.
func Default() (*Bundle, error) {
	return Parse(defaultRules)
}

// Load reads a rule file from disk. An empty path yields the defaults.
func Load(path string) (*Bundle, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	bundle, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return bundle, nil
}

// Parse validates raw YAML against the schema and compiles every pattern.
// All patterns match case-insensitively.
func Parse(raw []byte) (*Bundle, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}
	if err := validate(asJSON); err != nil {
		return nil, err
	}

	var f file
	if err := json.Unmarshal(asJSON, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	out := &Bundle{}
	if out.Classification.DocumentTypes, err = compileTable(f.DocumentTypes); err != nil {
		return nil, fmt.Errorf("document_types: %w", err)
	}
	if out.Classification.Subjects, err = compileTable(f.Subjects); err != nil {
		return nil, fmt.Errorf("subjects: %w", err)
	}
	out.Classification.Vocabulary = classification.Vocabulary{
		Keywords:        f.Vocabulary.Keywords,
		LegalTerms:      f.Vocabulary.LegalTerms,
		ProceduralTerms: f.Vocabulary.ProceduralTerms,
	}

	c := f.Compliance
	families := []struct {
		name string
		in   []namedPattern
		out  *[]compliance.NamedPattern
	}{
		{"high_risk", c.HighRisk, &out.Compliance.HighRisk},
		{"legal_advice", c.LegalAdvice, &out.Compliance.LegalAdvice},
		{"disclaimers", c.Disclaimers, &out.Compliance.Disclaimers},
		{"privileged", c.Privileged, &out.Compliance.Privileged},
		{"mandatory_review", c.MandatoryReview, &out.Compliance.MandatoryReview},
		{"jurisdiction_triggers", c.JurisdictionTriggers, &out.Compliance.JurisdictionTriggers},
	}
	for _, fam := range families {
		compiled, err := compileNamed(fam.in)
		if err != nil {
			return nil, fmt.Errorf("compliance.%s: %w", fam.name, err)
		}
		*fam.out = compiled
	}
	return out, nil
}

func validate(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}

func compileTable(defs []categoryDef) (classification.RuleTable, error) {
	table := make(classification.RuleTable, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.Category] {
			return nil, fmt.Errorf("duplicate category %q", d.Category)
		}
		seen[d.Category] = true

		cat := classification.CategoryRules{Category: d.Category}
		for _, p := range d.Patterns {
			re, err := compile(p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Category, err)
			}
			cat.Rules = append(cat.Rules, classification.Rule{Pattern: re, Weight: p.Weight})
		}
		table = append(table, cat)
	}
	return table, nil
}

func compileNamed(defs []namedPattern) ([]compliance.NamedPattern, error) {
	out := make([]compliance.NamedPattern, 0, len(defs))
	for _, d := range defs {
		re, err := compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		out = append(out, compliance.NamedPattern{Name: d.Name, Pattern: re})
	}
	return out, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return re, nil
}
