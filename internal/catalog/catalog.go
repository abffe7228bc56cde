// Package catalog maps provider names to their credential specs: which
// (scope, name) pair holds the provider's secret and what format convention
// a rotated key must satisfy.
//
// A built-in set covers the providers the platform integrates with out of
// the box; additional definitions can be loaded from a directory of YAML
// files, each validated against a JSON schema before it is accepted.
package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/pkg/rotation"
	"github.com/systmms/credvault/pkg/secretref"
)

// ProviderSpec describes where a provider's credential lives and what a
// valid key looks like.
type ProviderSpec struct {
	Provider    string          `yaml:"-" json:"provider"`
	Scope       secretref.Scope `yaml:"scope" json:"scope"`
	SecretName  string          `yaml:"secretName" json:"secretName"`
	KeyPattern  string          `yaml:"keyPattern,omitempty" json:"keyPattern,omitempty"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
}

// definition is the on-disk YAML shape, following the kind/metadata/spec
// convention used across the platform's data files.
type definition struct {
	Kind     string `yaml:"kind" json:"kind"`
	Metadata struct {
		Name string `yaml:"name" json:"name"`
	} `yaml:"metadata" json:"metadata"`
	Spec ProviderSpec `yaml:"spec" json:"spec"`
}

const definitionSchema = `{
	"type": "object",
	"required": ["kind", "metadata", "spec"],
	"properties": {
		"kind": {"const": "Provider"},
		"metadata": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9_-]+$"}
			}
		},
		"spec": {
			"type": "object",
			"required": ["scope", "secretName"],
			"properties": {
				"scope": {"enum": ["instance", "project", "integration"]},
				"secretName": {"type": "string", "minLength": 1},
				"keyPattern": {"type": "string"},
				"description": {"type": "string"}
			}
		}
	}
}`

// Catalog resolves provider names to specs.
type Catalog struct {
	providers map[string]ProviderSpec
}

// Builtin returns the catalog of providers supported out of the box.
func Builtin() *Catalog {
	c := &Catalog{providers: make(map[string]ProviderSpec)}
	for _, spec := range builtinSpecs {
		c.providers[spec.Provider] = spec
	}
	return c
}

var builtinSpecs = []ProviderSpec{
	{
		Provider:    "anthropic",
		Scope:       secretref.ScopeIntegration,
		SecretName:  "providers/anthropic_api_key",
		KeyPattern:  `^sk-ant-`,
		Description: "Anthropic API key",
	},
	{
		Provider:    "openai",
		Scope:       secretref.ScopeIntegration,
		SecretName:  "providers/openai_api_key",
		KeyPattern:  `^sk-`,
		Description: "OpenAI API key",
	},
	{
		Provider:    "github",
		Scope:       secretref.ScopeIntegration,
		SecretName:  "providers/github_token",
		KeyPattern:  `^(ghp_|github_pat_|ghs_)`,
		Description: "GitHub access token",
	},
	{
		Provider:    "stripe",
		Scope:       secretref.ScopeIntegration,
		SecretName:  "providers/stripe_api_key",
		KeyPattern:  `^(sk_live_|sk_test_|rk_live_|rk_test_)`,
		Description: "Stripe API key",
	},
	{
		Provider:    "slack_signing",
		Scope:       secretref.ScopeInstance,
		SecretName:  "webhooks/slack_signing_secret",
		Description: "Slack webhook signing secret",
	},
	{
		Provider:    "webhook_signing",
		Scope:       secretref.ScopeInstance,
		SecretName:  "webhooks/outbound_signing_secret",
		Description: "Outbound webhook signing secret",
	},
}

// LoadDir merges provider definitions from *.yaml files under dir into the
// catalog. Files that are not valid Provider definitions fail the load.
func (c *Catalog) LoadDir(dir string) error {
	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading provider definition %s: %w", path, err)
		}

		var def definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return cverrors.Wrap(cverrors.TypeInvalidConfig,
				"fix the YAML syntax in "+path, err, "parsing provider definition")
		}

		if err := validateDefinition(schemaLoader, &def); err != nil {
			return cverrors.Wrap(cverrors.TypeInvalidConfig,
				"fix the provider definition in "+path, err, "validating provider definition")
		}

		spec := def.Spec
		spec.Provider = def.Metadata.Name
		c.providers[spec.Provider] = spec
		return nil
	})
}

func validateDefinition(schemaLoader gojsonschema.JSONLoader, def *definition) error {
	jsonData, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshaling definition for validation: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}

// Get resolves a provider name, with a typed invalid_provider failure.
func (c *Catalog) Get(provider string) (ProviderSpec, error) {
	spec, ok := c.providers[provider]
	if !ok {
		return ProviderSpec{}, cverrors.New(cverrors.TypeInvalidProvider,
			"run 'credvault providers' to list known providers",
			"unknown provider %q", provider)
	}
	return spec, nil
}

// List returns all specs sorted by provider name.
func (c *Catalog) List() []ProviderSpec {
	out := make([]ProviderSpec, 0, len(c.providers))
	for _, spec := range c.providers {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Validator builds the format validator for a provider, or nil when the
// provider declares no key format convention.
func (c *Catalog) Validator(provider string) (rotation.Validator, error) {
	spec, err := c.Get(provider)
	if err != nil {
		return nil, err
	}
	if spec.KeyPattern == "" {
		return nil, nil
	}
	v, err := rotation.NewFormatValidator(spec.KeyPattern)
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeInvalidConfig,
			"fix the keyPattern for provider "+provider, err, "compiling key format")
	}
	return v, nil
}
