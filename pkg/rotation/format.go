package rotation

import (
	"context"
	"fmt"
	"regexp"
)

// FormatValidator checks the candidate plaintext against a provider's key
// format convention (for example the "sk-ant-" prefix of Anthropic API
// keys). It only acts at the after stage; the before stage has no plaintext
// to inspect and passes trivially.
type FormatValidator struct {
	pattern *regexp.Regexp
}

// NewFormatValidator compiles the pattern once at construction.
func NewFormatValidator(pattern string) (*FormatValidator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid key format pattern %q: %w", pattern, err)
	}
	return &FormatValidator{pattern: re}, nil
}

// MustFormatValidator is NewFormatValidator for known-good patterns.
func MustFormatValidator(pattern string) *FormatValidator {
	v, err := NewFormatValidator(pattern)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate implements Validator.
func (v *FormatValidator) Validate(_ context.Context, vc Context) (Detail, error) {
	if vc.Stage != StageAfter {
		return "no plaintext checks at before stage", nil
	}
	if vc.Value == nil {
		return "", fmt.Errorf("no candidate value supplied at after stage")
	}
	if !v.pattern.MatchString(*vc.Value) {
		// The value itself never appears in the error.
		return "", fmt.Errorf("candidate value does not match required format %s", v.pattern)
	}
	return Detail(fmt.Sprintf("format matches %s", v.pattern)), nil
}
