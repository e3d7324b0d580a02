package plugin

import "fmt"

// Rule is a single named validation check, the minimal surface the plugin
// contract needs (spec §6: "rule lists or custom callables") without the
// full rule-DSL the spec's Non-goals exclude.
type Rule struct {
	Name     string
	Validate func(value any) error
}

// Validator checks a value (args tuple or config mapping) and returns an
// error describing the first failing rule, if any.
type Validator interface {
	Validate(value any) error
}

// RuleValidator runs a list of Rules in order, stopping at the first
// failure.
type RuleValidator struct {
	rules []Rule
}

// NewRuleValidator builds a Validator from a list of rules.
func NewRuleValidator(rules ...Rule) *RuleValidator {
	return &RuleValidator{rules: rules}
}

func (v *RuleValidator) Validate(value any) error {
	for _, r := range v.rules {
		if err := r.Validate(value); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}
	return nil
}

// FuncValidator adapts a plain function to the Validator interface, for
// callers who want a custom callable instead of a rule list.
type FuncValidator func(value any) error

func (f FuncValidator) Validate(value any) error { return f(value) }

// DefaultArgsValidator is a no-op args validator used when a plugin
// declares no rules: any argument shape is accepted.
func DefaultArgsValidator() Validator {
	return FuncValidator(func(any) error { return nil })
}

// DefaultConfigValidator is a no-op config validator used when a plugin
// declares no rules.
func DefaultConfigValidator() Validator {
	return FuncValidator(func(any) error { return nil })
}
