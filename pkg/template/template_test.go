package template

import (
	"testing"

	"github.com/browserflow/browserflow/pkg/scenario"
)

func TestResolve_Substitution(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name         string
		template     string
		scenarioVars map[string]string
		callVars     map[string]string
		want         string
	}{
		{
			name:     "no placeholders",
			template: "https://example.com/login",
			want:     "https://example.com/login",
		},
		{
			name:         "scenario variable",
			template:     "{{username}}",
			scenarioVars: map[string]string{"username": "alice"},
			want:         "alice",
		},
		{
			name:     "call variable",
			template: "{{username}}",
			callVars: map[string]string{"username": "bob"},
			want:     "bob",
		},
		{
			name:         "scenario wins over call",
			template:     "{{name}}",
			scenarioVars: map[string]string{"name": "A"},
			callVars:     map[string]string{"name": "B"},
			want:         "A",
		},
		{
			name:         "call fills what scenario leaves",
			template:     "{{user}}:{{pass}}",
			scenarioVars: map[string]string{"user": "alice"},
			callVars:     map[string]string{"pass": "secret"},
			want:         "alice:secret",
		},
		{
			name:     "unknown placeholder stays literal",
			template: "hello {{missing}}",
			want:     "hello {{missing}}",
		},
		{
			name:         "whitespace inside braces",
			template:     "{{ username }}",
			scenarioVars: map[string]string{"username": "alice"},
			want:         "alice",
		},
		{
			name:         "unterminated placeholder stays literal",
			template:     "prefix {{username",
			scenarioVars: map[string]string{"username": "alice"},
			want:         "prefix {{username",
		},
		{
			name:         "repeated placeholder",
			template:     "{{x}}-{{x}}",
			scenarioVars: map[string]string{"x": "1"},
			want:         "1-1",
		},
		{
			name:         "empty value substitutes",
			template:     "[{{x}}]",
			scenarioVars: map[string]string{"x": ""},
			want:         "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.template, tt.scenarioVars, tt.callVars)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestResolve_ValueContainingPlaceholderIsNotReresolved(t *testing.T) {
	r := NewResolver()

	// A scenario value that itself looks like a placeholder must survive
	// the second pass untouched unless the call vars know it.
	got := r.Resolve("{{a}}", map[string]string{"a": "{{b}}"}, map[string]string{"b": "x"})
	if got != "x" {
		// The scenario pass produces "{{b}}", the call pass resolves it.
		t.Errorf("Resolve = %q, want %q", got, "x")
	}

	got = r.Resolve("{{a}}", map[string]string{"a": "{{b}}"}, nil)
	if got != "{{b}}" {
		t.Errorf("Resolve = %q, want %q", got, "{{b}}")
	}
}

func TestResolveStep_AllFields(t *testing.T) {
	r := NewResolver()
	vars := map[string]string{
		"sel":   "#login",
		"user":  "alice",
		"url":   "https://example.com",
		"value": "premium",
	}

	step := &scenario.Step{
		Action:   scenario.ActionFillForm,
		Selector: "{{sel}}",
		Text:     "{{user}}",
		URL:      "{{url}}/home",
		Script:   "return '{{user}}'",
		Submit:   "{{sel}}-submit",
		Args:     []interface{}{"{{user}}", 42},
		Fields: map[string]scenario.FormField{
			"username": {Selector: "{{sel}}-user", Value: "{{user}}"},
		},
		Option: &scenario.OptionSpec{By: scenario.SelectByValue, Value: "{{value}}"},
	}

	resolved := r.ResolveStep(step, vars, nil)

	if resolved.Selector != "#login" {
		t.Errorf("Selector = %q", resolved.Selector)
	}
	if resolved.Text != "alice" {
		t.Errorf("Text = %q", resolved.Text)
	}
	if resolved.URL != "https://example.com/home" {
		t.Errorf("URL = %q", resolved.URL)
	}
	if resolved.Script != "return 'alice'" {
		t.Errorf("Script = %q", resolved.Script)
	}
	if resolved.Submit != "#login-submit" {
		t.Errorf("Submit = %q", resolved.Submit)
	}
	if resolved.Args[0] != "alice" {
		t.Errorf("Args[0] = %v", resolved.Args[0])
	}
	if resolved.Args[1] != 42 {
		t.Errorf("Args[1] = %v", resolved.Args[1])
	}
	if f := resolved.Fields["username"]; f.Selector != "#login-user" || f.Value != "alice" {
		t.Errorf("Fields[username] = %+v", f)
	}
	if resolved.Option.Value != "premium" {
		t.Errorf("Option.Value = %q", resolved.Option.Value)
	}
}

func TestResolveStep_DoesNotMutateOriginal(t *testing.T) {
	r := NewResolver()
	step := &scenario.Step{
		Action:   scenario.ActionType,
		Selector: "{{sel}}",
		Text:     "{{user}}",
		Fields: map[string]scenario.FormField{
			"f": {Selector: "{{sel}}", Value: "{{user}}"},
		},
	}

	_ = r.ResolveStep(step, map[string]string{"sel": "#x", "user": "alice"}, nil)

	if step.Selector != "{{sel}}" || step.Text != "{{user}}" {
		t.Errorf("original step mutated: %+v", step)
	}
	if f := step.Fields["f"]; f.Selector != "{{sel}}" || f.Value != "{{user}}" {
		t.Errorf("original fields mutated: %+v", f)
	}
}
