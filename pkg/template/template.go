// Package template implements {{name}} placeholder substitution for
// scenario steps. Values come from two sources: the scenario's own default
// variables and call-time variables supplied with the replay request.
package template

import "strings"

// Resolver substitutes {{name}} placeholders against two variable sources.
//
// Resolution order: scenario-defined variables are applied first, call-time
// variables are applied second and only see the placeholders that survived
// the first pass, so on a key collision the scenario value wins.
type Resolver struct{}

// NewResolver creates a resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve replaces every {{name}} occurrence in the template. A placeholder
// with no matching variable in either source is left as literal {{name}}
// text, never an error.
func (r *Resolver) Resolve(template string, scenarioVars, callVars map[string]string) string {
	out := substitute(template, scenarioVars)
	return substitute(out, callVars)
}

// substitute performs one pass of placeholder replacement against a single
// variable source.
func substitute(template string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(template, "{{") {
		return template
	}

	var result strings.Builder
	i := 0
	n := len(template)

	for i < n {
		open := strings.Index(template[i:], "{{")
		if open == -1 {
			result.WriteString(template[i:])
			break
		}
		open += i

		close := strings.Index(template[open+2:], "}}")
		if close == -1 {
			// Unterminated placeholder, keep the rest verbatim.
			result.WriteString(template[i:])
			break
		}
		close += open + 2

		name := strings.TrimSpace(template[open+2 : close])
		value, ok := vars[name]

		result.WriteString(template[i:open])
		if ok {
			result.WriteString(value)
		} else {
			result.WriteString(template[open : close+2])
		}
		i = close + 2
	}

	return result.String()
}
