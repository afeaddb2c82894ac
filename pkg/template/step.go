package template

import "github.com/browserflow/browserflow/pkg/scenario"

// ResolveStep builds an immutable resolved copy of a step with every
// templatable field substituted: selector, text, url, script, string args
// entries, form field selectors and values, option text and value. The
// stored template step is never mutated; non-string fields pass through
// unchanged.
func (r *Resolver) ResolveStep(step *scenario.Step, scenarioVars, callVars map[string]string) *scenario.Step {
	out := step.Clone()

	out.Selector = r.Resolve(out.Selector, scenarioVars, callVars)
	out.Text = r.Resolve(out.Text, scenarioVars, callVars)
	out.URL = r.Resolve(out.URL, scenarioVars, callVars)
	out.Script = r.Resolve(out.Script, scenarioVars, callVars)
	out.Submit = r.Resolve(out.Submit, scenarioVars, callVars)

	for i, arg := range out.Args {
		if s, ok := arg.(string); ok {
			out.Args[i] = r.Resolve(s, scenarioVars, callVars)
		}
	}

	for name, field := range out.Fields {
		field.Selector = r.Resolve(field.Selector, scenarioVars, callVars)
		field.Value = r.Resolve(field.Value, scenarioVars, callVars)
		out.Fields[name] = field
	}

	if out.Option != nil {
		out.Option.Text = r.Resolve(out.Option.Text, scenarioVars, callVars)
		out.Option.Value = r.Resolve(out.Option.Value, scenarioVars, callVars)
	}

	return out
}
