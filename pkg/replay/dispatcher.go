package replay

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/browserflow/browserflow/pkg/driver"
	"github.com/browserflow/browserflow/pkg/scenario"
)

// Result is the normalized outcome of one dispatched step.
type Result struct {
	Success bool
	Message string
	Value   interface{}
}

func failure(format string, args ...interface{}) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Defaults for wait_for_page_change polling
const (
	defaultPageChangeTimeout = 10 * time.Second
	pageChangePollInterval   = 250 * time.Millisecond
)

// Dispatcher maps a resolved step onto exactly one browser primitive and
// normalizes the outcome. It performs no I/O of its own beyond the driver
// call; a failing driver call becomes a failure Result, never a panic.
type Dispatcher struct{}

// NewDispatcher creates a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch executes one resolved step against the session's driver. Unknown
// action kinds return a failure result.
func (d *Dispatcher) Dispatch(ctx context.Context, drv driver.Driver, step *scenario.Step) Result {
	switch step.Action {
	case scenario.ActionNavigate:
		if err := drv.Navigate(ctx, step.URL); err != nil {
			return failure("navigate to %s failed: %v", step.URL, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("navigated to %s", step.URL)}

	case scenario.ActionClick:
		if err := drv.Click(ctx, step.Selector, step.By); err != nil {
			return failure("click %s failed: %v", step.Selector, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("clicked %s", step.Selector)}

	case scenario.ActionType:
		if err := drv.Type(ctx, step.Selector, step.By, step.Text); err != nil {
			return failure("type into %s failed: %v", step.Selector, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("typed into %s", step.Selector)}

	case scenario.ActionExecuteScript:
		value, err := drv.RunScript(ctx, step.Script, step.Args)
		if err != nil {
			return failure("script execution failed: %v", err)
		}
		return Result{Success: true, Message: "script executed", Value: normalizeScriptValue(value)}

	case scenario.ActionScreenshot:
		png, err := drv.Screenshot(ctx)
		if err != nil {
			return failure("screenshot failed: %v", err)
		}
		return Result{Success: true, Message: "screenshot captured", Value: png}

	case scenario.ActionFillForm:
		return d.fillForm(ctx, drv, step)

	case scenario.ActionSelectOption:
		if step.Option == nil {
			return failure("select_option on %s has no option selector", step.Selector)
		}
		opt := driver.OptionSelector{
			Strategy: string(step.Option.By),
			Text:     step.Option.Text,
			Value:    step.Option.Value,
			Index:    step.Option.Index,
		}
		if err := drv.SelectOption(ctx, step.Selector, step.By, opt); err != nil {
			return failure("select option on %s failed: %v", step.Selector, err)
		}
		return Result{Success: true, Message: fmt.Sprintf("selected option on %s", step.Selector)}

	case scenario.ActionWaitForPageChange:
		return d.waitForPageChange(ctx, drv, step)

	case scenario.ActionWait:
		// Placeholder: recorded wait steps replay as a no-op. Pacing is
		// handled by the engine's inter-step delay.
		return Result{Success: true, Message: "wait skipped"}

	default:
		return failure("unknown action: %s", step.Action)
	}
}

// fillForm types each field in name order, then clicks the optional submit
// selector.
func (d *Dispatcher) fillForm(ctx context.Context, drv driver.Driver, step *scenario.Step) Result {
	names := make([]string, 0, len(step.Fields))
	for name := range step.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := step.Fields[name]
		if err := drv.Type(ctx, field.Selector, "", field.Value); err != nil {
			return failure("fill_form field %s failed: %v", name, err)
		}
	}

	if step.Submit != "" {
		if err := drv.Click(ctx, step.Submit, ""); err != nil {
			return failure("fill_form submit failed: %v", err)
		}
	}

	return Result{Success: true, Message: fmt.Sprintf("filled %d fields", len(names))}
}

// waitForPageChange polls the current URL until it changes. With a pattern
// the new URL must match the regex; without one any URL different from the
// starting URL counts as a change.
func (d *Dispatcher) waitForPageChange(ctx context.Context, drv driver.Driver, step *scenario.Step) Result {
	var re *regexp.Regexp
	if step.Pattern != "" {
		var err error
		re, err = regexp.Compile(step.Pattern)
		if err != nil {
			return failure("invalid pattern %q: %v", step.Pattern, err)
		}
	}

	startURL, err := drv.CurrentURL(ctx)
	if err != nil {
		return failure("failed to read current url: %v", err)
	}

	timeout := defaultPageChangeTimeout
	if step.TimeoutMs > 0 {
		timeout = time.Duration(step.TimeoutMs) * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		current, err := drv.CurrentURL(ctx)
		if err != nil {
			return failure("failed to read current url: %v", err)
		}

		if re != nil {
			if re.MatchString(current) {
				return Result{Success: true, Message: fmt.Sprintf("page changed to %s", current), Value: current}
			}
		} else if current != startURL {
			return Result{Success: true, Message: fmt.Sprintf("page changed to %s", current), Value: current}
		}

		if time.Now().After(deadline) {
			return failure("page did not change within %s (still at %s)", timeout, current)
		}

		select {
		case <-ctx.Done():
			return failure("wait for page change cancelled: %v", ctx.Err())
		case <-time.After(pageChangePollInterval):
		}
	}
}

// normalizeScriptValue unwraps driver script results. Drivers that marshal
// their return values hand back a JSON document shaped {"value": ...}; pick
// the inner value so callers see the script's own result.
func normalizeScriptValue(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || !gjson.Valid(s) {
		return v
	}

	inner := gjson.Get(s, "value")
	if !inner.Exists() {
		return v
	}
	return inner.Value()
}
