package scenario

import (
	"errors"
	"fmt"
)

// Action is the closed tag identifying what kind of browser interaction a
// step performs. Adding a new kind means adding a constant here, extending
// Validate, and extending the dispatcher's switch.
type Action string

// All supported step actions
const (
	ActionNavigate          Action = "navigate"
	ActionClick             Action = "click"
	ActionType              Action = "type"
	ActionExecuteScript     Action = "execute_script"
	ActionScreenshot        Action = "screenshot"
	ActionFillForm          Action = "fill_form"
	ActionSelectOption      Action = "select_option"
	ActionWaitForPageChange Action = "wait_for_page_change"
	ActionWait              Action = "wait"
)

// IsValid reports whether the action is one of the supported kinds.
func (a Action) IsValid() bool {
	switch a {
	case ActionNavigate, ActionClick, ActionType, ActionExecuteScript,
		ActionScreenshot, ActionFillForm, ActionSelectOption,
		ActionWaitForPageChange, ActionWait:
		return true
	}
	return false
}

// FormField is one entry of a fill_form step: where to type and what.
type FormField struct {
	Selector string `json:"selector" yaml:"selector"`
	Value    string `json:"value" yaml:"value"`
}

// SelectBy identifies how a select_option step chooses an option.
type SelectBy string

// Option selection strategies
const (
	SelectByText  SelectBy = "text"
	SelectByValue SelectBy = "value"
	SelectByIndex SelectBy = "index"
)

// OptionSpec describes which option a select_option step picks.
type OptionSpec struct {
	By    SelectBy `json:"by" yaml:"by"`
	Text  string   `json:"text,omitempty" yaml:"text,omitempty"`
	Value string   `json:"value,omitempty" yaml:"value,omitempty"`
	Index int      `json:"index,omitempty" yaml:"index,omitempty"`
}

// Step is one recorded browser action. Which fields are meaningful depends
// on Action; unrelated fields stay at their zero value and are omitted from
// the persisted document.
type Step struct {
	Action Action `json:"action" yaml:"action"`

	// Element targeting (click, type, select_option)
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	By       string `json:"by,omitempty" yaml:"by,omitempty"`

	// navigate
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// type
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// execute_script
	Script string        `json:"script,omitempty" yaml:"script,omitempty"`
	Args   []interface{} `json:"args,omitempty" yaml:"args,omitempty"`

	// fill_form
	Fields map[string]FormField `json:"fields,omitempty" yaml:"fields,omitempty"`
	Submit string               `json:"submit,omitempty" yaml:"submit,omitempty"`

	// select_option
	Option *OptionSpec `json:"option,omitempty" yaml:"option,omitempty"`

	// wait_for_page_change
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	TimeoutMs int    `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// wait
	Seconds float64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`

	// Capture-time epoch millis. Informational only; replay timing never
	// reads this.
	Timestamp int64 `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Validate checks that the step carries the fields its action requires.
func (s *Step) Validate() error {
	if !s.Action.IsValid() {
		return fmt.Errorf("step: unknown action: %s", s.Action)
	}

	switch s.Action {
	case ActionNavigate:
		if s.URL == "" {
			return errors.New("navigate step: empty url")
		}
	case ActionClick:
		if s.Selector == "" {
			return errors.New("click step: empty selector")
		}
	case ActionType:
		if s.Selector == "" {
			return errors.New("type step: empty selector")
		}
	case ActionExecuteScript:
		if s.Script == "" {
			return errors.New("execute_script step: empty script")
		}
	case ActionFillForm:
		if len(s.Fields) == 0 {
			return errors.New("fill_form step: no fields")
		}
		for name, field := range s.Fields {
			if field.Selector == "" {
				return fmt.Errorf("fill_form step: field %s: empty selector", name)
			}
		}
	case ActionSelectOption:
		if s.Selector == "" {
			return errors.New("select_option step: empty selector")
		}
		if s.Option == nil {
			return errors.New("select_option step: missing option")
		}
		switch s.Option.By {
		case SelectByText, SelectByValue, SelectByIndex:
		default:
			return fmt.Errorf("select_option step: invalid option strategy: %s", s.Option.By)
		}
	case ActionWaitForPageChange:
		if s.TimeoutMs < 0 {
			return errors.New("wait_for_page_change step: negative timeout")
		}
	}

	return nil
}

// Clone returns a deep copy of the step. Mutating the copy never affects
// the original, so stored scenarios stay untouched during replay.
func (s *Step) Clone() *Step {
	out := *s

	if s.Args != nil {
		out.Args = make([]interface{}, len(s.Args))
		copy(out.Args, s.Args)
	}

	if s.Fields != nil {
		out.Fields = make(map[string]FormField, len(s.Fields))
		for name, field := range s.Fields {
			out.Fields[name] = field
		}
	}

	if s.Option != nil {
		opt := *s.Option
		out.Option = &opt
	}

	return &out
}
