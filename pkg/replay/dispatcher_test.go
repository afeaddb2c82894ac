package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/browserflow/browserflow/pkg/driver/drivertest"
	"github.com/browserflow/browserflow/pkg/scenario"
)

func TestDispatch_Primitives(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	tests := []struct {
		name    string
		step    *scenario.Step
		wantOps []string
	}{
		{
			name:    "navigate",
			step:    &scenario.Step{Action: scenario.ActionNavigate, URL: "https://example.com"},
			wantOps: []string{"navigate"},
		},
		{
			name:    "click",
			step:    &scenario.Step{Action: scenario.ActionClick, Selector: "#btn", By: "css"},
			wantOps: []string{"click"},
		},
		{
			name:    "type",
			step:    &scenario.Step{Action: scenario.ActionType, Selector: "#user", Text: "alice"},
			wantOps: []string{"type"},
		},
		{
			name:    "screenshot",
			step:    &scenario.Step{Action: scenario.ActionScreenshot},
			wantOps: []string{"screenshot"},
		},
		{
			name: "select_option",
			step: &scenario.Step{Action: scenario.ActionSelectOption, Selector: "#country",
				Option: &scenario.OptionSpec{By: scenario.SelectByText, Text: "Sweden"}},
			wantOps: []string{"select_option"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := drivertest.NewFakeDriver()
			result := d.Dispatch(ctx, drv, tt.step)
			if !result.Success {
				t.Fatalf("Dispatch failed: %s", result.Message)
			}

			ops := drv.CallOps()
			if len(ops) != len(tt.wantOps) {
				t.Fatalf("ops = %v, want %v", ops, tt.wantOps)
			}
			for i := range ops {
				if ops[i] != tt.wantOps[i] {
					t.Errorf("ops = %v, want %v", ops, tt.wantOps)
				}
			}
		})
	}
}

func TestDispatch_UnknownActionFails(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()

	result := d.Dispatch(context.Background(), drv, &scenario.Step{Action: "scroll"})
	if result.Success {
		t.Fatal("expected failure for unknown action")
	}
	if len(drv.CallOps()) != 0 {
		t.Errorf("driver called for unknown action: %v", drv.CallOps())
	}
}

func TestDispatch_DriverErrorBecomesFailure(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()
	drv.FailOn["click"] = errors.New("element not found")

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action: scenario.ActionClick, Selector: "#missing",
	})
	if result.Success {
		t.Fatal("expected failure")
	}
}

func TestDispatch_SelectOptionWithoutOptionFails(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action: scenario.ActionSelectOption, Selector: "#plan",
	})
	if result.Success {
		t.Fatal("expected failure for select_option without option selector")
	}
	if len(drv.CallOps()) != 0 {
		t.Errorf("driver called without an option selector: %v", drv.CallOps())
	}
}

func TestDispatch_Wait_IsNoop(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action: scenario.ActionWait, Seconds: 30,
	})
	if !result.Success {
		t.Fatalf("wait failed: %s", result.Message)
	}
	if len(drv.CallOps()) != 0 {
		t.Errorf("wait touched the driver: %v", drv.CallOps())
	}
}

func TestFillForm_TypesFieldsInNameOrderThenSubmits(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action: scenario.ActionFillForm,
		Fields: map[string]scenario.FormField{
			"b_password": {Selector: "#pass", Value: "secret"},
			"a_username": {Selector: "#user", Value: "alice"},
		},
		Submit: "#login",
	})
	if !result.Success {
		t.Fatalf("fill_form failed: %s", result.Message)
	}

	wantOps := []string{"type", "type", "click"}
	ops := drv.CallOps()
	if len(ops) != len(wantOps) {
		t.Fatalf("ops = %v, want %v", ops, wantOps)
	}
	if drv.Calls[0].Selector != "#user" || drv.Calls[1].Selector != "#pass" {
		t.Errorf("fields typed out of order: %+v", drv.Calls[:2])
	}
	if drv.Calls[2].Op != "click" || drv.Calls[2].Selector != "#login" {
		t.Errorf("submit = %+v", drv.Calls[2])
	}
}

func TestFillForm_FieldFailureSkipsSubmit(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()
	drv.FailOn["type"] = errors.New("gone")

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action: scenario.ActionFillForm,
		Fields: map[string]scenario.FormField{
			"user": {Selector: "#user", Value: "alice"},
		},
		Submit: "#login",
	})
	if result.Success {
		t.Fatal("expected failure")
	}
	for _, op := range drv.CallOps() {
		if op == "click" {
			t.Error("submit clicked after a field failure")
		}
	}
}

func TestWaitForPageChange_URLChanges(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()
	drv.SetURL("https://example.com/login")

	// Flip the URL while the dispatcher is polling.
	go func() {
		time.Sleep(50 * time.Millisecond)
		drv.SetURL("https://example.com/dashboard")
	}()

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action:    scenario.ActionWaitForPageChange,
		TimeoutMs: 2000,
	})
	if !result.Success {
		t.Fatalf("wait_for_page_change failed: %s", result.Message)
	}
	if result.Value != "https://example.com/dashboard" {
		t.Errorf("Value = %v", result.Value)
	}
}

func TestWaitForPageChange_PatternMatchesCurrentURL(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()
	drv.SetURL("https://example.com/dashboard?tab=1")

	// With a pattern the starting URL itself may satisfy the wait.
	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action:    scenario.ActionWaitForPageChange,
		Pattern:   `/dashboard`,
		TimeoutMs: 1000,
	})
	if !result.Success {
		t.Fatalf("wait_for_page_change failed: %s", result.Message)
	}
}

func TestWaitForPageChange_Timeout(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()
	drv.SetURL("https://example.com/stuck")

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action:    scenario.ActionWaitForPageChange,
		TimeoutMs: 50,
	})
	if result.Success {
		t.Fatal("expected timeout failure")
	}
}

func TestWaitForPageChange_InvalidPattern(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action:  scenario.ActionWaitForPageChange,
		Pattern: "[",
	})
	if result.Success {
		t.Fatal("expected failure for invalid pattern")
	}
}

func TestNormalizeScriptValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want interface{}
	}{
		{"non-string passes through", 42, 42},
		{"plain string passes through", "hello", "hello"},
		{"wrapped value unwraps", `{"value": "inner"}`, "inner"},
		{"wrapped number unwraps", `{"value": 7}`, float64(7)},
		{"json without value key passes through", `{"other": 1}`, `{"other": 1}`},
		{"nil passes through", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScriptValue(tt.in)
			if got != tt.want {
				t.Errorf("normalizeScriptValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDispatch_ScriptValueNormalized(t *testing.T) {
	d := NewDispatcher()
	drv := drivertest.NewFakeDriver()
	drv.ScriptRet = `{"value": "result"}`

	result := d.Dispatch(context.Background(), drv, &scenario.Step{
		Action: scenario.ActionExecuteScript,
		Script: "return document.title",
	})
	if !result.Success {
		t.Fatalf("execute_script failed: %s", result.Message)
	}
	if result.Value != "result" {
		t.Errorf("Value = %v", result.Value)
	}
}
