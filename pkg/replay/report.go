package replay

import "github.com/browserflow/browserflow/pkg/scenario"

// StepError describes one failed step inside a replay.
type StepError struct {
	Index   int             `json:"index"`
	Action  scenario.Action `json:"action"`
	Message string          `json:"message"`
}

// Report is the structured outcome of one replay invocation. Step failures
// accumulate here instead of propagating; the replay as a whole succeeds
// when no step failed.
type Report struct {
	ScenarioID      scenario.ScenarioID `json:"scenario_id"`
	ScenarioName    string              `json:"scenario_name"`
	SessionID       string              `json:"session_id"`
	TotalSteps      int                 `json:"total_steps"`
	ExecutedSteps   int                 `json:"executed_steps"`
	FailedSteps     int                 `json:"failed_steps"`
	DurationSeconds float64             `json:"duration_seconds"`
	FinalURL        string              `json:"final_url,omitempty"`
	Errors          []StepError         `json:"errors,omitempty"`
	Screenshots     []string            `json:"screenshots,omitempty"`
	Aborted         bool                `json:"aborted,omitempty"`
}

// Success reports whether every executed step succeeded.
func (r *Report) Success() bool {
	return r.FailedSteps == 0
}
