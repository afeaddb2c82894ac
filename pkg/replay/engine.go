// Package replay re-executes stored scenarios against a browser session,
// substituting variables and aggregating a structured report.
package replay

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/browserflow/browserflow/pkg/driver"
	opserr "github.com/browserflow/browserflow/pkg/errors"
	"github.com/browserflow/browserflow/pkg/scenario"
	"github.com/browserflow/browserflow/pkg/template"
)

// StepDelay is the fixed pause inserted between steps outside fast mode.
const StepDelay = 1 * time.Second

// HistoryRecorder persists finished replay reports. Recording history is
// best effort; a failing recorder never fails the replay.
type HistoryRecorder interface {
	Record(report *Report) error
}

// Options control one replay invocation.
type Options struct {
	// SessionID selects an existing session. When empty, or when the id
	// does not resolve, the engine creates an ephemeral session and tears
	// it down afterwards.
	SessionID string

	// FastMode skips the fixed inter-step delay.
	FastMode bool

	// StopOnError aborts the replay at the first failing step.
	StopOnError bool

	// TakeScreenshots persists images captured by screenshot steps.
	// SkipScreenshots vetoes that even when TakeScreenshots is set.
	TakeScreenshots bool
	SkipScreenshots bool

	// Variables are call-time values for {{name}} placeholders. Scenario
	// defaults win on key collision.
	Variables map[string]string
}

// Engine walks a scenario's steps in order: resolve variables, dispatch,
// record the outcome, honor timing and abort policy. Steps are strictly
// sequential within one replay; concurrent replays of different scenarios
// are independent.
type Engine struct {
	store          *scenario.Store
	registry       driver.Registry
	resolver       *template.Resolver
	dispatcher     *Dispatcher
	history        HistoryRecorder
	screenshotsDir string
	stepDelay      time.Duration
}

// NewEngine creates a replay engine. history may be nil to disable replay
// history; screenshotsDir may be empty to disable screenshot persistence.
func NewEngine(store *scenario.Store, registry driver.Registry, history HistoryRecorder, screenshotsDir string) *Engine {
	return &Engine{
		store:          store,
		registry:       registry,
		resolver:       template.NewResolver(),
		dispatcher:     NewDispatcher(),
		history:        history,
		screenshotsDir: screenshotsDir,
		stepDelay:      StepDelay,
	}
}

// SetStepDelay overrides the inter-step delay. Used by tests.
func (e *Engine) SetStepDelay(d time.Duration) {
	e.stepDelay = d
}

// Replay executes the named scenario. Individual step failures are
// recovered into the report; the returned error is non-nil only for
// not-found scenarios, session acquisition failures, a stopOnError abort,
// or an unexpected internal panic. Whatever partial report accumulated is
// returned alongside the error.
func (e *Engine) Replay(ctx context.Context, scenarioName string, opts Options) (report *Report, err error) {
	s, err := e.store.Get(scenarioName)
	if err != nil {
		return nil, err
	}

	report = &Report{
		ScenarioID:   s.ID,
		ScenarioName: s.Name,
		TotalSteps:   len(s.Steps),
	}

	// Acquire a session. A supplied id that resolves wins; anything else
	// gets a fresh ephemeral session that is always torn down afterwards,
	// success or failure.
	sess, ephemeral, err := e.acquireSession(ctx, opts.SessionID)
	if err != nil {
		return report, opserr.NewOperationalError("acquire_session", s.ID.String(), -1, err)
	}
	report.SessionID = sess.ID()
	if ephemeral {
		defer func() {
			if closeErr := e.registry.Close(sess.ID()); closeErr != nil {
				log.Printf("Warning: failed to close ephemeral session %s: %v", sess.ID(), closeErr)
			}
		}()
	}

	// An unexpected panic is a hard failure of the whole call, surfaced
	// with the partial report.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("replay of %q panicked: %v", s.Name, r)
		}
	}()

	start := time.Now()
	err = e.runSteps(ctx, s, sess, opts, report)
	report.DurationSeconds = time.Since(start).Seconds()

	if url, urlErr := sess.Driver().CurrentURL(ctx); urlErr == nil {
		report.FinalURL = url
	}

	e.store.MarkUsed(s)
	e.recordHistory(report)

	return report, err
}

// acquireSession resolves or creates the session to replay against. The
// second return value reports whether the engine created it.
func (e *Engine) acquireSession(ctx context.Context, sessionID string) (driver.Session, bool, error) {
	if sessionID != "" {
		if sess, ok := e.registry.Get(sessionID); ok {
			return sess, false, nil
		}
		log.Printf("Warning: session %s not found, creating ephemeral session", sessionID)
	}

	sess, err := e.registry.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// runSteps walks the step list in order. Returns an error only for a
// stopOnError abort or context cancellation.
func (e *Engine) runSteps(ctx context.Context, s *scenario.Scenario, sess driver.Session, opts Options, report *Report) error {
	drv := sess.Driver()

	for i, step := range s.Steps {
		if !opts.FastMode && i > 0 {
			select {
			case <-ctx.Done():
				report.Aborted = true
				return ctx.Err()
			case <-time.After(e.stepDelay):
			}
		}

		resolved := e.resolver.ResolveStep(step, s.Variables, opts.Variables)
		result := e.dispatcher.Dispatch(ctx, drv, resolved)
		report.ExecutedSteps++

		if !result.Success {
			report.FailedSteps++
			report.Errors = append(report.Errors, StepError{
				Index:   i,
				Action:  step.Action,
				Message: result.Message,
			})
			if opts.StopOnError {
				report.Aborted = true
				return opserr.NewOperationalError("replay_step", s.ID.String(), i,
					fmt.Errorf("%s failed: %s", step.Action, result.Message))
			}
			continue
		}

		if step.Action == scenario.ActionScreenshot && opts.TakeScreenshots && !opts.SkipScreenshots {
			if png, ok := result.Value.([]byte); ok {
				e.persistScreenshot(s.Name, i, png, report)
			}
		}
	}

	return nil
}

// persistScreenshot writes a captured image under the screenshots dir and
// appends its path to the report. Persistence failures are warnings, not
// step failures.
func (e *Engine) persistScreenshot(scenarioName string, index int, png []byte, report *Report) {
	if e.screenshotsDir == "" {
		return
	}

	dir := filepath.Join(e.screenshotsDir, scenarioName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: failed to create screenshots directory: %v", err)
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("step_%03d_%d.png", index, time.Now().UnixMilli()))
	if err := os.WriteFile(path, png, 0644); err != nil {
		log.Printf("Warning: failed to write screenshot: %v", err)
		return
	}

	report.Screenshots = append(report.Screenshots, path)
}

// recordHistory saves the report, best effort.
func (e *Engine) recordHistory(report *Report) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(report); err != nil {
		log.Printf("Warning: failed to record replay history: %v", err)
	}
}
