// Package drivertest provides in-memory fakes of the driver interfaces for
// testing the recording and replay core without a real browser.
package drivertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/browserflow/browserflow/pkg/driver"
)

// Call records one invocation of a fake driver primitive.
type Call struct {
	Op       string
	URL      string
	Selector string
	By       string
	Text     string
	Script   string
	Args     []interface{}
	Option   driver.OptionSelector
}

// FakeDriver implements driver.Driver, recording every call. Individual
// operations can be made to fail via FailOn, keyed by op name ("click",
// "navigate", ...). Optionally FailOnCall makes the N-th call (1-based)
// fail regardless of op.
type FakeDriver struct {
	mu         sync.Mutex
	Calls      []Call
	FailOn     map[string]error
	FailOnCall int
	ScriptRet  interface{}
	PNG        []byte
	URLValue   string
}

// NewFakeDriver creates a fake driver with a canned screenshot payload.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		FailOn:   map[string]error{},
		PNG:      []byte("png-bytes"),
		URLValue: "https://example.test/",
	}
}

func (d *FakeDriver) record(c Call) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, c)
	if d.FailOnCall > 0 && len(d.Calls) == d.FailOnCall {
		return fmt.Errorf("injected failure on call %d", d.FailOnCall)
	}
	if err, ok := d.FailOn[c.Op]; ok {
		return err
	}
	return nil
}

// CallOps returns the op names of all recorded calls, in order.
func (d *FakeDriver) CallOps() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	ops := make([]string, len(d.Calls))
	for i, c := range d.Calls {
		ops[i] = c.Op
	}
	return ops
}

// Navigate implements driver.Driver.
func (d *FakeDriver) Navigate(_ context.Context, url string) error {
	return d.record(Call{Op: "navigate", URL: url})
}

// Click implements driver.Driver.
func (d *FakeDriver) Click(_ context.Context, selector, by string) error {
	return d.record(Call{Op: "click", Selector: selector, By: by})
}

// Type implements driver.Driver.
func (d *FakeDriver) Type(_ context.Context, selector, by, text string) error {
	return d.record(Call{Op: "type", Selector: selector, By: by, Text: text})
}

// RunScript implements driver.Driver.
func (d *FakeDriver) RunScript(_ context.Context, script string, args []interface{}) (interface{}, error) {
	if err := d.record(Call{Op: "run_script", Script: script, Args: args}); err != nil {
		return nil, err
	}
	return d.ScriptRet, nil
}

// Screenshot implements driver.Driver.
func (d *FakeDriver) Screenshot(_ context.Context) ([]byte, error) {
	if err := d.record(Call{Op: "screenshot"}); err != nil {
		return nil, err
	}
	return d.PNG, nil
}

// SelectOption implements driver.Driver.
func (d *FakeDriver) SelectOption(_ context.Context, selector, by string, option driver.OptionSelector) error {
	return d.record(Call{Op: "select_option", Selector: selector, By: by, Option: option})
}

// CurrentURL implements driver.Driver.
func (d *FakeDriver) CurrentURL(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URLValue, nil
}

// SetURL changes the URL CurrentURL reports, simulating a page change.
func (d *FakeDriver) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.URLValue = url
}

// FakeSession implements driver.Session around a FakeDriver.
type FakeSession struct {
	SessionID string
	Drv       *FakeDriver
}

// ID implements driver.Session.
func (s *FakeSession) ID() string { return s.SessionID }

// Driver implements driver.Session.
func (s *FakeSession) Driver() driver.Driver { return s.Drv }

// FakeRegistry implements driver.Registry over a map of fake sessions.
type FakeRegistry struct {
	mu        sync.Mutex
	sessions  map[string]*FakeSession
	info      map[string]driver.SessionInfo
	CreateErr error

	// Created and Closed track lifecycle calls so tests can assert the
	// ephemeral-session guarantee.
	Created []string
	Closed  []string

	// NextDriver, when set, is used for the next Create call.
	NextDriver *FakeDriver
}

// NewFakeRegistry creates an empty registry.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		sessions: make(map[string]*FakeSession),
		info:     make(map[string]driver.SessionInfo),
	}
}

// Add registers a pre-built session.
func (r *FakeRegistry) Add(s *FakeSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.SessionID] = s
	now := time.Now()
	r.info[s.SessionID] = driver.SessionInfo{ID: s.SessionID, CreatedAt: now, LastUsedAt: now}
}

// Get implements driver.Registry.
func (r *FakeRegistry) Get(sessionID string) (driver.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	info := r.info[sessionID]
	info.LastUsedAt = time.Now()
	r.info[sessionID] = info
	return s, true
}

// Create implements driver.Registry.
func (r *FakeRegistry) Create(_ context.Context) (driver.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateErr != nil {
		return nil, r.CreateErr
	}

	drv := r.NextDriver
	if drv == nil {
		drv = NewFakeDriver()
	}
	s := &FakeSession{SessionID: uuid.New().String(), Drv: drv}
	r.sessions[s.SessionID] = s
	now := time.Now()
	r.info[s.SessionID] = driver.SessionInfo{ID: s.SessionID, CreatedAt: now, LastUsedAt: now}
	r.Created = append(r.Created, s.SessionID)
	return s, nil
}

// Close implements driver.Registry.
func (r *FakeRegistry) Close(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return driver.ErrSessionNotFound
	}
	delete(r.sessions, sessionID)
	delete(r.info, sessionID)
	r.Closed = append(r.Closed, sessionID)
	return nil
}

// List implements driver.Registry.
func (r *FakeRegistry) List() []driver.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]driver.SessionInfo, 0, len(r.info))
	for _, info := range r.info {
		out = append(out, info)
	}
	return out
}
