// Package driver defines the contract between the scenario engine and the
// external browser-automation collaborator. The recording and replay core
// only ever sees these interfaces; concrete implementations (CDP via rod,
// fakes for tests) live in subpackages.
package driver

import (
	"context"
	"errors"
	"time"
)

// Common driver errors
var (
	// ErrSessionNotFound is returned when a session id does not resolve to
	// a live session
	ErrSessionNotFound = errors.New("session not found")
)

// OptionSelector describes which option of a <select> element to pick.
type OptionSelector struct {
	// Strategy is one of "text", "value", "index".
	Strategy string
	Text     string
	Value    string
	Index    int
}

// Driver exposes the browser primitives a session supports. Every call is
// a pass-through to the underlying automation driver; blocking operations
// take a context.
type Driver interface {
	// Navigate loads the given URL.
	Navigate(ctx context.Context, url string) error

	// Click clicks the element located by selector using the given
	// strategy ("css", "xpath", "id", "name"; empty means css).
	Click(ctx context.Context, selector, by string) error

	// Type sends text to the element located by selector.
	Type(ctx context.Context, selector, by, text string) error

	// RunScript executes JavaScript in the page and returns its result.
	RunScript(ctx context.Context, script string, args []interface{}) (interface{}, error)

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// SelectOption picks an option of the <select> element located by
	// selector.
	SelectOption(ctx context.Context, selector, by string, option OptionSelector) error

	// CurrentURL returns the page's current URL.
	CurrentURL(ctx context.Context) (string, error)
}

// Session is a live browser handle tracked by the registry.
type Session interface {
	// ID returns the opaque session identifier.
	ID() string

	// Driver returns the browser primitives for this session.
	Driver() Driver
}

// SessionInfo is the bookkeeping view of a session.
type SessionInfo struct {
	ID         string    `json:"id"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Registry maps opaque session ids to live browser handles. Get refreshes
// the session's lastUsedAt stamp.
type Registry interface {
	// Get resolves a session id to a live session.
	Get(sessionID string) (Session, bool)

	// Create opens a fresh session. Used both for caller-created sessions
	// and for the ephemeral session a session-less replay runs against.
	Create(ctx context.Context) (Session, error)

	// Close tears down a session and forgets it.
	Close(sessionID string) error

	// List returns bookkeeping info for all live sessions.
	List() []SessionInfo
}
