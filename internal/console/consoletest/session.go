// Package consoletest provides an in-memory console.Session for tests.
//
// The fake models the parts of the console that matter to the operation
// workflow: which labels are visible on the view, the value behind each
// point, one open dialog at a time, and the difference between confirming
// (commit) and dismissing (discard) a pending change.
package consoletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-operator/internal/console"
)

// Session is a scriptable fake console session. The zero value is not
// usable; create one with New.
type Session struct {
	mu sync.Mutex

	// values holds the current value of every point keyed by visible label.
	values map[string]string
	forced map[string]bool

	open         string
	pendingValue *string
	pendingFree  bool

	// OpenErrs is consumed one entry per OpenDialog call; a nil entry succeeds.
	OpenErrs []error

	// ConfirmErrs is consumed one entry per Confirm call.
	ConfirmErrs []error

	// EnterErr, when set, is returned by every EnterValue call.
	EnterErr error

	// HomeErr, when set, is returned by every Home call.
	HomeErr error

	// ConfirmDisabled makes the commit control of every dialog disabled:
	// CanConfirm and Confirm both fail with console.ErrCannotConfirm.
	ConfirmDisabled bool

	// misrouted maps a label to the point whose dialog opens instead.
	misrouted map[string]string

	calls       []string
	screenshots int
	closed      bool
}

// New returns an empty fake session.
func New() *Session {
	return &Session{
		values:    make(map[string]string),
		forced:    make(map[string]bool),
		misrouted: make(map[string]string),
	}
}

// Misroute makes OpenDialog(label) open the dialog of target, the way a
// substring locator lands on a neighbouring row. OpenDialog then reports
// console.ErrWrongPoint with target's dialog left open.
func (s *Session) Misroute(label, target string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misrouted[label] = target
	return s
}

// AddPoint makes a point visible under label with the given value.
func (s *Session) AddPoint(label, value string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[label] = value
	return s
}

// Value returns the committed value of a point.
func (s *Session) Value(label string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[label]
}

// Forced reports whether a point currently holds a forced value.
func (s *Session) Forced(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced[label]
}

// Calls returns the capability calls made so far, e.g. "open:JV40_Pos".
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Screenshots returns the number of captured screenshots.
func (s *Session) Screenshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshots
}

func (s *Session) record(call string) {
	s.calls = append(s.calls, call)
}

// Home implements console.Session.
func (s *Session) Home(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("home")
	s.open = ""
	s.pendingValue = nil
	s.pendingFree = false
	return s.HomeErr
}

// Locate implements console.Session.
func (s *Session) Locate(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("locate:" + name)
	_, ok := s.values[name]
	return ok, nil
}

// OpenDialog implements console.Session.
func (s *Session) OpenDialog(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("open:" + name)
	if len(s.OpenErrs) > 0 {
		err := s.OpenErrs[0]
		s.OpenErrs = s.OpenErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := s.values[name]; !ok {
		return fmt.Errorf("no row for %q", name)
	}
	if target, ok := s.misrouted[name]; ok {
		s.open = target
		return fmt.Errorf("%w: want %q, dialog shows %q", console.ErrWrongPoint, name, target)
	}
	s.open = name
	return nil
}

// ReadValue implements console.Session.
func (s *Session) ReadValue(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("read")
	if s.open == "" {
		return "", console.ErrNoDialog
	}
	return s.values[s.open], nil
}

// EnterValue implements console.Session.
func (s *Session) EnterValue(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("enter:" + value)
	if s.open == "" {
		return console.ErrNoDialog
	}
	if s.EnterErr != nil {
		return s.EnterErr
	}
	v := value
	s.pendingValue = &v
	return nil
}

// Release implements console.Session.
func (s *Session) Release(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("release")
	if s.open == "" {
		return console.ErrNoDialog
	}
	s.pendingFree = true
	return nil
}

// CanConfirm implements console.Session.
func (s *Session) CanConfirm(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("can-confirm")
	if s.open == "" {
		return console.ErrNoDialog
	}
	if s.ConfirmDisabled {
		return fmt.Errorf("%w: OK is disabled", console.ErrCannotConfirm)
	}
	return nil
}

// Confirm implements console.Session.
func (s *Session) Confirm(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("confirm")
	if s.open == "" {
		return console.ErrNoDialog
	}
	if s.ConfirmDisabled {
		return fmt.Errorf("%w: OK is disabled", console.ErrCannotConfirm)
	}
	if len(s.ConfirmErrs) > 0 {
		err := s.ConfirmErrs[0]
		s.ConfirmErrs = s.ConfirmErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.pendingValue != nil {
		s.values[s.open] = *s.pendingValue
		s.forced[s.open] = true
	}
	if s.pendingFree {
		s.forced[s.open] = false
	}
	s.open = ""
	s.pendingValue = nil
	s.pendingFree = false
	return nil
}

// Dismiss implements console.Session.
func (s *Session) Dismiss(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("dismiss")
	s.open = ""
	s.pendingValue = nil
	s.pendingFree = false
	return nil
}

// Screenshot implements console.Session.
func (s *Session) Screenshot(_ context.Context, label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots++
	return fmt.Sprintf("memory://%s/%d", label, s.screenshots), nil
}

// Close marks the session closed. It is not part of console.Session but
// matches the browser session so the fake can stand in for an opened one.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("close")
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ console.Session = (*Session)(nil)
