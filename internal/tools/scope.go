package tools

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Scope collects the resources a tool acquires during one execution and
// releases them in reverse order when the execution ends, whether the tool
// returns normally, returns an error or panics.
type Scope struct {
	mu       sync.Mutex
	releases []func() error
	closed   bool
}

type scopeKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// EnterScope returns the scope of the current tool execution. When ctx
// carries none (a tool called outside the Invoker) it creates one, and done
// closes it; otherwise done is a no-op and the Invoker closes the scope.
func EnterScope(ctx context.Context) (s *Scope, done func()) {
	if s, ok := ctx.Value(scopeKey{}).(*Scope); ok && s != nil {
		return s, func() {}
	}
	s = &Scope{}
	return s, func() { _ = s.Close() }
}

// Track registers c to be closed when the scope ends.
func (s *Scope) Track(c io.Closer) {
	s.Defer(c.Close)
}

// Defer registers fn to run when the scope ends.
func (s *Scope) Defer(fn func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = fn()
		return
	}
	s.releases = append(s.releases, fn)
	s.mu.Unlock()
}

// Close runs all registered releases in LIFO order and reports their errors.
// Calling Close more than once is a no-op.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		if err := releases[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
