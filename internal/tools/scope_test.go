package tools

import (
	"context"
	"errors"
	"testing"
)

func TestScope_CloseRunsOnceInReverseOrder(t *testing.T) {
	var order []int
	s := &Scope{}
	for i := 1; i <= 3; i++ {
		i := i
		s.Defer(func() error { order = append(order, i); return nil })
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Fatalf("unexpected release order %v", order)
	}
}

func TestScope_JoinsErrors(t *testing.T) {
	s := &Scope{}
	errA, errB := errors.New("a"), errors.New("b")
	s.Defer(func() error { return errA })
	s.Defer(func() error { return errB })
	err := s.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestScope_DeferAfterCloseRunsImmediately(t *testing.T) {
	s := &Scope{}
	_ = s.Close()
	ran := false
	s.Defer(func() error { ran = true; return nil })
	if !ran {
		t.Fatal("release registered after close must run immediately")
	}
}

func TestEnterScope(t *testing.T) {
	outer := &Scope{}
	ctx := WithScope(context.Background(), outer)
	s, done := EnterScope(ctx)
	if s != outer {
		t.Fatal("expected the invocation scope")
	}
	ran := false
	s.Defer(func() error { ran = true; return nil })
	done()
	if ran {
		t.Fatal("done must not close a scope owned by the invoker")
	}

	detached, done := EnterScope(context.Background())
	ran = false
	detached.Defer(func() error { ran = true; return nil })
	done()
	if !ran {
		t.Fatal("done must close a scope created for a direct call")
	}
}
