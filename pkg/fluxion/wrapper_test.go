package fluxion

import (
	"errors"
	"testing"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

// identity returns a map transform that passes the result through.
func identity[T any]() func(result.Result[T]) result.Result[T] {
	return func(in result.Result[T]) result.Result[T] { return in }
}

func doubleTransform(in result.Result[int]) result.Result[int] {
	v, err := in.Value()
	if err != nil {
		return in
	}
	return result.Ok(v * 2)
}

func TestMapNodeConstruction(t *testing.T) {
	s1 := NewSource(5, WithName("s1"))
	s2 := NewMap(s1, doubleTransform)

	if s2.Level() != s1.Level()+1 {
		t.Errorf("map level must be parent+1, got %d", s2.Level())
	}
	if v := s2.Peek().MustValue(); v != 10 {
		t.Errorf("expected Success(10), got %s", s2.Peek())
	}
	if s2.Name() != "s1.map" {
		t.Errorf("expected derived name s1.map, got %q", s2.Name())
	}
	if !containsReactor(s1.Children(), s2) {
		t.Error("map node not registered as parent's child")
	}
}

func TestMapNodeRecomputesFromParentCurrentResult(t *testing.T) {
	s1 := NewSource(5, WithName("s1"))
	s2 := NewMap(s1, doubleTransform)
	NewWatch(s2, func(result.Result[int]) {})

	// The parent is assumed already updated by the time the map node is
	// pinged; the transform applies to the parent's current result.
	s1.Set(7)
	children := s2.Ping(NewEmitterSet(s1))

	if v := s2.Peek().MustValue(); v != 14 {
		t.Errorf("expected Success(14), got %s", s2.Peek())
	}
	if len(children) == 0 {
		t.Error("map must return its children whenever it has any")
	}
}

func TestMapNodeNeverAbsorbs(t *testing.T) {
	s1 := NewSource(5)
	s2 := NewMap(s1, doubleTransform)
	NewWatch(s2, func(result.Result[int]) {})

	// Unchanged parent value: a map still recomputes and propagates.
	for i := 0; i < 3; i++ {
		if children := s2.Ping(NewEmitterSet(s1)); len(children) == 0 {
			t.Fatal("map node must never absorb")
		}
	}
}

func TestMapNodeFailurePassThrough(t *testing.T) {
	s1 := NewSource(5)
	s2 := NewMap(s1, doubleTransform)

	sentinel := errors.New("upstream broke")
	s1.Fail(sentinel)
	s2.Ping(NewEmitterSet(s1))

	if !s2.Peek().Failed() {
		t.Fatal("expected failure to flow through the map")
	}
	if s2.Peek().Error() != sentinel {
		t.Errorf("expected sentinel, got %v", s2.Peek().Error())
	}
}

func TestMapNodeTransformCanSubstituteDefault(t *testing.T) {
	s1 := NewSource(5)
	s2 := NewMap(s1, func(in result.Result[int]) result.Result[int] {
		if in.Failed() {
			return result.Ok(-1)
		}
		return in
	})

	s1.Fail(errors.New("boom"))
	s2.Ping(NewEmitterSet(s1))

	if v := s2.Peek().MustValue(); v != -1 {
		t.Errorf("expected substituted default -1, got %d", v)
	}
}

func TestMapNodeTransformPanicContained(t *testing.T) {
	s1 := NewSource(0)
	s2 := NewMap(s1, func(in result.Result[int]) result.Result[int] {
		panic("transform bug")
	})

	if !s2.Peek().Failed() {
		t.Error("a panicking transform must produce a failure result")
	}
}

func TestMapNodeChangesType(t *testing.T) {
	s1 := NewSource(41)
	s2 := NewMap(s1, func(in result.Result[int]) result.Result[string] {
		v, err := in.Value()
		if err != nil {
			return result.Err[string](err)
		}
		if v%2 == 0 {
			return result.Ok("even")
		}
		return result.Ok("odd")
	})

	if v := s2.Peek().MustValue(); v != "odd" {
		t.Errorf("expected odd, got %q", v)
	}
}

// keepUnlessEven keeps the previous value unless the new one is even.
// The first application sees the no-prior sentinel and takes the current
// value regardless.
func keepUnlessEven(prev, cur result.Result[int]) result.Result[int] {
	if errors.Is(prev.Error(), result.ErrNoPrior) {
		return cur
	}
	if v, err := cur.Value(); err == nil && v%2 == 0 {
		return cur
	}
	return prev
}

func TestFilterNodeScenario(t *testing.T) {
	s1 := NewSource(1, WithName("s1"))
	f := NewFilter(s1, keepUnlessEven)
	NewWatch(f, func(result.Result[int]) {})

	if f.Level() != s1.Level()+1 {
		t.Errorf("filter level must be parent+1, got %d", f.Level())
	}
	if v := f.Peek().MustValue(); v != 1 {
		t.Fatalf("expected initial Success(1), got %s", f.Peek())
	}

	// Parent sequence 3, 4, 4 yields stored 1, 4, 4, propagating only on
	// the middle update.
	steps := []struct {
		set       int
		want      int
		propagate bool
	}{
		{3, 1, false},
		{4, 4, true},
		{4, 4, false},
	}
	for _, step := range steps {
		s1.Set(step.set)
		children := f.Ping(NewEmitterSet(s1))

		if v := f.Peek().MustValue(); v != step.want {
			t.Errorf("after Set(%d): expected stored %d, got %d", step.set, step.want, v)
		}
		if got := len(children) > 0; got != step.propagate {
			t.Errorf("after Set(%d): propagate=%v, want %v", step.set, got, step.propagate)
		}
	}
}

func TestFilterNodeAbsorbsRepeatedFailure(t *testing.T) {
	s1 := NewSource(2)
	f := NewDedup(s1)
	NewWatch(f, func(result.Result[int]) {})

	sentinel := errors.New("flaky upstream")
	s1.Fail(sentinel)
	if children := f.Ping(NewEmitterSet(s1)); len(children) == 0 {
		t.Fatal("first failure must propagate")
	}

	// The identical failure repeated is absorbed like a repeated success.
	s1.Fail(sentinel)
	if children := f.Ping(NewEmitterSet(s1)); children != nil {
		t.Error("repeated identical failure must be absorbed")
	}

	// A different error value is a change.
	s1.Fail(errors.New("different"))
	if children := f.Ping(NewEmitterSet(s1)); len(children) == 0 {
		t.Error("a distinct failure must propagate")
	}
}

func TestDedupAbsorbsUnchangedValue(t *testing.T) {
	s1 := NewSource(10)
	f := NewDedup(s1)
	NewWatch(f, func(result.Result[int]) {})

	if f.Name() != s1.Name()+".dedup" {
		t.Errorf("unexpected dedup name %q", f.Name())
	}

	s1.Set(10)
	if children := f.Ping(NewEmitterSet(s1)); children != nil {
		t.Error("unchanged value must be absorbed")
	}

	s1.Set(11)
	if children := f.Ping(NewEmitterSet(s1)); len(children) == 0 {
		t.Error("changed value must propagate")
	}
	if v := f.Peek().MustValue(); v != 11 {
		t.Errorf("expected stored 11, got %d", v)
	}
}

func TestFilterStoredUnchangedWhenAbsorbed(t *testing.T) {
	s1 := NewSource(1)
	f := NewFilter(s1, keepUnlessEven)

	s1.Set(3)
	f.Ping(NewEmitterSet(s1))
	if v := f.Peek().MustValue(); v != 1 {
		t.Errorf("absorbed ping must leave the stored result unchanged, got %d", v)
	}
}

func TestWrapperInactiveIgnoresPings(t *testing.T) {
	s1 := NewSource(1)
	m := NewMap(s1, doubleTransform)
	NewWatch(m, func(result.Result[int]) {})

	m.Deactivate()
	s1.Set(5)
	if children := m.Ping(NewEmitterSet(s1)); children != nil {
		t.Error("inactive map must ignore pings")
	}
	if v := m.Peek().MustValue(); v != 2 {
		t.Errorf("inactive map must keep its last result, got %d", v)
	}
}
