package fluxion

import (
	"errors"
	"testing"

	"github.com/fluxion-dev/fluxion/pkg/result"
)

func TestWatchDeliversInitialResult(t *testing.T) {
	s := NewSource(9)

	var got []int
	NewWatch(s, func(r result.Result[int]) {
		got = append(got, r.MustValue())
	})

	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected one initial delivery of 9, got %v", got)
	}
}

func TestWatchDeliversOnChange(t *testing.T) {
	s := NewSource(1)

	var got []int
	w := NewWatch(s, func(r result.Result[int]) {
		got = append(got, r.MustValue())
	})

	s.Set(2)
	if children := w.Ping(NewEmitterSet(s)); children != nil {
		t.Error("watch is terminal and must never return reactors")
	}
	s.Set(3)
	w.Ping(NewEmitterSet(s))

	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWatchSkipsUnchangedResult(t *testing.T) {
	s := NewSource(5)

	calls := 0
	w := NewWatch(s, func(result.Result[int]) { calls++ })

	s.Set(5)
	w.Ping(NewEmitterSet(s))

	if calls != 1 {
		t.Errorf("unchanged result must not be re-delivered, got %d calls", calls)
	}
}

func TestWatchDeliversFailures(t *testing.T) {
	s := NewSource(1)

	var last result.Result[int]
	w := NewWatch(s, func(r result.Result[int]) { last = r })

	sentinel := errors.New("sensor offline")
	s.Fail(sentinel)
	w.Ping(NewEmitterSet(s))

	if !last.Failed() || last.Error() != sentinel {
		t.Errorf("expected the failure delivered, got %s", last)
	}

	// The identical failure repeats: absorbed.
	calls := 0
	w2 := NewWatch(s, func(result.Result[int]) { calls++ })
	s.Fail(sentinel)
	w2.Ping(NewEmitterSet(s))
	if calls != 1 {
		t.Errorf("repeated identical failure must not re-deliver, got %d calls", calls)
	}
}

func TestWatchDeactivated(t *testing.T) {
	s := NewSource(1)

	calls := 0
	w := NewWatch(s, func(result.Result[int]) { calls++ })

	w.Deactivate()
	s.Set(2)
	w.Ping(NewEmitterSet(s))

	if calls != 1 {
		t.Errorf("deactivated watch must ignore pings, got %d calls", calls)
	}
}

func TestWatchLevelAndName(t *testing.T) {
	s := NewSource(1, WithName("root"))
	m := NewMap(s, identity[int]())
	w := NewWatch(m, func(result.Result[int]) {})

	if w.Level() != m.Level()+1 {
		t.Errorf("watch level must be parent+1, got %d", w.Level())
	}
	if w.Name() != "root.map.watch" {
		t.Errorf("unexpected name %q", w.Name())
	}
	if w.Kind() != "watch" {
		t.Errorf("unexpected kind %q", w.Kind())
	}
}
