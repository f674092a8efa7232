package fluxion

import (
	"runtime"
	"sync"
)

// frame accumulates the signals read during one derivation evaluation.
// Duplicates collapse to their first occurrence; encounter order is
// preserved for diagnostics.
type frame struct {
	seen  map[uint64]struct{}
	reads []Emitter
}

func newFrame() *frame {
	return &frame{seen: make(map[uint64]struct{})}
}

// record appends an emitter to the frame if not already present.
func (f *frame) record(e Emitter) {
	id := e.ID()
	if _, ok := f.seen[id]; ok {
		return
	}
	f.seen[id] = struct{}{}
	f.reads = append(f.reads, e)
}

// captureFrames stores the active capture frame per goroutine.
// Each concurrent evaluation gets its own frame; frames on different
// goroutines never interfere.
var captureFrames sync.Map

// goroutineID returns a unique identifier for the current goroutine by
// parsing the runtime stack header. This is an implementation detail and
// must not be relied upon externally.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack header starts with "goroutine <id> ".
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// activeFrame returns the capture frame installed on the current
// goroutine, or nil when no evaluation is in flight.
func activeFrame() *frame {
	if f, ok := captureFrames.Load(goroutineID()); ok {
		return f.(*frame)
	}
	return nil
}

// setFrame installs f as the current goroutine's capture frame and returns
// the previous frame so it can be restored.
func setFrame(f *frame) *frame {
	gid := goroutineID()

	var prev *frame
	if old, ok := captureFrames.Load(gid); ok {
		prev = old.(*frame)
	}

	if f == nil {
		captureFrames.Delete(gid)
	} else {
		captureFrames.Store(gid, f)
	}
	return prev
}

// withFrame runs fn with f installed as the active capture frame, restoring
// the previous frame on every exit path, including a panic inside fn.
// A nested signal read inside fn appends into f; a nested withFrame (for
// example a computed constructed inside another derivation) gets its own
// frame and restores f afterwards.
func withFrame(f *frame, fn func()) {
	prev := setFrame(f)
	defer setFrame(prev)
	fn()
}

// recordRead records a tracked read of e into the active capture frame.
// No-op when no frame is installed on the current goroutine.
func recordRead(e Emitter) {
	if f := activeFrame(); f != nil {
		f.record(e)
	}
}

// Untracked runs fn with dependency capture suppressed: signal reads inside
// fn are not recorded as parents of the enclosing derivation.
//
// For single reads, Peek is more direct and clearer in intent.
func Untracked(fn func()) {
	prev := setFrame(nil)
	defer setFrame(prev)
	fn()
}
