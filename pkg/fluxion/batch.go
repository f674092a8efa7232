package fluxion

import "sync"

// batchFrame collects the root sources written during one Batch call.
type batchFrame struct {
	seen  map[uint64]struct{}
	roots []Reactor
}

func newBatchFrame() *batchFrame {
	return &batchFrame{seen: make(map[uint64]struct{})}
}

func (b *batchFrame) note(r Reactor) {
	id := r.ID()
	if _, ok := b.seen[id]; ok {
		return
	}
	b.seen[id] = struct{}{}
	b.roots = append(b.roots, r)
}

// merge folds an inner batch's roots into this frame.
func (b *batchFrame) merge(inner *batchFrame) {
	for _, r := range inner.roots {
		b.note(r)
	}
}

// batchFrames stores the active batch frame per goroutine, mirroring the
// capture-frame mechanism.
var batchFrames sync.Map

func activeBatch() *batchFrame {
	if f, ok := batchFrames.Load(goroutineID()); ok {
		return f.(*batchFrame)
	}
	return nil
}

func setBatch(f *batchFrame) *batchFrame {
	gid := goroutineID()

	var prev *batchFrame
	if old, ok := batchFrames.Load(gid); ok {
		prev = old.(*batchFrame)
	}

	if f == nil {
		batchFrames.Delete(gid)
	} else {
		batchFrames.Store(gid, f)
	}
	return prev
}

// noteSourceWrite records a written source into the active batch frame, if
// one is installed on this goroutine.
func noteSourceWrite(r Reactor) {
	if f := activeBatch(); f != nil {
		f.note(r)
	}
}
