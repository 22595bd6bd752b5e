package core

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/gfx"
)

// Fence signals completion of a directly submitted operation.
// Its owner waits on it and releases it.
type Fence struct {
	raw       gfx.Fence
	transient []gfx.Releasable
}

// Wait blocks until the operation completes or timeout passes
func (f *Fence) Wait(timeout time.Duration) error {
	return f.raw.Wait(timeout)
}

// Signaled reports whether the operation has completed
func (f *Fence) Signaled() bool {
	ok, err := f.raw.Signaled()
	if err != nil {
		fatal(err, "Failed to query fence")
	}
	return ok
}

// Release waits for the operation and frees the fence along with
// the recording it guards
func (f *Fence) Release() {
	if err := f.raw.Wait(Forever); err != nil {
		log.WithError(err).Warn("Fence released before being signaled")
	}
	for _, r := range f.transient {
		r.Release()
	}
	f.raw.Release()
}

// Recording is a finished frame, ready to be submitted
type Recording struct {
	ctx       *Context
	cmd       gfx.CommandBuffer
	transient []gfx.Releasable
}

// Raw returns the backend command buffer
func (r *Recording) Raw() gfx.CommandBuffer {
	return r.cmd
}

// Execute submits the recording. The returned Future owns it.
func (r *Recording) Execute() *Future {
	f := &Future{ctx: r.ctx}
	return f.Then(r)
}

// Release frees the recording and the resources it staged.
// It must not be pending execution.
func (r *Recording) Release() {
	for _, t := range r.transient {
		t.Release()
	}
	r.cmd.Release()
}

// Future tracks submitted recordings until they complete
type Future struct {
	ctx        *Context
	fences     []gfx.Fence
	recordings []*Recording
}

// Then submits r after the work already tracked, in queue order
func (f *Future) Then(r *Recording) *Future {
	fence, err := f.ctx.device.CreateFence()
	if err != nil {
		fatal(err, "Failed to create fence")
	}
	if err := f.ctx.device.Submit(r.cmd, fence); err != nil {
		fence.Release()
		fatal(err, "Failed to submit command buffer")
	}
	f.fences = append(f.fences, fence)
	f.recordings = append(f.recordings, r)
	return f
}

// Poll reports whether all tracked work has completed
func (f *Future) Poll() bool {
	for _, fence := range f.fences {
		ok, err := fence.Signaled()
		if err != nil {
			fatal(err, "Failed to query fence")
		}
		if !ok {
			return false
		}
	}
	return true
}

// Wait blocks until all tracked work completes. timeout applies
// to each submission separately.
func (f *Future) Wait(timeout time.Duration) error {
	for idx, fence := range f.fences {
		if err := fence.Wait(timeout); err != nil {
			return errors.Wrapf(err, "submission %d", idx)
		}
	}
	return nil
}

// Release waits for the tracked work and frees it
func (f *Future) Release() {
	if err := f.Wait(Forever); err != nil {
		log.WithError(err).Warn("Future released before completion")
	}
	for _, r := range f.recordings {
		r.Release()
	}
	for _, fence := range f.fences {
		fence.Release()
	}
	f.fences, f.recordings = nil, nil
}
