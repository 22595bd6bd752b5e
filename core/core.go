// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core is the rendering layer the application talks to. It owns
// the device, builds pipelines and reusable passes against render targets
// and composes them into frames.
//
// Failures reported by the device are fatal: they are logged with their
// cause and then raised as a panic carrying the wrapped error. Conditions
// a well behaved frame producer can trigger, such as an unsupported
// import layout, are logged and reported by a nil result instead.
package core

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Forever can be passed as a timeout to wait without one
const Forever time.Duration = math.MaxInt64

// ErrInvalidUsage is the cause of panics raised when the API is misused
var ErrInvalidUsage = errors.New("invalid usage")

func fatal(err error, msg string) {
	log.WithError(err).Error(msg)
	panic(errors.Wrap(err, msg))
}

func fatalf(format string, args ...interface{}) {
	fatal(ErrInvalidUsage, fmt.Sprintf(format, args...))
}

// refs is an atomic reference count starting at one
type refs struct {
	count int32
}

func (r *refs) init() {
	atomic.StoreInt32(&r.count, 1)
}

func (r *refs) retain() {
	if atomic.AddInt32(&r.count, 1) <= 1 {
		fatalf("retain of a released object")
	}
}

// release reports whether the last reference was dropped
func (r *refs) release() bool {
	n := atomic.AddInt32(&r.count, -1)
	if n < 0 {
		fatalf("object released more times than retained")
	}
	return n == 0
}
