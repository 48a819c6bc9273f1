// Package groutine starts named goroutines and exposes the numeric goroutine
// id. The names show up as pprof labels, which makes the client's receiver,
// sender and dispatcher loops identifiable in profiles and goroutine dumps.
package groutine

import (
	"bytes"
	"context"
	"runtime"
	"runtime/pprof"
	"strconv"
)

// Go starts fn on a new goroutine labeled with name.
// A nil parentCtx defaults to context.Background().
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	go pprof.Do(parentCtx, pprof.Labels("goroutine_name", name), fn)
}

// GID returns the id of the calling goroutine, parsed from the runtime
// stack header. Used to detect a shutdown initiated from within a listener
// callback, where joining the dispatcher would deadlock.
func GID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	gid, _ := strconv.ParseUint(string(b[:i]), 10, 64)
	return gid
}
