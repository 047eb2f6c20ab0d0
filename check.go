package goadns

import (
	"context"
	"time"
)

// Check returns the next finished query without blocking, or nil if none is ready yet. Unless
// Config.NoAutoSys is set, Check opportunistically drives ProcessAny first so a caller that never
// touches the event-loop integration points directly still makes progress; a caller that wants full
// control over I/O timing sets NoAutoSys and drives BeforeSelect/ProcessAny itself.
func (r *Resolver) Check() *Query {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)
	if !r.config.NoAutoSys {
		r.ProcessAny()
	}
	return r.outQ.popFront()
}

// pollInterval bounds how long a single Wait iteration sleeps before re-driving ProcessAny, so a
// reply that arrives between iterations is noticed promptly without busy-looping.
const pollInterval = 50 * time.Millisecond

// Wait blocks, driving the engine's own event loop with ProcessAny, until at least one query is
// finished or ctx is canceled. This is the Go realization of adns_wait: the original blocks inside
// select(2) directly, but a context-aware caller expects to be able to interrupt a wait, so this
// polls ProcessAny against FirstTimeout instead of taking over the caller's own I/O multiplexing.
func (r *Resolver) Wait(ctx context.Context) (*Query, error) {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	for {
		if q := r.outQ.popFront(); q != nil {
			return q, nil
		}
		if r.udpQ.length == 0 && r.tcpQ.length == 0 && r.childQ.length == 0 {
			return nil, nil // Nothing outstanding and nothing finished: caller has no queries left
		}

		wait := r.FirstTimeout(pollInterval)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if err := r.ProcessAny(); err != nil {
			return nil, err
		}
	}
}
