package goadns

import (
	"time"

	"github.com/markdingo/goadns/internal/clock"
	"github.com/markdingo/goadns/internal/rawconn"
)

// PollFDs returns the raw file descriptors the caller's own select/poll/epoll loop should watch,
// together with which readiness conditions the engine currently cares about on each -- the Go
// realization of adns_beforeselect's fd-exposure half.
func (r *Resolver) PollFDs() ([]rawconn.PollFD, error) {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)
	return r.pollFDEntries()
}

// FirstTimeout returns the deadline of the query that will time out soonest, clamped to at most
// maxWait. It never lengthens maxWait, matching
// the adns_firsttimeout monotonicity property.
func (r *Resolver) FirstTimeout(maxWait time.Duration) time.Duration {
	d := clock.NewDeadline(maxWait)
	now := time.Now()
	consider := func(q *Query) {
		if q.deadlineAt.IsZero() {
			return
		}
		d.ClampAbs(now, q.deadlineAt)
	}
	r.udpQ.each(consider)
	r.tcpQ.each(consider)
	if r.tcpState == tcpConnecting && !r.tcpConnectDeadline.IsZero() {
		d.ClampAbs(now, r.tcpConnectDeadline)
	}
	out, _ := d.Duration()
	return out
}

// BeforeSelect is the single entry point that drives all of the engine's I/O: it opens/uses the TCP
// connection as needed, flushes pending TCP sends, sends any UDP datagrams that are due, and is safe
// to call as often as the caller likes between actual select/poll/epoll waits.
func (r *Resolver) BeforeSelect() error {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	r.udpQ.each(func(q *Query) {
		if q.udpSent&(1<<uint(q.udpNextServer)) == 0 {
			r.sendUDP(q)
		}
	})

	if r.tcpQ.length > 0 {
		target := r.tcpQ.head.udpNextServer
		if err := r.ensureTCP(target); err == nil {
			r.sendTCP()
		}
	}
	return nil
}

// ProcessReadable handles a readable notification on fd, which must be one of the descriptors
// PollFDs most recently returned.
func (r *Resolver) ProcessReadable(fd uintptr) error {
	r.consistencyCheck(ccInternal)
	if udpFD, err := rawconn.FD(r.udpConn); err == nil && fd == udpFD {
		return r.processReadableUDP()
	}
	if r.tcpConn != nil {
		if tcpFD, err := tcpConnFD(r.tcpConn); err == nil && fd == tcpFD {
			return r.processReadableTCP()
		}
	}
	return nil
}

// ProcessWritable handles a writable notification on fd.
func (r *Resolver) ProcessWritable(fd uintptr) error {
	r.consistencyCheck(ccInternal)
	if r.tcpConn != nil {
		if tcpFD, err := tcpConnFD(r.tcpConn); err == nil && fd == tcpFD {
			if r.tcpState == tcpConnecting {
				return r.completeConnect()
			}
			return r.sendTCP()
		}
	}
	if udpFD, err := rawconn.FD(r.udpConn); err == nil && fd == udpFD {
		r.udpQ.each(func(q *Query) { r.sendUDP(q) })
	}
	return nil
}

// ProcessExceptional handles an out-of-band/exceptional notification on fd, which for the shared
// TCP socket means the connection should be treated as broken.
func (r *Resolver) ProcessExceptional(fd uintptr) error {
	r.consistencyCheck(ccInternal)
	if r.tcpConn != nil {
		if tcpFD, err := tcpConnFD(r.tcpConn); err == nil && fd == tcpFD {
			r.breakTCP()
		}
	}
	return nil
}

// ProcessTimeouts fails or retries every query whose deadline has passed as of now.
func (r *Resolver) ProcessTimeouts(now time.Time) error {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	var expired []*Query
	r.udpQ.each(func(q *Query) {
		if q.timedOut(now) {
			expired = append(expired, q)
		}
	})
	r.tcpQ.each(func(q *Query) {
		if q.timedOut(now) {
			expired = append(expired, q)
		}
	})

	for _, q := range expired {
		r.unlinkFromQueue(q)
		if !r.retryNextServer(q) {
			q.fail(ErrTimeout, nil)
		}
	}

	if r.tcpState == tcpConnecting && !r.tcpConnectDeadline.IsZero() && !now.Before(r.tcpConnectDeadline) {
		r.diagf("tcp connect to server %d timed out", r.tcpServer)
		r.breakTCP()
	}
	return nil
}

// ProcessAny is the convenience all-in-one call for callers that do not want to manage their own
// select/poll loop: it drains every readable/writable descriptor once and processes timeouts,
// matching adns_processany.
func (r *Resolver) ProcessAny() error {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	if err := r.BeforeSelect(); err != nil {
		return err
	}
	if err := r.processReadableUDP(); err != nil {
		return err
	}
	if r.tcpConn != nil && r.tcpState == tcpOK {
		if err := r.processReadableTCP(); err != nil {
			return err
		}
	}
	return r.ProcessTimeouts(time.Now())
}
