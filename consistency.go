package goadns

import (
	"fmt"

	"github.com/markdingo/goadns/internal/constants"
)

// ConsistencyLevel controls how often the internal invariant checker in this file runs, matching
// the cc_entex/cc_freq/cc_user granularity of the original C library's consistency checker.
type ConsistencyLevel int

const (
	// ConsistencyNone never runs the checker; this is the default and should be used in
	// production.
	ConsistencyNone ConsistencyLevel = iota

	// ConsistencyEntryExit runs the checker on entry to and exit from the public engine calls
	// that carry entry/exit check points: Submit, Cancel, Check, Wait, PollFDs, BeforeSelect,
	// ProcessTimeouts, ProcessAny and NotifyGlobalSystemFailure (FirstTimeout has none).
	ConsistencyEntryExit

	// ConsistencyFrequent additionally runs it at internal check points, which are the entry
	// to ProcessReadable, ProcessWritable and ProcessExceptional.
	ConsistencyFrequent
)

type ccPoint int

const (
	ccEntry ccPoint = iota
	ccExit
	ccInternal
)

// consistencyCheck is a pure reader: it asserts invariants and panics on violation, but never
// mutates engine state, matching check.c's checkc_* functions. It is a no-op unless the configured
// ConsistencyLevel calls for checking at this point.
func (r *Resolver) consistencyCheck(point ccPoint) {
	switch r.consistencyLevel {
	case ConsistencyNone:
		return
	case ConsistencyEntryExit:
		if point == ccInternal {
			return
		}
	case ConsistencyFrequent:
		// Every point checked.
	}
	r.checkGlobal()
	r.udpQ.each(r.checkQuery)
	r.tcpQ.each(r.checkQuery)
	r.childQ.each(r.checkQuery)
	r.outQ.each(r.checkQuery)
}

// checkGlobal asserts invariants about Resolver-wide state, the counterpart of check.c's
// checkc_global.
func (r *Resolver) checkGlobal() {
	if r.udpConn == nil {
		panic("goadns: consistency: udp socket is nil while resolver is live")
	}
	if r.tcpServer < 0 || r.tcpServer >= len(r.servers) {
		if r.tcpState != tcpDisconnected {
			panic(fmt.Sprintf("goadns: consistency: tcpServer %d out of range [0,%d) with tcpState=%s",
				r.tcpServer, len(r.servers), r.tcpState))
		}
	}
	switch r.tcpState {
	case tcpDisconnected, tcpBroken:
		if r.tcpConn != nil {
			panic("goadns: consistency: tcpConn set but tcpState is " + r.tcpState.String())
		}
	case tcpConnecting, tcpOK:
		if r.tcpConn == nil {
			panic("goadns: consistency: tcpConn nil but tcpState is " + r.tcpState.String())
		}
	}
}

// checkQuery asserts invariants about a single query, the counterpart of check.c's checkc_query.
func (r *Resolver) checkQuery(q *Query) {
	if q.state == StateDone && q.queue != queueOutput {
		panic("goadns: consistency: a finished query is linked on a queue other than output")
	}
	if q.udpNextServer < 0 || q.udpNextServer >= len(r.servers) {
		panic(fmt.Sprintf("goadns: consistency: query %q udpNextServer %d out of range", q.owner, q.udpNextServer))
	}
	if q.udpRetries > constants.Get().UDPMaxRetries {
		panic(fmt.Sprintf("goadns: consistency: query %q udpRetries %d exceeds max", q.owner, q.udpRetries))
	}
	maxBit := uint(len(r.servers))
	if maxBit < 8 {
		if q.udpSent>>maxBit != 0 {
			panic(fmt.Sprintf("goadns: consistency: query %q udpSent %08b has bits set beyond server count %d", q.owner, q.udpSent, len(r.servers)))
		}
		if q.tcpFailed>>maxBit != 0 {
			panic(fmt.Sprintf("goadns: consistency: query %q tcpFailed %08b has bits set beyond server count %d", q.owner, q.tcpFailed, len(r.servers)))
		}
	}
	if q.parent != nil {
		found := false
		for _, c := range q.parent.children {
			if c == q {
				found = true
				break
			}
		}
		if !found {
			panic("goadns: consistency: child query not present in its parent's children slice")
		}
	}
	for _, c := range q.children {
		if c.parent != q {
			panic("goadns: consistency: parent/child backreference mismatch")
		}
	}
}
