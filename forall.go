package goadns

// ForAllQueriesBegin/ForAllQueriesNext let a caller walk every query currently known to the
// engine -- queued, outstanding or finished-but-not-yet-collected -- without needing to keep its
// own bookkeeping, matching adns_forallqueries_begin/_next. This is
// mainly useful for diagnostics.
type QueryIterator struct {
	queues []*queue
	qi     int
	cur    *Query
}

// ForAllQueriesBegin starts a new iteration. The returned iterator is invalidated by any call that
// changes queue membership (Submit, Cancel, Check, ProcessAny, ...).
func (r *Resolver) ForAllQueriesBegin() *QueryIterator {
	return &QueryIterator{queues: []*queue{&r.udpQ, &r.tcpQ, &r.childQ, &r.outQ}}
}

// Next returns the next query in the iteration, or nil once exhausted.
func (it *QueryIterator) Next() *Query {
	for {
		if it.cur == nil {
			if it.qi >= len(it.queues) {
				return nil
			}
			it.cur = it.queues[it.qi].head
			it.qi++
			if it.cur == nil {
				continue
			}
			return it.cur
		}
		next := it.cur.queueNext
		it.cur = next
		if it.cur != nil {
			return it.cur
		}
	}
}

// NotifyGlobalSystemFailure fails every outstanding query with ErrNetworkDown, the Go counterpart
// of adns_globalsystemfailure: used by a caller that has detected
// the local network is down and wants every in-flight query to give up immediately rather than
// wait out its timeout.
func (r *Resolver) NotifyGlobalSystemFailure() {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	fail := func(q *Query) { q.fail(ErrNetworkDown, nil) }
	r.udpQ.each(fail)
	r.tcpQ.each(fail)
	r.childQ.each(fail)

	r.closeTCP()
	r.tcpState = tcpDisconnected
	r.socksUseFallback = false
}
