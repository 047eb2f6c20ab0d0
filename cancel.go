package goadns

// Cancel abandons a query that has not yet finished, unlinking it from whichever queue it is on
// and releasing its resources without ever calling back with a result. Calling Cancel on a query
// already in StateDone drops it from the output queue if Check/Wait has not yet returned it, so it
// is never delivered; on a query that has already been returned it is a no-op.
func (r *Resolver) Cancel(q *Query) {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	if q.state == StateDone {
		r.unlinkFromQueue(q)
		return
	}
	for _, child := range q.children {
		r.unlinkFromQueue(child)
		child.release()
	}
	q.children = nil
	r.unlinkFromQueue(q)
	q.state = StateDone
	q.release()
}
