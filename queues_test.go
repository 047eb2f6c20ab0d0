package goadns

import "testing"

func TestQueuePushPopOrder(t *testing.T) {
	var q queue
	q.id = queueUDP
	a, b, c := &Query{}, &Query{}, &Query{}
	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)

	if got := q.popFront(); got != a {
		t.Fatalf("expected a first, got %p", got)
	}
	if got := q.popFront(); got != b {
		t.Fatalf("expected b second, got %p", got)
	}
	if q.length != 1 {
		t.Fatalf("expected length 1, got %d", q.length)
	}
	if got := q.popFront(); got != c {
		t.Fatalf("expected c third, got %p", got)
	}
	if q.popFront() != nil {
		t.Fatal("expected empty queue to return nil")
	}
}

func TestQueueRemoveMiddle(t *testing.T) {
	var q queue
	q.id = queueTCP
	a, b, c := &Query{}, &Query{}, &Query{}
	q.pushBack(a)
	q.pushBack(b)
	q.pushBack(c)

	q.remove(b)
	if b.queue != queueNone {
		t.Fatal("removed query should report queueNone")
	}
	var seen []*Query
	q.each(func(q *Query) { seen = append(seen, q) })
	if len(seen) != 2 || seen[0] != a || seen[1] != c {
		t.Fatalf("unexpected remaining order: %v", seen)
	}
}

func TestQueueEachToleratesMidIterationMove(t *testing.T) {
	var src, dst queue
	src.id, dst.id = queueUDP, queueTCP
	a, b := &Query{}, &Query{}
	src.pushBack(a)
	src.pushBack(b)

	var visited int
	src.each(func(q *Query) {
		visited++
		src.remove(q)
		dst.pushBack(q)
	})
	if visited != 2 {
		t.Fatalf("expected both queries visited exactly once, got %d", visited)
	}
	if dst.length != 2 || src.length != 0 {
		t.Fatalf("expected queries moved to dst, src.length=%d dst.length=%d", src.length, dst.length)
	}
}
