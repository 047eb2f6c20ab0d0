package goadns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testResolverForConsistency(t *testing.T) *Resolver {
	serverAddr, stop := fakeDNSServer(t)
	t.Cleanup(stop)
	r := testResolver(t, serverAddr)
	r.consistencyLevel = ConsistencyFrequent
	return r
}

func TestCheckGlobalPanicsOnNilUDPSocket(t *testing.T) {
	r := testResolverForConsistency(t)
	r.udpConn = nil
	require.Panics(t, func() { r.checkGlobal() })
}

func TestCheckGlobalPanicsOnTCPConnStateMismatch(t *testing.T) {
	r := testResolverForConsistency(t)
	r.tcpState = tcpOK
	r.tcpConn = nil
	require.Panics(t, func() { r.checkGlobal() })
}

func TestCheckGlobalOKWithDisconnectedTCP(t *testing.T) {
	r := testResolverForConsistency(t)
	require.NotPanics(t, func() { r.checkGlobal() })
}

func TestCheckQueryPanicsOnUDPSentBitsBeyondServerCount(t *testing.T) {
	r := testResolverForConsistency(t)
	q := r.allocQuery("example.com", 1, 0)
	q.udpSent = 1 << uint(len(r.servers)) // One bit past the last configured server
	require.Panics(t, func() { r.checkQuery(q) })
}

func TestCheckQueryPanicsOnTCPFailedBitsBeyondServerCount(t *testing.T) {
	r := testResolverForConsistency(t)
	q := r.allocQuery("example.com", 1, 0)
	q.tcpFailed = 1 << uint(len(r.servers))
	require.Panics(t, func() { r.checkQuery(q) })
}

func TestCheckQueryOKWithBitsWithinServerCount(t *testing.T) {
	r := testResolverForConsistency(t)
	q := r.allocQuery("example.com", 1, 0)
	q.udpSent = 1 << uint(len(r.servers)-1)
	require.NotPanics(t, func() { r.checkQuery(q) })
}

func TestCheckQueryPanicsOnParentChildMismatch(t *testing.T) {
	r := testResolverForConsistency(t)
	parent := r.allocQuery("example.com", 1, 0)
	child := r.allocQuery("1.2.3.4.in-addr.arpa", 1, 0)
	child.parent = parent // parent.children never updated to include child
	require.Panics(t, func() { r.checkQuery(child) })
}

func TestCheckQueryOKWithSymmetricParentChild(t *testing.T) {
	r := testResolverForConsistency(t)
	parent := r.allocQuery("example.com", 1, 0)
	child := r.allocQuery("1.2.3.4.in-addr.arpa", 1, 0)
	child.parent = parent
	parent.children = append(parent.children, child)
	require.NotPanics(t, func() { r.checkQuery(child) })
}

func TestConsistencyCheckNoopWhenLevelNone(t *testing.T) {
	r := testResolverForConsistency(t)
	r.consistencyLevel = ConsistencyNone
	r.udpConn = nil // Would panic checkGlobal if the checker actually ran
	require.NotPanics(t, func() { r.consistencyCheck(ccEntry) })
}
