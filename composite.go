package goadns

import (
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// spawnChild allocates a secondary lookup owned by parent: it is queued for resolution exactly
// like any other query, except it is never handed back via Check/Wait on its own -- finish()
// routes it to parent.childFinished instead of the output queue.
func (r *Resolver) spawnChild(parent *Query, owner string, qtype uint16) *Query {
	child := r.allocQuery(owner, qtype, 0)
	child.parent = parent
	child.searchPos = -1
	child.deadlineAt = time.Now().Add(defaultUDPTimeout)
	_, idx := r.bestMgr.Best()
	child.udpNextServer = idx

	parent.children = append(parent.children, child)
	parent.pending++
	r.udpQ.pushBack(child)
	return child
}

// beginPTRVerification starts the forward-verification half of a PTR lookup submitted with
// FlagPTRVerify: it spawns an A lookup on the PTR target and parks the parent on childQ until that
// lookup reports back, holding the original PTR answer to hand back once the address matches.
func (r *Resolver) beginPTRVerification(q *Query, answer *Answer) {
	ip := ptrOwnerToIP(q.owner)
	ptr, ok := answer.Records[0].RR.(*dns.PTR)
	if ip == nil || !ok {
		r.applySortlist(answer)
		q.succeed(answer) // Owner isn't a well-formed reverse name; nothing to verify against
		return
	}

	q.composite = compositePTRVerify
	q.pendingAnswer = answer
	q.verifyIP = ip
	r.spawnChild(q, ptr.Ptr, dns.TypeA)
	r.childQ.pushBack(q)
}

// finishPTRVerification compares the forward A lookup spawned by beginPTRVerification against the
// address the original PTR owner name encoded, succeeding only on an exact match and failing with
// ErrInconsistent otherwise -- a failed or absent forward lookup is as inconsistent as a mismatch.
func (r *Resolver) finishPTRVerification(parent *Query) {
	child := parent.children[0]
	if child.err != nil {
		parent.fail(ErrInconsistent, child.err)
		return
	}
	for _, rec := range child.answer.Records {
		if a, ok := rec.RR.(*dns.A); ok && a.A.Equal(parent.verifyIP) {
			parent.succeed(parent.pendingAnswer)
			return
		}
	}
	parent.fail(ErrInconsistent, nil)
}

// beginMXAddressResolution starts the address-resolution half of an MX lookup submitted with
// FlagResolveMX: it spawns one A lookup per distinct exchange host and parks the parent on childQ
// until every child reports back.
func (r *Resolver) beginMXAddressResolution(q *Query, answer *Answer) {
	seen := make(map[string]bool)
	var exchanges []string
	for _, rec := range answer.Records {
		mx, ok := rec.RR.(*dns.MX)
		if !ok {
			continue
		}
		host := dns.Fqdn(mx.Mx)
		if seen[host] {
			continue
		}
		seen[host] = true
		exchanges = append(exchanges, host)
	}
	if len(exchanges) == 0 {
		r.applySortlist(answer)
		q.succeed(answer)
		return
	}

	q.composite = compositeMXAddress
	q.pendingAnswer = answer
	for _, host := range exchanges {
		r.spawnChild(q, host, dns.TypeA)
	}
	r.childQ.pushBack(q)
}

// finishMXAddressResolution folds every exchange host's resolved addresses in alongside the
// original MX records, the Go analogue of adns_r_mx_raw's companion adns_r_mx client-side merge. A
// host whose address lookup failed is simply omitted rather than failing the whole query: the MX
// records themselves are still a valid, useful answer on their own.
func (r *Resolver) finishMXAddressResolution(parent *Query) {
	src := parent.pendingAnswer
	answer := &Answer{
		Owner:      src.Owner,
		CNAMEChain: src.CNAMEChain,
		Server:     src.Server,
		Truncated:  src.Truncated,
		MinTTL:     src.MinTTL,
		RTT:        src.RTT,
		Records:    append([]Record(nil), src.Records...),
	}
	for _, child := range parent.children {
		if child.err != nil || child.answer == nil {
			continue
		}
		answer.Records = append(answer.Records, child.answer.Records...)
		if child.answer.MinTTL < answer.MinTTL {
			answer.MinTTL = child.answer.MinTTL
		}
	}
	parent.resolver.applySortlist(answer)
	parent.succeed(answer)
}

// ptrOwnerToIP recovers the IPv4 address a "*.in-addr.arpa" owner name encodes, or nil if owner is
// not a well-formed reverse-lookup name.
func ptrOwnerToIP(owner string) net.IP {
	owner = strings.TrimSuffix(dns.Fqdn(owner), ".")
	const suffix = ".in-addr.arpa"
	if !strings.HasSuffix(owner, suffix) {
		return nil
	}
	labels := strings.Split(strings.TrimSuffix(owner, suffix), ".")
	if len(labels) != 4 {
		return nil
	}
	octets := make([]string, 4)
	for i, l := range labels {
		octets[3-i] = l
	}
	return net.ParseIP(strings.Join(octets, ".")).To4()
}
