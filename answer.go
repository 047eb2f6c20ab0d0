package goadns

import (
	"net"
	"sort"
	"time"

	"github.com/markdingo/goadns/internal/constants"
	"github.com/markdingo/goadns/internal/resolvconf"
	"github.com/markdingo/goadns/internal/wire"

	"github.com/miekg/dns"
)

// interpretAnswer is the common path for both a UDP and a TCP reply: decide whether to retry, to
// follow a CNAME, to fall back to TCP, or to finish the query, exactly the branch structure
// res_send(3) follows and adns_processreadable delegates to.
func (r *Resolver) interpretAnswer(q *Query, msg *dns.Msg, fromServer string) {
	if msg.Truncated {
		q.answerTruncated = true
		r.tcpQ.pushBack(q)
		return
	}

	switch msg.Rcode {
	case dns.RcodeSuccess:
		// Fall through to record extraction below.
	case dns.RcodeNameError:
		if q.advanceSearch() {
			r.udpQ.pushBack(q)
			return
		}
		q.fail(ErrNXDomain, nil)
		return
	case dns.RcodeServerFailure:
		if !r.retryNextServer(q) {
			q.fail(ErrServerFault, nil)
		}
		return
	default:
		q.fail(ErrInvalidAnswer, nil)
		return
	}

	if cname, ok := wire.FindCNAME(msg, q.currentName()); ok && q.qtype != dns.TypeCNAME {
		if cnameProhibitedFor(q.qtype) && q.flags&FlagCNAMELoose == 0 {
			q.fail(ErrProhibitedCName, nil)
			return
		}
		if len(q.cnameChain) >= constants.Get().MaxCNAMEHops {
			q.fail(ErrCNAMELoop, nil)
			return
		}
		for _, seen := range q.cnameChain {
			if seen == cname {
				q.fail(ErrCNAMELoop, nil)
				return
			}
		}
		q.cnameChain = append(q.cnameChain, cname)
		q.searchPos = -1 // A CNAME target is always fully qualified; stop consulting the search list
		q.owner = cname
		r.udpQ.pushBack(q)
		return
	}

	records := wire.RecordsOf(msg, q.qtype, q.currentName())
	if len(records) == 0 {
		q.fail(ErrNoData, nil)
		return
	}

	answer := &Answer{
		Owner:      q.currentName(),
		CNAMEChain: q.cnameChain,
		Server:     fromServer,
		Truncated:  q.answerTruncated,
		MinTTL:     wire.MinTTL(records),
		RTT:        time.Since(q.submittedAt),
	}
	for _, rr := range records {
		answer.Records = append(answer.Records, Record{RR: rr, TTL: rr.Header().Ttl})
	}

	switch {
	case q.qtype == dns.TypePTR && q.flags&FlagPTRVerify != 0:
		r.beginPTRVerification(q, answer)
		return
	case q.qtype == dns.TypeMX && q.flags&FlagResolveMX != 0:
		r.beginMXAddressResolution(q, answer)
		return
	}

	r.applySortlist(answer)
	q.succeed(answer)
}

// cnameProhibitedFor reports whether a CNAME answer to a query of qtype is normally disallowed by
// the RFCs -- PTR, NS and SOA owners are never supposed to be CNAME aliases -- so FlagCNAMELoose is
// required to accept one instead of failing with ErrProhibitedCName.
func cnameProhibitedFor(qtype uint16) bool {
	switch qtype {
	case dns.TypePTR, dns.TypeNS, dns.TypeSOA:
		return true
	default:
		return false
	}
}

// retryNextServer advances a query to the next configured server after a server-side failure,
// reporting the failure to bestMgr so the traditional algorithm's "rotate on failure" behavior
// applies the same as it would for a plain res_send(3)-style client.
func (r *Resolver) retryNextServer(q *Query) bool {
	server, _ := r.bestMgr.Best()
	r.bestMgr.Result(server, false, time.Now(), 0)

	q.udpNextServer++
	if q.udpNextServer >= len(r.serverAddrs) {
		q.udpNextServer = 0
		q.udpRetries++
		q.udpSent = 0 // A new retry round: every server is due a datagram again
	}
	if q.udpRetries > maxUDPRetries() {
		return false
	}
	q.deadlineAt = time.Now().Add(constants.Get().UDPRetry)
	r.udpQ.pushBack(q)
	return true
}

// assembleComposite dispatches a finished parent's children to the merge logic for whichever
// composite shape spawned them -- PTR forward-verification or MX address resolution each fold
// their children's answers back into the parent differently, so there is no one generic merge.
func (r *Resolver) assembleComposite(parent *Query) {
	switch parent.composite {
	case compositePTRVerify:
		r.finishPTRVerification(parent)
	case compositeMXAddress:
		r.finishMXAddressResolution(parent)
	default:
		parent.fail(ErrOther, nil)
	}
}

// applySortlist reorders answer's A records to match the configured sortlist's preference order,
// leaving records that match no sortlist entry in their original relative order at the end.
func (r *Resolver) applySortlist(answer *Answer) {
	if len(r.config.Sortlist) == 0 || len(answer.Records) < 2 {
		return
	}
	rank := func(rec Record) int {
		a, ok := rec.RR.(*dns.A)
		if !ok {
			return len(r.config.Sortlist)
		}
		for i, entry := range r.config.Sortlist {
			if sortlistMatch(a.A, entry) {
				return i
			}
		}
		return len(r.config.Sortlist)
	}
	sort.SliceStable(answer.Records, func(i, j int) bool {
		return rank(answer.Records[i]) < rank(answer.Records[j])
	})
}

func sortlistMatch(ip net.IP, entry resolvconf.SortEntry) bool {
	ip4, base4, mask4 := ip.To4(), entry.Base.To4(), entry.Mask.To4()
	if ip4 == nil || base4 == nil || mask4 == nil {
		return false
	}
	for i := 0; i < 4; i++ {
		if ip4[i]&mask4[i] != base4[i]&mask4[i] {
			return false
		}
	}
	return true
}
