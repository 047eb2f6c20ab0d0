package goadns

import (
	"fmt"
	"strings"
	"time"

	"github.com/markdingo/goadns/internal/constants"

	"github.com/miekg/dns"
)

// Submit enqueues a new query for owner/qtype and returns without waiting for an answer. Unless
// Config.NoAutoSys is set, Submit then calls ProcessAny once, which sends the first UDP datagram
// and picks up any reply already available; with NoAutoSys set, Submit only enqueues and the
// datagram goes out the next time the caller calls ProcessAny or BeforeSelect.
func (r *Resolver) Submit(owner string, qtype uint16, flags Flag) (*Query, error) {
	r.consistencyCheck(ccEntry)
	defer r.consistencyCheck(ccExit)

	if _, ok := dns.IsDomainName(owner); !ok {
		return nil, newError(ErrBadConfig, owner, fmt.Errorf("not a valid domain name"))
	}

	q := r.allocQuery(owner, qtype, flags)
	q.searchPos = -1 // -1 means "try the name as given before consulting the search list"
	if flags&FlagSearch != 0 && needsSearchList(owner, r.config.Ndots) && len(r.config.Search) > 0 {
		q.searchPos = 0
	}
	q.deadlineAt = time.Now().Add(defaultUDPTimeout)

	server, idx := r.bestMgr.Best()
	q.udpNextServer = idx
	_ = server

	r.udpQ.pushBack(q)

	if !r.config.NoAutoSys {
		r.ProcessAny()
	}
	return q, nil
}

// needsSearchList reports whether owner has fewer than ndots embedded dots and is not already
// fully qualified, the same test res_search(3)/adns's search-list logic applies.
func needsSearchList(owner string, ndots int) bool {
	if strings.HasSuffix(owner, ".") {
		return false
	}
	return strings.Count(owner, ".") < ndots
}

// currentName returns the name a query should currently be asking the wire for, folding in any
// pending search-list suffix.
func (q *Query) currentName() string {
	owner := strings.TrimSuffix(q.owner, ".")
	if q.searchPos < 0 || q.searchPos >= len(q.resolver.config.Search) {
		return owner
	}
	return owner + "." + q.resolver.config.Search[q.searchPos]
}

// advanceSearch moves to the next search-list suffix, or reports exhaustion.
func (q *Query) advanceSearch() (more bool) {
	if q.searchPos < 0 {
		return false
	}
	q.searchPos++
	return q.searchPos < len(q.resolver.config.Search)
}

func maxUDPRetries() int { return constants.Get().UDPMaxRetries }
