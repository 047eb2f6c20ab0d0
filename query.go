package goadns

import (
	"net"
	"time"

	"github.com/miekg/dns"
)

// Flag bits accepted by Submit, mirroring the adns_queryflags bitmask in the original C library.
type Flag int

const (
	FlagSearch      Flag = 1 << iota // Apply the search list to a single-component owner name
	FlagCNAMELoose                   // Follow a CNAME even where the RFC says the question shouldn't have one
	FlagQuoteOK                      // Accept owner names containing characters outside the LDH set
	FlagPTRVerify                    // A PTR answer must forward-verify: look up A on the PTR target and confirm it matches
	FlagResolveMX                    // Resolve address records for every exchange host returned by an MX query
)

// compositeKind names which secondary-lookup shape a composite (parent/child) query is assembling,
// since assembleComposite has to know how to fold its children's answers back into one Answer.
type compositeKind int

const (
	compositeNone compositeKind = iota
	compositePTRVerify
	compositeMXAddress
)

// State is where a Query currently sits in its lifecycle.
type State int

const (
	StateQueued State = iota
	StateOutstanding
	StateDone
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateOutstanding:
		return "outstanding"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Record is one decoded resource record of an Answer -- CNAME chasing and any other record types in
// the answer section are consumed internally and never surfaced here. Answer.Records holds the
// records of the queried type, except that a FlagResolveMX answer also carries the exchange hosts'
// A records after its MX records; A records are reordered by the configured sortlist.
type Record struct {
	RR  dns.RR
	TTL uint32
}

// Answer is everything a completed, successful Query yields.
type Answer struct {
	Owner       string // The fully qualified owner name that actually matched (after CNAMEs/search)
	CNAMEChain  []string
	Records     []Record
	MinTTL      uint32
	Server      string // Which nameserver answered
	Truncated   bool   // Set if a truncated UDP reply forced a TCP retry that then succeeded
	RTT         time.Duration
}

// Query is a single outstanding (or completed) question. A Query is only ever manipulated by the
// owning Resolver's goroutine.
type Query struct {
	id     uint16
	owner  string
	qtype  uint16
	flags  Flag
	state  State

	resolver *Resolver

	// Queue membership -- exactly one of these is meaningful at a time, enforced by the
	// queue helpers in queues.go.
	queue     queueID
	queueNext *Query
	queuePrev *Query

	// Server rotation / retry bookkeeping, named after the udpsent/tcpfailed bitmasks and
	// udpretries/tcpfailed counters in the original adns_query struct.
	udpNextServer  int
	udpSent        uint8 // Bit i set once server i has been sent a UDP datagram this round
	tcpFailed      uint8 // Bit i set once server i's TCP connection has been tried and broken
	udpRetries     int   // Number of UDP retry rounds completed so far
	tcpWaitRetries int   // Number of times this query has waited for TCP and been re-queued
	ccAdded        bool  // Whether udpCC.Add has been called for this query (Done must match once)

	deadlineAt time.Time

	// CNAME / search-list state.
	searchPos  int
	cnameChain      []string
	triedNames      []string
	answerTruncated bool
	tcpSent         bool

	// Composite query support (address-from-MX, PTR-forward verification): a parent query
	// owns its children and is only requeued to queueOutput once every child finishes.
	parent        *Query
	children      []*Query
	pending       int           // Remaining unfinished children
	composite     compositeKind // Which secondary-lookup shape this parent is assembling
	pendingAnswer *Answer       // The parent's own direct answer, held until its children finish
	verifyIP      net.IP        // For compositePTRVerify: the address the PTR owner name encodes

	releasers []func() // Cleanup closures run exactly once when the query is released

	answer *Answer
	err    *Error

	submittedAt time.Time
}

// timedOut reports whether now is at or past this query's current deadline.
func (q *Query) timedOut(now time.Time) bool {
	return !q.deadlineAt.IsZero() && !now.Before(q.deadlineAt)
}

// ID is the DNS message ID this query was submitted with.
func (q *Query) ID() uint16 { return q.id }

// Owner is the owner name as submitted (before search-list expansion), or, once a CNAME has been
// followed, the CNAME target the query now asks about.
func (q *Query) Owner() string { return q.owner }

// State reports the query's current lifecycle state.
func (q *Query) State() State { return q.state }

// Result returns the Query's answer and error once State() is StateDone. Calling it earlier
// returns (nil, nil).
func (q *Query) Result() (*Answer, *Error) {
	if q.state != StateDone {
		return nil, nil
	}
	return q.answer, q.err
}

func (q *Query) addReleaser(fn func()) {
	q.releasers = append(q.releasers, fn)
}

func (q *Query) release() {
	for i := len(q.releasers) - 1; i >= 0; i-- {
		q.releasers[i]()
	}
	q.releasers = nil
}

func (q *Query) fail(kind ErrorKind, cause error) {
	q.err = newError(kind, q.owner, cause)
	q.answer = nil
	q.finish()
}

func (q *Query) succeed(answer *Answer) {
	q.answer = answer
	q.err = nil
	q.finish()
}

func (q *Query) finish() {
	q.state = StateDone
	if q.ccAdded {
		q.resolver.udpCC.Done()
		q.ccAdded = false
	}
	q.release()
	if q.parent != nil {
		q.parent.childFinished(q)
		return
	}
	r := q.resolver
	r.unlinkFromQueue(q)
	r.outQ.pushBack(q)
}

func (q *Query) childFinished(child *Query) {
	q.pending--
	if q.pending > 0 {
		return
	}
	q.resolver.unlinkFromQueue(q)
	q.resolver.assembleComposite(q) // Calls succeed/fail, which performs the final output-queue hand-off
}
