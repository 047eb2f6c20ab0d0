/*
Package wire is the seam between the resolver engine and the on-wire DNS message format. The
engine never packs or parses a DNS message itself, so this package is a thin adapter over
github.com/miekg/dns.

Keeping the adapter this small means a caller that wanted to swap codecs (say, for a fuzzed or
instrumented encoder in a test) only needs to provide a Codec.
*/
package wire

import (
	"fmt"

	"github.com/miekg/dns"
)

// Codec packs a question and unpacks a reply. The engine depends only on this interface so tests
// can substitute a deterministic fake without touching the real wire format.
type Codec interface {
	EncodeQuestion(owner string, qtype uint16, id uint16) ([]byte, error)
	Decode(buf []byte) (*dns.Msg, error)
}

// Miekg is the default Codec, backed by github.com/miekg/dns.
type Miekg struct{}

// EncodeQuestion builds a single-question query message with recursion desired set, matching
// res_mkquery's behaviour in the original adns client.
func (Miekg) EncodeQuestion(owner string, qtype uint16, id uint16) ([]byte, error) {
	m := new(dns.Msg)
	m.Id = id
	m.RecursionDesired = true
	fqdn := dns.Fqdn(owner)
	if _, ok := dns.IsDomainName(fqdn); !ok {
		return nil, fmt.Errorf("wire: %q is not a legal domain name", owner)
	}
	m.Question = []dns.Question{{Name: fqdn, Qtype: qtype, Qclass: dns.ClassINET}}
	return m.Pack()
}

// Decode unpacks a complete DNS message, UDP datagram or de-framed TCP payload.
func (Miekg) Decode(buf []byte) (*dns.Msg, error) {
	m := new(dns.Msg)
	if err := m.Unpack(buf); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordsOf extracts the typed RRs from msg.Answer that match qtype, which is all the records a
// query cares about once the qname/CNAME chasing in answer.go has settled on the final owner.
func RecordsOf(msg *dns.Msg, qtype uint16, finalOwner string) []dns.RR {
	out := make([]dns.RR, 0, len(msg.Answer))
	owner := dns.Fqdn(finalOwner)
	for _, rr := range msg.Answer {
		if rr.Header().Rrtype == qtype && dns.Fqdn(rr.Header().Name) == owner {
			out = append(out, rr)
		}
	}
	return out
}

// FindCNAME returns the target of a CNAME RR in msg.Answer owned by owner, if any.
func FindCNAME(msg *dns.Msg, owner string) (string, bool) {
	fqdn := dns.Fqdn(owner)
	for _, rr := range msg.Answer {
		if cn, ok := rr.(*dns.CNAME); ok && dns.Fqdn(cn.Header().Name) == fqdn {
			return cn.Target, true
		}
	}
	return "", false
}

// MinTTL returns the smallest TTL across the supplied records, or 0 if rrs is empty.
func MinTTL(rrs []dns.RR) uint32 {
	if len(rrs) == 0 {
		return 0
	}
	min := rrs[0].Header().Ttl
	for _, rr := range rrs[1:] {
		if rr.Header().Ttl < min {
			min = rr.Header().Ttl
		}
	}
	return min
}
