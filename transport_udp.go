package goadns

import (
	"net"
	"time"

	"github.com/markdingo/goadns/internal/constants"
	"github.com/markdingo/goadns/internal/wire"

	"github.com/miekg/dns"
)

var wireCodec wire.Codec = wire.Miekg{}

// sendUDP writes one datagram for q to its currently selected server. It never blocks: the
// underlying socket is nonblocking and a transient EWOULDBLOCK here just leaves q on udpQ to be
// retried on the next writable notification.
func (r *Resolver) sendUDP(q *Query) error {
	if q.udpNextServer >= len(r.serverAddrs) {
		q.udpNextServer = 0
		q.udpRetries++
	}
	if q.udpRetries > maxUDPRetries() {
		q.fail(ErrTimeout, nil)
		return nil
	}

	addrStr := r.serverAddrs[q.udpNextServer]
	udpAddr, err := net.ResolveUDPAddr(constants.Get().DNSUDPNetwork, addrStr)
	if err != nil {
		return err
	}

	buf, err := wireCodec.EncodeQuestion(q.currentName(), q.qtype, q.id)
	if err != nil {
		q.fail(ErrInvalidAnswer, err)
		return nil
	}

	if !q.ccAdded {
		r.udpCC.Add()
		q.ccAdded = true
	}

	_, err = r.udpConn.WriteToUDP(buf, udpAddr)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil // Transient; udpSent stays clear, so the next BeforeSelect or writable notification resends
		}
		return err
	}

	q.udpSent |= 1 << uint(q.udpNextServer)
	q.deadlineAt = time.Now().Add(constants.Get().UDPRetry)
	if q.state == StateQueued {
		q.state = StateOutstanding
	}
	return nil
}

// processReadableUDP drains every datagram currently available on the shared UDP socket, matching
// each to its outstanding query and handing it to answer.go for interpretation.
func (r *Resolver) processReadableUDP() error {
	buf := make([]byte, constants.Get().DNSMaxUDP)
	for {
		// A short read deadline makes an empty socket report a timeout instead of blocking.
		r.udpConn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, fromAddr, err := r.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return nil // Socket drained or transiently errored; nothing more to do this pass
		}

		msg, decErr := wireCodec.Decode(buf[:n])
		if decErr != nil {
			continue // Malformed/forged datagram: silently discarded
		}

		q := r.findUDPQuery(msg.Id, fromAddr)
		if q == nil {
			continue // No matching outstanding query: stale or spoofed reply, ignore
		}
		r.handleUDPAnswer(q, msg)
	}
}

func (r *Resolver) findUDPQuery(id uint16, from *net.UDPAddr) *Query {
	var found *Query
	r.udpQ.each(func(q *Query) {
		if found != nil || q.id != id {
			return
		}
		expected := r.serverAddrs[q.udpNextServer]
		if expected == from.String() || sameHost(expected, from) {
			found = q
		}
	})
	return found
}

func sameHost(expectedAddr string, from *net.UDPAddr) bool {
	host, _, err := net.SplitHostPort(expectedAddr)
	if err != nil {
		return false
	}
	return net.ParseIP(host).Equal(from.IP)
}

func (r *Resolver) handleUDPAnswer(q *Query, msg *dns.Msg) {
	r.unlinkFromQueue(q)
	r.interpretAnswer(q, msg, r.serverAddrs[q.udpNextServer])
}
