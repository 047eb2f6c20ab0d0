package goadns

import (
	"encoding/binary"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/markdingo/goadns/internal/constants"
	"github.com/markdingo/goadns/internal/rawconn"
	"github.com/markdingo/goadns/internal/sigguard"
	"github.com/markdingo/goadns/internal/socks5"
)

// tcpConnFD extracts the raw descriptor of the shared TCP connection for PollFDs.
func tcpConnFD(conn net.Conn) (uintptr, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, errNotSyscallConn
	}
	return rawconn.FD(sc)
}

var errNotSyscallConn = &Error{Kind: ErrOther, cause: errString("connection does not expose a raw descriptor")}

type errString string

func (e errString) Error() string { return string(e) }

// ensureTCP opens the shared TCP connection to serverIdx if one is not already open (or in the
// process of opening) to that same server, tearing down any existing connection to a different
// server first -- the engine only ever holds one TCP connection at a time. The connect(2) itself
// never blocks: it issues a nonblocking connect and leaves the connection in tcpConnecting for
// completeConnect to finish once PollFDs reports the descriptor writable.
func (r *Resolver) ensureTCP(serverIdx int) error {
	if r.tcpState == tcpOK && r.tcpServer == serverIdx {
		return nil
	}
	if r.tcpState == tcpConnecting && r.tcpServer == serverIdx {
		return nil
	}
	if r.tcpConn != nil {
		r.closeTCP()
	}

	addr := r.serverAddrs[serverIdx]
	dialAddr := addr
	if r.config.SocksEnabled {
		dialAddr = r.socksProxyAddr()
	}

	conn, err := rawconn.DialNonblock(constants.Get().DNSTCPNetwork, dialAddr)
	if err != nil {
		r.tcpTracker.ConnState(addr, time.Now(), http.StateClosed)
		r.tcpState = tcpBroken
		r.diagf("connect to %s failed: %v", dialAddr, err)
		return newError(ErrConnRefused, "", err)
	}

	r.tcpConn = conn
	r.tcpServer = serverIdx
	r.tcpState = tcpConnecting
	r.tcpConnectDeadline = time.Now().Add(constants.Get().TCPConnTimeout)
	r.tcpTracker.ConnState(addr, time.Now(), http.StateNew)
	return nil
}

// socksProxyAddr is the local Tor SOCKS5 proxy ensureTCP dials when SocksEnabled is set, trying the
// fallback port once the primary port has been observed to fail this connection attempt.
func (r *Resolver) socksProxyAddr() string {
	port := constants.Get().SocksPrimaryPort
	if r.socksUseFallback {
		port = constants.Get().SocksFallbackPort
	}
	return net.JoinHostPort("127.0.0.1", port)
}

// completeConnect finishes a connect(2) left in flight by ensureTCP, called once PollFDs reports
// the TCP descriptor writable. A failed connect while SocksEnabled and still on the primary port
// retries once against the fallback port before giving up, mirroring Tor's documented default of
// listening on 9050 with 9150 as the common alternate.
func (r *Resolver) completeConnect() error {
	sc, ok := r.tcpConn.(syscall.Conn)
	if !ok {
		r.breakTCP()
		return nil
	}
	if err := rawconn.ConnectError(sc); err != nil {
		r.diagf("connect to server %d failed: %v", r.tcpServer, err)
		if r.config.SocksEnabled && !r.socksUseFallback {
			r.socksUseFallback = true
			target := r.tcpServer
			r.closeTCP()
			r.tcpState = tcpBroken
			if retryErr := r.ensureTCP(target); retryErr == nil {
				return nil
			}
		}
		r.breakTCP()
		return nil
	}

	addr := r.serverAddrs[r.tcpServer]
	if r.config.SocksEnabled {
		if err := socks5.Handshake(r.tcpConn, addr, socks5.Credentials(r.config.SocksCreds), constants.Get().TCPConnTimeout); err != nil {
			r.diagf("socks5 handshake to %s failed: %v", addr, err)
			r.breakTCP()
			return nil
		}
	}

	r.tcpState = tcpOK
	r.socksUseFallback = false
	r.tcpBuf.Reset()
	r.tcpTracker.ConnState(addr, time.Now(), http.StateActive)
	return nil
}

func (r *Resolver) closeTCP() {
	if r.tcpConn == nil {
		return
	}
	addr := r.serverAddrs[r.tcpServer]
	r.tcpConn.Close()
	r.tcpConn = nil
	r.tcpTracker.ConnState(addr, time.Now(), http.StateClosed)
}

// breakTCP marks the current TCP connection as broken and returns every query waiting on it to the
// UDP queue for a fresh retry round, the Go analogue of adns__tcp_broken.
func (r *Resolver) breakTCP() {
	if r.tcpConn != nil {
		r.tcpFailedServer(r.tcpServer)
	}
	r.closeTCP()
	r.tcpState = tcpBroken

	r.tcpQ.each(func(q *Query) {
		r.tcpQ.remove(q)
		q.tcpWaitRetries++
		q.tcpFailed |= 1 << uint(r.tcpServer)
		q.tcpSent = false
		if q.tcpWaitRetries > len(r.servers) {
			q.fail(ErrTimeout, nil)
			return
		}
		if !r.retryNextServer(q) {
			q.fail(ErrTimeout, nil)
		}
	})
}

func (r *Resolver) tcpFailedServer(idx int) {
	_ = idx // Recorded on each affected query in breakTCP; kept here for symmetry with checkc_query's tcpfailed bitmask
}

// sendTCP flushes every query waiting in tcpQ across the shared connection as one
// length-prefixed write per query. The write is wrapped with sigguard so a broken pipe raises
// EPIPE instead of delivering SIGPIPE to the process, matching adns__sigpipe_protect/unprotect.
func (r *Resolver) sendTCP() error {
	if r.tcpState != tcpOK {
		return nil
	}
	var sendErr error
	_, sendErr = sigguard.Do(func() (int, error) {
		n := 0
		r.tcpQ.each(func(q *Query) {
			if q.tcpSent {
				return
			}
			buf, err := wireCodec.EncodeQuestion(q.currentName(), q.qtype, q.id)
			if err != nil {
				q.fail(ErrInvalidAnswer, err)
				return
			}
			frame := make([]byte, 2+len(buf))
			binary.BigEndian.PutUint16(frame, uint16(len(buf)))
			copy(frame[2:], buf)
			if _, werr := r.tcpConn.Write(frame); werr != nil {
				sendErr = werr
				return
			}
			q.tcpSent = true
			n++
		})
		return n, sendErr
	})
	if sendErr != nil {
		r.breakTCP()
		return nil
	}
	return nil
}

// processReadableTCP pulls every complete frame currently available off the shared connection.
func (r *Resolver) processReadableTCP() error {
	buf := make([]byte, 4096)
	for {
		// A short read deadline makes an empty socket report a timeout instead of blocking.
		r.tcpConn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := r.tcpConn.Read(buf)
		if n > 0 {
			r.tcpBuf.Append(buf[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			r.breakTCP()
			return nil
		}
		if n == 0 {
			r.breakTCP() // Peer closed the connection
			return nil
		}
		if n < len(buf) {
			break // Likely drained the socket for this notification
		}
	}

	for {
		payload, ok := r.tcpBuf.Frame()
		if !ok {
			break
		}
		msg, decErr := wireCodec.Decode(payload)
		if decErr != nil {
			continue
		}
		q := r.findTCPQuery(msg.Id)
		if q == nil {
			continue
		}
		r.unlinkFromQueue(q)
		r.interpretAnswer(q, msg, r.serverAddrs[r.tcpServer])
	}
	return nil
}

func (r *Resolver) findTCPQuery(id uint16) *Query {
	var found *Query
	r.tcpQ.each(func(q *Query) {
		if found == nil && q.id == id {
			found = q
		}
	})
	return found
}
