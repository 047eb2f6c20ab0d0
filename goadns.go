/*
Package goadns is a single-threaded, non-blocking, asynchronous stub DNS resolver engine: it speaks
the stub-resolver half of the DNS protocol (UDP with TCP fallback, optional SOCKS5/Tor tunneling of
the TCP leg) and never performs recursive resolution, caching, or DNSSEC validation itself.

The engine keeps no goroutines of its own. A caller drives it entirely through Submit, Cancel, Check,
Wait and the event-loop integration points in events.go (BeforeSelect/PollFDs, ProcessReadable,
ProcessWritable, ProcessExceptional, ProcessTimeouts) -- the same shape as the adns(3) C library this
package is modeled on, adapted to Go's conventions: explicit error returns, context.Context on the
blocking Wait call, and accept-interfaces/return-structs at the package boundary. A *Resolver is not
safe for concurrent use by more than one goroutine at a time.
*/
package goadns

import (
	"fmt"
	"net"
	"time"

	"github.com/markdingo/goadns/internal/bestserver"
	"github.com/markdingo/goadns/internal/concurrencytracker"
	"github.com/markdingo/goadns/internal/connectiontracker"
	"github.com/markdingo/goadns/internal/constants"
	"github.com/markdingo/goadns/internal/rawconn"
	"github.com/markdingo/goadns/internal/reporter"
	"github.com/markdingo/goadns/internal/ringbuf"
)

// tcpState is where the shared outbound TCP connection currently sits, matching the
// disconnected/connecting/ok/broken state machine.
type tcpState int

const (
	tcpDisconnected tcpState = iota
	tcpConnecting
	tcpOK
	tcpBroken
)

func (s tcpState) String() string {
	switch s {
	case tcpConnecting:
		return "connecting"
	case tcpOK:
		return "ok"
	case tcpBroken:
		return "broken"
	default:
		return "disconnected"
	}
}

// Resolver is one engine instance: one set of configured nameservers, one shared UDP socket, one
// shared TCP connection. Construct with Init and release its sockets with Finish.
type Resolver struct {
	config *Config

	servers     []bestserver.Server
	serverAddrs []string // Parallel to servers, "host:port" form
	bestMgr     bestserver.Manager

	udpConn *net.UDPConn
	udpCC   concurrencytracker.Counter

	tcpState           tcpState
	tcpConn            net.Conn
	tcpServer          int       // Index into servers/serverAddrs the current TCP connection targets
	tcpConnectDeadline time.Time // When a tcpConnecting attempt gives up and is treated as broken
	socksUseFallback   bool      // Tried the primary Tor SOCKS5 port and failed; try the fallback port next
	tcpBuf             ringbuf.Buffer
	tcpTracker         *connectiontracker.Tracker

	udpQ   queue
	tcpQ   queue
	childQ queue
	outQ   queue

	nextID uint16

	consistencyLevel ConsistencyLevel

	finished bool
}

// Init builds a Resolver from cfg, opening the shared nonblocking UDP socket used for all outgoing
// datagrams. The TCP connection is not opened until it is actually needed.
func Init(cfg *Config) (*Resolver, error) {
	if len(cfg.Servers) == 0 {
		return nil, newError(ErrBadConfig, "", fmt.Errorf("no nameservers configured"))
	}
	if len(cfg.Servers) > constants.Get().MaxServers {
		return nil, newError(ErrBadConfig, "", fmt.Errorf("too many nameservers: %d > %d", len(cfg.Servers), constants.Get().MaxServers))
	}

	r := &Resolver{
		config:           cfg,
		consistencyLevel: cfg.ConsistencyLevel,
		tcpTracker:       connectiontracker.New("goadns-tcp"),
	}
	r.udpQ.id = queueUDP
	r.tcpQ.id = queueTCP
	r.childQ.id = queueChild
	r.outQ.id = queueOutput

	port := constants.Get().DNSDefaultPort
	for _, ip := range cfg.Servers {
		addr := net.JoinHostPort(ip.String(), port)
		r.servers = append(r.servers, bestserver.ServersFromNames([]string{addr})[0])
		r.serverAddrs = append(r.serverAddrs, addr)
	}
	mgr, err := bestserver.NewTraditional(bestserver.TraditionalConfig{}, r.servers)
	if err != nil {
		return nil, newError(ErrBadConfig, "", err)
	}
	r.bestMgr = mgr

	udpConn, err := net.ListenUDP(constants.Get().DNSUDPNetwork, &net.UDPAddr{})
	if err != nil {
		return nil, newError(ErrNetworkDown, "", err)
	}
	r.udpConn = udpConn

	r.consistencyCheck(ccEntry)
	return r, nil
}

// Finish cancels every outstanding query (delivering ErrCanceled to each) and closes the engine's
// sockets, mirroring adns_finish's "cancel everything still queued before tearing down fds".
func (r *Resolver) Finish() error {
	if r.finished {
		return nil
	}
	r.finished = true

	r.udpQ.each(func(q *Query) { r.cancelOne(q) })
	r.tcpQ.each(func(q *Query) { r.cancelOne(q) })
	r.childQ.each(func(q *Query) { r.cancelOne(q) })

	var err error
	if r.udpConn != nil {
		err = r.udpConn.Close()
	}
	if r.tcpConn != nil {
		r.tcpConn.Close()
		r.tcpConn = nil
		r.tcpState = tcpDisconnected
	}
	return err
}

// Report implements reporter.Reporter so a caller's periodic logging can fold the engine's
// connection and concurrency stats in alongside everything else it reports.
func (r *Resolver) Report(resetCounters bool) string {
	return fmt.Sprintf("udp-peak-concurrency=%d tcp-state=%s\n%s",
		r.udpCC.Peak(resetCounters), r.tcpState, r.tcpTracker.Report(resetCounters))
}

// Name implements reporter.Reporter.
func (r *Resolver) Name() string { return constants.Get().PackageName }

var _ reporter.Reporter = (*Resolver)(nil)

func (r *Resolver) allocQuery(owner string, qtype uint16, flags Flag) *Query {
	r.nextID++
	q := &Query{
		id:          r.nextID,
		owner:       owner,
		qtype:       qtype,
		flags:       flags,
		resolver:    r,
		state:       StateQueued,
		submittedAt: time.Now(),
	}
	return q
}

func (r *Resolver) unlinkFromQueue(q *Query) {
	switch q.queue {
	case queueUDP:
		r.udpQ.remove(q)
	case queueTCP:
		r.tcpQ.remove(q)
	case queueChild:
		r.childQ.remove(q)
	case queueOutput:
		r.outQ.remove(q)
	}
}

func (r *Resolver) cancelOne(q *Query) {
	q.fail(ErrCanceled, nil)
}

// diagf writes one "adns: "-prefixed diagnostic line to Config.DiagWriter, unless NoErrorPrint is
// set or no DiagWriter was configured. Errors from the write itself are deliberately ignored --
// a broken diagnostics sink must never cause the engine to fail a query.
func (r *Resolver) diagf(format string, args ...interface{}) {
	if r.config.NoErrorPrint || r.config.DiagWriter == nil {
		return
	}
	fmt.Fprintf(r.config.DiagWriter, "adns: "+format+"\n", args...)
}

// debugf is diagf gated additionally on Config.Debug, for the noisier per-packet tracing a caller
// normally only wants turned on while actively diagnosing a problem.
func (r *Resolver) debugf(format string, args ...interface{}) {
	if !r.config.Debug {
		return
	}
	r.diagf(format, args...)
}

// pollFDEntries returns the raw descriptors PollFDs exposes: always the UDP socket, plus the TCP
// socket whenever one is open.
func (r *Resolver) pollFDEntries() ([]rawconn.PollFD, error) {
	var out []rawconn.PollFD

	udpFD, err := rawconn.FD(r.udpConn)
	if err != nil {
		return nil, err
	}
	want := rawconn.Readable
	if r.udpQ.length > 0 {
		want |= rawconn.Writable
	}
	out = append(out, rawconn.PollFD{FD: udpFD, Want: want})

	if r.tcpConn != nil {
		tcpFD, err := tcpConnFD(r.tcpConn)
		if err == nil {
			want := rawconn.Readable | rawconn.Exceptional
			if r.tcpState == tcpConnecting || r.tcpQ.length > 0 {
				want |= rawconn.Writable
			}
			out = append(out, rawconn.PollFD{FD: tcpFD, Want: want})
		}
	}
	return out, nil
}
