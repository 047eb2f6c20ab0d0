package goadns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// fakeDNSServer answers every A query, whatever its name, with the fixed address 192.0.2.7 and
// every other query with NXDOMAIN, letting
// tests drive a real *Resolver end to end over loopback UDP without needing any network access.
func fakeDNSServer(t *testing.T) (addr *net.UDPAddr, stop func()) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 512)
		for {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				select {
				case <-done:
					return
				default:
					continue
				}
			}
			req := new(dns.Msg)
			if err := req.Unpack(buf[:n]); err != nil {
				continue
			}
			resp := new(dns.Msg)
			resp.SetReply(req)
			if len(req.Question) == 1 && req.Question[0].Qtype == dns.TypeA {
				rr, _ := dns.NewRR(req.Question[0].Name + " 300 IN A 192.0.2.7")
				resp.Answer = append(resp.Answer, rr)
			} else {
				resp.Rcode = dns.RcodeNameError
			}
			out, err := resp.Pack()
			if err != nil {
				continue
			}
			conn.WriteToUDP(out, from)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr), func() { close(done); conn.Close() }
}

func testResolver(t *testing.T, serverAddr *net.UDPAddr) *Resolver {
	cfg := &Config{Servers: []net.IP{serverAddr.IP}}
	r, err := Init(cfg)
	require.NoError(t, err)
	r.serverAddrs[0] = serverAddr.String() // Point at the ephemeral test port, not port 53
	t.Cleanup(func() { r.Finish() })
	return r
}

func TestSubmitAndWaitResolvesSuccessfully(t *testing.T) {
	serverAddr, stop := fakeDNSServer(t)
	defer stop()
	r := testResolver(t, serverAddr)

	q, err := r.Submit("example.com", dns.TypeA, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done, err := r.Wait(ctx)
	require.NoError(t, err)
	require.Same(t, q, done)

	answer, qerr := done.Result()
	require.Nil(t, qerr)
	require.NotNil(t, answer)
	require.Len(t, answer.Records, 1)
	require.Equal(t, "192.0.2.7", answer.Records[0].RR.(*dns.A).A.String())
}

func TestSubmitNXDomain(t *testing.T) {
	serverAddr, stop := fakeDNSServer(t)
	defer stop()
	r := testResolver(t, serverAddr)

	_, err := r.Submit("nosuch.invalid", dns.TypeMX, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done, err := r.Wait(ctx)
	require.NoError(t, err)

	_, qerr := done.Result()
	require.NotNil(t, qerr)
	require.Equal(t, ErrNXDomain, qerr.Kind)
}

func TestCancelStopsDelivery(t *testing.T) {
	serverAddr, stop := fakeDNSServer(t)
	defer stop()
	r := testResolver(t, serverAddr)

	q, err := r.Submit("example.com", dns.TypeA, 0)
	require.NoError(t, err)
	r.Cancel(q)

	require.Equal(t, StateDone, q.State())
	require.Nil(t, r.Check()) // Canceled query never reaches the output queue
}

func TestPollFDsExposesUDPSocket(t *testing.T) {
	serverAddr, stop := fakeDNSServer(t)
	defer stop()
	r := testResolver(t, serverAddr)

	fds, err := r.PollFDs()
	require.NoError(t, err)
	require.Len(t, fds, 1)
	require.NotZero(t, fds[0].FD)
}
