package goadns

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

// TestWireRoundTripOverLoopbackSocket exercises the wire codec over a real, portable loopback
// packet connection from golang.org/x/net/nettest rather than a hand-built net.ListenUDP pair, so
// the test keeps working the same way on platforms where "udp4" loopback needs different setup.
func TestWireRoundTripOverLoopbackSocket(t *testing.T) {
	client, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	defer client.Close()

	server, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	defer server.Close()

	buf, err := wireCodec.EncodeQuestion("example.com.", dns.TypeA, 42)
	require.NoError(t, err)

	_, err = client.WriteTo(buf, server.LocalAddr())
	require.NoError(t, err)

	recv := make([]byte, 512)
	n, from, err := server.ReadFrom(recv)
	require.NoError(t, err)
	require.Equal(t, client.LocalAddr().String(), from.String())

	msg, err := wireCodec.Decode(recv[:n])
	require.NoError(t, err)
	require.Equal(t, uint16(42), msg.Id)
	require.Len(t, msg.Question, 1)
	require.Equal(t, "example.com.", msg.Question[0].Name)
}
