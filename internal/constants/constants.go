/*
Package constants provides common values used across all goadns packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typical usage:

    consts := constants.Get()
    fmt.Println(consts.Version, "retrying after", consts.UDPRetry)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that every numeric assumption this engine depends on lives in exactly one place.
*/
package constants

import "time"

// Constants contains the system-wide constants.
type Constants struct {
	PackageName string
	Version     string

	DNSDefaultPort string // Name server port, suitable for net.JoinHostPort
	DNSUDPNetwork  string // Suitable for the "net" package
	DNSTCPNetwork  string

	MaxServers   int // Bound on the configured nameserver list (MAXSERVERS)
	MaxSortlist  int // Bound on the configured sortlist (MAXSORTLIST)
	MaxPollFDs   int // UDP socket, plus an optional TCP socket
	MaxCNAMEHops int // Guards against a CNAME loop

	UDPMaxRetries int           // Retry rounds per query before adns_s_timeout
	UDPRetry      time.Duration // Deadline added per UDP transmission attempt
	DNSMaxUDP     int           // Largest UDP datagram this resolver will read

	TCPConnTimeout time.Duration // Deadline for completing a TCP connect
	TCPIdleTimeout time.Duration // Idle deadline before an established TCP connection is dropped

	SocksPrimaryPort  string // Default Tor SOCKS5 port
	SocksFallbackPort string // Tried if the primary port refuses the connection
}

var readOnlyConstants *Constants

func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		PackageName: "goadns",
		Version:     "v0.1.0",

		DNSDefaultPort: "53",
		DNSUDPNetwork:  "udp4",
		DNSTCPNetwork:  "tcp4",

		MaxServers:   5,
		MaxSortlist:  15,
		MaxPollFDs:   2,
		MaxCNAMEHops: 20,

		UDPMaxRetries: 3,
		UDPRetry:      4 * time.Second,
		DNSMaxUDP:     1024,

		TCPConnTimeout: 14 * time.Second,
		TCPIdleTimeout: 30 * time.Second,

		SocksPrimaryPort:  "9050",
		SocksFallbackPort: "9150",
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constants struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
