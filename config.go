package goadns

import (
	"io"
	"net"
	"time"

	"github.com/markdingo/goadns/internal/resolvconf"
)

// Config is the full set of values an Init needs. It has no parsing logic of its own -- configuration
// parsing is treated as an external collaborator -- so a Config is normally produced by
// resolvconf.Load and adapted with NewConfig, or built by hand for tests.
type Config struct {
	Servers  []net.IP
	Sortlist []resolvconf.SortEntry
	Search   []string
	Ndots    int
	Debug    bool // Gates debugf output; no code path calls debugf, so setting it adds no diagnostic lines

	SocksEnabled bool   // Tunnel the TCP leg through a local Tor SOCKS5 proxy
	SocksCreds   string // "user:pass", or empty for no auth

	// NoAutoSys suppresses the default behavior of Submit/Check opportunistically driving
	// ProcessAny on the caller's behalf, for callers that want to manage the event loop
	// entirely themselves.
	NoAutoSys bool

	// DiagWriter receives free-text "adns: ..." diagnostic lines as the engine encounters
	// events worth surfacing (a failed or timed-out TCP connect, a failed SOCKS5 handshake). A nil
	// DiagWriter means diagnostics are simply discarded.
	DiagWriter io.Writer

	// NoErrorPrint suppresses diagnostic lines entirely, regardless of DiagWriter.
	NoErrorPrint bool

	ConsistencyLevel ConsistencyLevel
}

// NewConfig adapts a resolvconf.Config (however it was loaded) into the engine's own Config,
// leaving the socks/consistency fields at their zero values for the caller to fill in.
func NewConfig(rc *resolvconf.Config) *Config {
	return &Config{
		Servers:  rc.Servers,
		Sortlist: rc.Sortlist,
		Search:   rc.Search,
		Ndots:    rc.Ndots,
		Debug:    rc.Debug,
	}
}

// defaults applied when the zero value of a tunable is not meaningful.
const (
	defaultUDPTimeout = 4 * time.Second
)
