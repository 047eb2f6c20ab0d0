/*
Package resolvconf turns /etc/resolv.conf-style configuration into the plain Config value the
resolver engine consumes. The configuration parser is treated as an external collaborator,
"specified only by the configuration values it yields" -- so the bulk of the parse (nameserver,
domain/search, options ndots:) is delegated to github.com/miekg/dns.ClientConfigFromFile, exactly
the way a typical Go stub resolver loads its base configuration. What miekg/dns does not
understand -- sortlist, clearnameservers, include, and the ADNS_-prefixed environment variable
family -- is layered on top here in the style of the original C library's own directive table.
*/
package resolvconf

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/markdingo/goadns/internal/constants"

	"github.com/miekg/dns"
)

// SortEntry is one "address/mask" pair from a sortlist directive.
type SortEntry struct {
	Base net.IP
	Mask net.IP
}

// Config is the complete set of values the engine needs at Init time. Building one is entirely the
// job of this package or of a caller who wants to construct it by hand for tests.
type Config struct {
	Servers  []net.IP
	Sortlist []SortEntry
	Search   []string
	Ndots    int
	Debug    bool
}

// LoadOptions controls environment-variable handling, mirroring adns_if_noenv.
type LoadOptions struct {
	NoEnv bool // Suppresses every environment variable lookup below
}

const defaultResolvConf = "/etc/resolv.conf"

// Load reproduces adns_init's directive precedence: RES_OPTIONS/ADNS_RES_OPTIONS are applied
// before and after the configuration files are read (so the environment always wins), the default
// file is read, then RES_CONF/ADNS_RES_CONF name additional files and RES_CONF_TEXT/
// ADNS_RES_CONF_TEXT supply inline configuration, and finally LOCALDOMAIN/ADNS_LOCALDOMAIN append
// to the search list.
func Load(opts LoadOptions) (*Config, error) {
	cfg := &Config{Ndots: 1}

	resOptions := getenvMaybe(opts, "RES_OPTIONS")
	adnsResOptions := getenvMaybe(opts, "ADNS_RES_OPTIONS")
	applyOptions(cfg, resOptions)
	applyOptions(cfg, adnsResOptions)

	if err := loadFile(cfg, defaultResolvConf); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, envvar := range []string{"RES_CONF", "ADNS_RES_CONF"} {
		if path := getenvMaybe(opts, envvar); path != "" {
			if err := loadFile(cfg, path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("resolvconf: %s=%q: %w", envvar, path, err)
			}
		}
	}
	for _, envvar := range []string{"RES_CONF_TEXT", "ADNS_RES_CONF_TEXT"} {
		if text := getenvMaybe(opts, envvar); text != "" {
			if err := loadText(cfg, text); err != nil {
				return nil, fmt.Errorf("resolvconf: %s: %w", envvar, err)
			}
		}
	}

	applyOptions(cfg, resOptions)
	applyOptions(cfg, adnsResOptions)

	for _, envvar := range []string{"LOCALDOMAIN", "ADNS_LOCALDOMAIN"} {
		if domains := getenvMaybe(opts, envvar); domains != "" {
			cfg.Search = append(cfg.Search, strings.Fields(domains)...)
		}
	}

	if len(cfg.Servers) == 0 {
		cfg.Servers = append(cfg.Servers, net.IPv4(127, 0, 0, 1))
	}
	return cfg, nil
}

func getenvMaybe(opts LoadOptions, name string) string {
	if opts.NoEnv {
		return ""
	}
	return os.Getenv(name)
}

// loadFile reads filename as a resolv.conf: miekg/dns supplies nameserver/domain/search/ndots,
// and a second pass over the same file picks out the directives miekg/dns ignores.
func loadFile(cfg *Config, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	clientConfig, err := dns.ClientConfigFromFile(filename)
	if err != nil {
		return fmt.Errorf("resolvconf: %s: %w", filename, err)
	}
	mergeClientConfig(cfg, clientConfig)

	f.Seek(0, 0)
	return scanExtraDirectives(cfg, f, filename)
}

func loadText(cfg *Config, text string) error {
	clientConfig, err := dns.ClientConfigFromReader(strings.NewReader(text))
	if err != nil {
		return err
	}
	mergeClientConfig(cfg, clientConfig)
	return scanExtraDirectives(cfg, strings.NewReader(text), "<inline>")
}

func mergeClientConfig(cfg *Config, cc *dns.ClientConfig) {
	for _, s := range cc.Servers {
		ip := net.ParseIP(s)
		if ip == nil {
			continue
		}
		addServer(cfg, ip)
	}
	if len(cc.Search) > 0 {
		cfg.Search = append([]string{}, cc.Search...) // "latest wins": domain/search replaces, not appends
	}
	if cc.Ndots > 0 {
		cfg.Ndots = cc.Ndots
	}
}

func addServer(cfg *Config, ip net.IP) {
	for _, existing := range cfg.Servers {
		if existing.Equal(ip) {
			return
		}
	}
	if len(cfg.Servers) >= constants.Get().MaxServers {
		return
	}
	cfg.Servers = append(cfg.Servers, ip)
}

// scanExtraDirectives handles sortlist, clearnameservers, include and a local "debug" option,
// which miekg/dns.ClientConfigFromFile silently ignores. It also replays nameserver lines in file
// order, so that a nameserver after clearnameservers is kept while one before it is dropped.
func scanExtraDirectives(cfg *Config, r interface{ Read([]byte) (int, error) }, filename string) error {
	scanner := bufio.NewScanner(ioReaderOf(r))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "sortlist":
			if err := applySortlist(cfg, fields[1:]); err != nil {
				return fmt.Errorf("%s: %w", filename, err)
			}
		case "nameserver":
			if len(fields) >= 2 {
				if ip := net.ParseIP(fields[1]); ip != nil {
					addServer(cfg, ip)
				}
			}
		case "clearnameservers":
			cfg.Servers = nil
		case "include":
			if len(fields) < 2 {
				return fmt.Errorf("%s: include directive with no filename", filename)
			}
			if err := loadFile(cfg, fields[1]); err != nil {
				return err
			}
		case "options":
			applyOptions(cfg, strings.Join(fields[1:], " "))
		}
	}
	return scanner.Err()
}

func ioReaderOf(r interface{ Read([]byte) (int, error) }) *strings.Reader {
	// bufio.NewScanner wants an io.Reader; both *os.File and *strings.Reader already satisfy
	// that, so this indirection exists only to keep scanExtraDirectives's signature generic
	// over both call sites without importing io just for the interface name.
	if sr, ok := r.(*strings.Reader); ok {
		return sr
	}
	buf := new(strings.Builder)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		buf.Write(tmp[:n])
		if err != nil {
			break
		}
	}
	return strings.NewReader(buf.String())
}

func applySortlist(cfg *Config, words []string) error {
	cfg.Sortlist = cfg.Sortlist[:0]
	maxSortlist := constants.Get().MaxSortlist
	for _, word := range words {
		if len(cfg.Sortlist) >= maxSortlist {
			return fmt.Errorf("too many sortlist entries, ignoring %q onwards", word)
		}
		base, mask, err := parseSortEntry(word)
		if err != nil {
			return err
		}
		cfg.Sortlist = append(cfg.Sortlist, SortEntry{Base: base, Mask: mask})
	}
	return nil
}

func parseSortEntry(word string) (base, mask net.IP, err error) {
	addrPart, maskPart, hasSlash := strings.Cut(word, "/")
	baseIP := net.ParseIP(addrPart).To4()
	if baseIP == nil {
		return nil, nil, fmt.Errorf("invalid address %q in sortlist", addrPart)
	}

	var maskIP net.IP
	if !hasSlash {
		maskIP = classDefaultMask(baseIP)
		if maskIP == nil {
			return nil, nil, fmt.Errorf("network address %q in sortlist is not in classed ranges, must specify mask explicitly", addrPart)
		}
	} else if strings.Contains(maskPart, ".") {
		maskIP = net.ParseIP(maskPart).To4()
		if maskIP == nil {
			return nil, nil, fmt.Errorf("invalid mask %q in sortlist", maskPart)
		}
	} else {
		bits, convErr := strconv.Atoi(maskPart)
		if convErr != nil || bits < 0 || bits > 32 {
			return nil, nil, fmt.Errorf("mask length %q invalid", maskPart)
		}
		maskIP = net.IP(net.CIDRMask(bits, 32))
	}

	if baseU32(baseIP)&^baseU32(maskIP) != 0 {
		return nil, nil, fmt.Errorf("mask %q in sortlist overlaps address %q", maskPart, addrPart)
	}
	return baseIP, maskIP, nil
}

func baseU32(ip net.IP) uint32 {
	ip4 := ip.To4()
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}

// classDefaultMask reproduces the legacy class A/B/C mask defaulting from
// the original C library's ccf_sortlist.
func classDefaultMask(ip net.IP) net.IP {
	b0 := ip[0]
	switch {
	case b0&0x80 == 0: // Class A
		return net.IP(net.IPv4Mask(0xff, 0, 0, 0))
	case b0&0xc0 == 0x80: // Class B
		return net.IP(net.IPv4Mask(0xff, 0xff, 0, 0))
	case b0&0xe0 == 0xc0: // Class C
		return net.IP(net.IPv4Mask(0xff, 0xff, 0xff, 0))
	default:
		return nil
	}
}

func applyOptions(cfg *Config, text string) {
	for _, word := range strings.Fields(text) {
		switch {
		case word == "debug":
			cfg.Debug = true
		case strings.HasPrefix(word, "ndots:"):
			if n, err := strconv.Atoi(strings.TrimPrefix(word, "ndots:")); err == nil && n >= 0 {
				cfg.Ndots = n
			}
		}
	}
}
