package constants

import (
	"testing"
)

func TestPostGet(t *testing.T) {
	if readOnlyConstants == nil {
		t.Error("Expected readOnlyConstants to be set by init() prior to me")
	}
}

// TestValues tests that at least a few of the constants have been
// initialized. Too tiresome to test them all and obviously of limited
// value.
func TestValues(t *testing.T) {
	consts := Get()
	if len(consts.PackageName) == 0 {
		t.Error("consts.PackageName should be set but it's zero length")
	}
	if len(consts.DNSDefaultPort) == 0 {
		t.Error("consts.DNSDefaultPort should be set but it's zero length")
	}
	if consts.MaxServers == 0 {
		t.Error("consts.MaxServers should be set but it's zero")
	}
	if consts.UDPRetry == 0 {
		t.Error("consts.UDPRetry should be set but it's zero")
	}
	if consts.DNSMaxUDP == 0 {
		t.Error("consts.DNSMaxUDP should be set but it's zero")
	}
}
