package socks5

import (
	"net"
	"testing"
	"time"
)

// fakeProxy speaks just enough RFC1928 to let Dial succeed, echoing back a bound address of
// 0.0.0.0:0 as most real SOCKS5 CONNECT replies do for a stub target.
func fakeProxy(t *testing.T, replyCode byte) (addr string, done chan struct{}) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		methodReq := make([]byte, 3)
		if _, err := readFull(conn, methodReq); err != nil {
			return
		}
		conn.Write([]byte{5, 0}) // No auth required, matches request

		connectReq := make([]byte, 10)
		if _, err := readFull(conn, connectReq); err != nil {
			return
		}
		reply := []byte{5, replyCode, 0, 1, 0, 0, 0, 0, 0, 0}
		conn.Write(reply)
	}()
	return ln.Addr().String(), done
}

func TestDialSuccess(t *testing.T) {
	addr, done := fakeProxy(t, 0x00)
	conn, err := Dial(addr, "192.0.2.1:53", "", time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	<-done
}

func TestDialConnectionRefusedByProxy(t *testing.T) {
	addr, done := fakeProxy(t, 0x05) // Connection refused
	_, err := Dial(addr, "192.0.2.1:53", "", time.Second)
	if err == nil {
		t.Fatal("expected an error when the proxy refuses the CONNECT")
	}
	se, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected a *Error, got %T: %v", err, err)
	}
	if se.Kind != KindConnRefused {
		t.Fatalf("expected KindConnRefused, got %v", se.Kind)
	}
	<-done
}

func TestCredentialsSplit(t *testing.T) {
	user, pass, ok := Credentials("alice:s3cret").split()
	if !ok || user != "alice" || pass != "s3cret" {
		t.Fatalf("split failed: user=%q pass=%q ok=%v", user, pass, ok)
	}
	if _, _, ok := Credentials("nocolon").split(); ok {
		t.Fatal("expected split to fail without a colon")
	}
}
