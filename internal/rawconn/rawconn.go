//go:build unix || !windows
// +build unix !windows

/*
Package rawconn surfaces the OS file descriptor behind a *net.UDPConn or *net.TCPConn so the engine
can satisfy the engine's PollFDs/BeforeSelect contract: a caller driving its own select/poll/epoll
loop needs the real fd, not Go's runtime-netpoller abstraction over it. golang.org/x/sys/unix supplies
the poll event bit constants so a caller building a unix.PollFd (or raw struct pollfd) array gets the
same values the kernel expects, rather than this package inventing its own numbering.
*/
package rawconn

import (
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Event is a bitmask of readiness conditions the engine wants notified about, matching the
// before_select/after_select vocabulary the engine's event-loop integration points use.
type Event int

const (
	Readable Event = 1 << iota
	Writable
	Exceptional
)

// PollFD pairs a raw descriptor with the events the engine currently wants polled on it.
type PollFD struct {
	FD   uintptr
	Want Event
}

// ToUnixPoll converts Want into the POLLIN/POLLOUT/POLLPRI bits unix.Poll (or a hand-built
// struct pollfd) expects.
func (p PollFD) ToUnixPoll() int16 {
	var bits int16
	if p.Want&Readable != 0 {
		bits |= unix.POLLIN
	}
	if p.Want&Writable != 0 {
		bits |= unix.POLLOUT
	}
	if p.Want&Exceptional != 0 {
		bits |= unix.POLLPRI
	}
	return bits
}

// FD extracts the underlying file descriptor of any net.Conn that exposes a syscall.Conn, which
// both *net.UDPConn and *net.TCPConn do. The value is only valid for the instant of the call: it
// must not be cached across a Close.
func FD(conn syscall.Conn) (uintptr, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("rawconn: %w", err)
	}
	var fd uintptr
	var controlErr error
	err = rawConn.Control(func(f uintptr) { fd = f })
	if err != nil {
		return 0, fmt.Errorf("rawconn: %w", err)
	}
	return fd, controlErr
}

// SetNonblock is a no-op placeholder kept for parity with the Windows build: on unix, net.Dial and
// net.Listen already hand back nonblocking descriptors wired into the Go runtime poller, so there
// is nothing further for the engine to request here.
func SetNonblock(conn net.Conn) error {
	return nil
}

// DialNonblock issues a raw nonblocking connect(2) to addr and hands back a net.Conn immediately,
// without waiting for the connection to complete -- the caller must poll the returned conn's
// descriptor for writability and call ConnectError to learn the outcome, the standard BSD
// nonblocking-connect idiom (socket, set O_NONBLOCK, connect tolerating EINPROGRESS, getsockopt
// SO_ERROR once writable) rather than net.DialTimeout's blocking wait for the handshake to finish.
func DialNonblock(network, addr string) (net.Conn, error) {
	raddr, err := net.ResolveTCPAddr(network, addr)
	if err != nil {
		return nil, fmt.Errorf("rawconn: %w", err)
	}

	var domain int
	var sa unix.Sockaddr
	if ip4 := raddr.IP.To4(); ip4 != nil {
		domain = unix.AF_INET
		a := &unix.SockaddrInet4{Port: raddr.Port}
		copy(a.Addr[:], ip4)
		sa = a
	} else {
		domain = unix.AF_INET6
		a := &unix.SockaddrInet6{Port: raddr.Port}
		copy(a.Addr[:], raddr.IP.To16())
		sa = a
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("rawconn: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawconn: setnonblock: %w", err)
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, fmt.Errorf("rawconn: connect: %w", err)
	}

	f := os.NewFile(uintptr(fd), "goadns-tcp")
	conn, err := net.FileConn(f)
	f.Close() // net.FileConn dups fd; the original is no longer needed once conn owns its own copy
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawconn: fileconn: %w", err)
	}
	return conn, nil
}

// ConnectError reports the outcome of a connect(2) issued by DialNonblock once conn's descriptor
// has become writable or exceptional: a nil error means the connection completed successfully, any
// other error is the errno SO_ERROR reported.
func ConnectError(conn syscall.Conn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("rawconn: %w", err)
	}
	var soErr int
	var ctrlErr error
	err = rawConn.Control(func(fd uintptr) {
		soErr, ctrlErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	})
	if err != nil {
		return fmt.Errorf("rawconn: %w", err)
	}
	if ctrlErr != nil {
		return fmt.Errorf("rawconn: getsockopt: %w", ctrlErr)
	}
	if soErr != 0 {
		return syscall.Errno(soErr)
	}
	return nil
}
