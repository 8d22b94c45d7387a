// Package transport is the thin shell around internal/raft: a UDP socket to
// the simulator, a 10ms poll loop, and the wire codec. It owns no
// replication logic — every decoded envelope is handed straight to a
// raft.Node and every envelope that Node produces is encoded and sent right
// back to the simulator.
package transport

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Socket is this replica's single datagram endpoint: an ephemeral local
// port, connected to the shared simulator address that relays every peer
// and client message (spec.md §6 — "all traffic flows through the
// configured simulator port on localhost"). SO_REUSEADDR/SO_REUSEPORT are
// set on the connecting socket before connect() completes, so a replica
// killed and immediately respawned in a test harness can rebind the same
// local port without waiting out TIME_WAIT.
type Socket struct {
	conn *net.UDPConn
}

// Dial opens this replica's socket and connects it to the simulator
// listening on localhost:simulatorPort. SO_REUSEADDR/SO_REUSEPORT are set
// on the actual socket used for the connection (via the Dialer's Control
// hook), not on a throwaway one, so the option genuinely applies to the
// long-lived connection the replica sends and polls on.
func Dial(simulatorPort int) (*Socket, error) {
	d := net.Dialer{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = setReuse(int(fd))
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	conn, err := d.Dial("udp", fmt.Sprintf("localhost:%d", simulatorPort))
	if err != nil {
		return nil, fmt.Errorf("transport: dial simulator on port %d: %w", simulatorPort, err)
	}
	return &Socket{conn: conn.(*net.UDPConn)}, nil
}

func setReuse(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}

// Close releases the underlying socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// LocalAddr returns the locally bound address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Send writes one datagram to the simulator.
func (s *Socket) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// pollBudget is the event loop's poll granularity (spec.md §2, Event loop).
const pollBudget = 10 * time.Millisecond

// Poll reads one datagram, waiting at most pollBudget. ok is false on a
// read timeout, which is the expected, frequent case — not an error.
func (s *Socket) Poll() (b []byte, ok bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollBudget)); err != nil {
		return nil, false, err
	}
	buf := make([]byte, 65535)
	n, err := s.conn.Read(buf)
	if err != nil {
		if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	return buf[:n], true, nil
}
