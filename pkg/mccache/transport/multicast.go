// Package transport owns the IP multicast sockets McCache peers use to
// exchange fragments: a sender socket bound to the group for outbound
// datagrams, and a listener socket joined to the group for inbound ones.
// Grounded in the original implementation's _get_socket, which builds one
// socket per direction with IP_MULTICAST_TTL/IP_ADD_MEMBERSHIP (IPv4) or
// IPV6_MULTICAST_HOPS/IPV6_JOIN_GROUP (IPv6).
package transport

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Endpoint is a joined multicast group address and port pair.
type Endpoint struct {
	Group string
	Port  int
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Group, e.Port) }

// Sender is a socket bound for outbound fragments to the group. NewSender's
// hops argument sets the multicast TTL (IPv4) or hop limit (IPv6); the
// original implementation calls this setting mc_hops regardless of IP
// family.
type Sender struct {
	conn *net.UDPConn
}

// NewSender opens a UDP socket connected to ep with the given hop count.
// Dialing rather than a bare ListenUDP+WriteToUDP fixes the socket's
// outbound interface up front, so LocalAddr reports a real source address
// instead of the wildcard one a connectionless send would otherwise bind.
// It does not join the multicast group: a sender does not need to receive
// its own traffic back.
func NewSender(ep Endpoint, hops int) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", ep.String())
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	if udpAddr.IP.To4() != nil {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastTTL(hops); err != nil {
			conn.Close()
			return nil, err
		}
	} else {
		pc := ipv6.NewPacketConn(conn)
		if err := pc.SetMulticastHopLimit(hops); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return &Sender{conn: conn}, nil
}

// Send writes one datagram to the group. It performs no framing; callers
// pass already-fragmented payloads produced by wire.Fragment.
func (s *Sender) Send(datagram []byte) error {
	_, err := s.conn.Write(datagram)
	return err
}

// Close releases the sender's socket.
func (s *Sender) Close() error { return s.conn.Close() }

// LocalAddr reports the IP address this sender's socket is bound to,
// used by the inbound listener to recognise and ignore the process's own
// multicast traffic, matching the original listener's SRC_IP_ADD check.
func (s *Sender) LocalAddr() string {
	addr, ok := s.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

// Listener is a socket joined to the multicast group for inbound
// fragments.
type Listener struct {
	conn *net.UDPConn
}

// NewListener listens on ep's port on every local address, joins the group
// on the system-assigned multicast interface, and returns a socket ready
// for ReadFrom. Datagrams this process sent itself are still delivered by
// the kernel; callers filter them out by comparing sender IPs, matching
// the original listener's "ignore my own messages" check.
func NewListener(ep Endpoint) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", ep.String())
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn}, nil
}

// ReadFrom blocks for the next inbound datagram, returning its payload and
// the sender's IP address (without port, matching the original
// implementation's use of sender[0]).
func (l *Listener) ReadFrom(buf []byte) (n int, senderIP string, err error) {
	n, addr, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, "", err
	}
	return n, addr.IP.String(), nil
}

// Close releases the listener's socket.
func (l *Listener) Close() error { return l.conn.Close() }

// ResolveGroup validates group against the known multicast address table,
// falling back to DefaultMulticastGroup (with a logged warning via warn)
// when the configured address is not recognised. This mirrors the
// original implementation's whitelist check, which only warns rather than
// refusing to start.
func ResolveGroup(group string, warn func(format string, args ...interface{})) string {
	if group == "" {
		return DefaultMulticastGroup
	}
	if IsKnownMulticastGroup(group) {
		return group
	}
	if warn != nil {
		warn("%s is an unavailable multicast IP address, defaulting to %s", group, DefaultMulticastGroup)
	}
	return DefaultMulticastGroup
}
