// Package link implements the Link Interface over IPv6 UDP multicast,
// grounded on the original source's
// sensor.network.router.netinterface.NetworkInterface.
package link

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv6"

	"ilnpnode/internal/battery"
	"ilnpnode/internal/domain"
	"ilnpnode/internal/logger"
	"ilnpnode/internal/routingerr"
)

// Link is the boundary between the router and the physical medium: send to
// a specific known neighbour, broadcast to the whole zone, and receive
// whatever arrives within a bounded wait.
type Link interface {
	Send(b []byte, nextHop domain.ID) error
	Broadcast(b []byte) error
	Receive(timeout time.Duration) ([]byte, net.Addr, error)
	Register(id domain.ID, addr *net.UDPAddr)
	Close() error
}

// Multicast is a Link implementation bound to one IPv6 UDP multicast
// socket per the node's own locator group, optionally also joining
// additional groups (other zones this node straddles as a border node).
type Multicast struct {
	lgr logger.Logger

	conn      *net.UDPConn
	pconn     *ipv6.PacketConn
	ownGroup  *net.UDPAddr
	bufSize   int

	mu      sync.RWMutex
	idToUDP map[domain.ID]*net.UDPAddr

	battery *battery.Budget
	closed  bool
}

// Option configures a Multicast link at construction time.
type Option func(*Multicast)

func WithLogger(l logger.Logger) Option {
	return func(m *Multicast) { m.lgr = l }
}

// New opens a UDP socket on port, joins every group in groups, uses
// ownGroup as the Broadcast destination, and configures multicast loopback
// per loopback.
func New(port int, groups []string, ownGroup string, loopback bool, bufSize int, budget *battery.Budget, opts ...Option) (*Multicast, error) {
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to open multicast socket: %w", err)
	}

	pconn := ipv6.NewPacketConn(conn)
	if err := pconn.SetMulticastLoopback(loopback); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set multicast loopback: %w", err)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	for _, g := range groups {
		ip := net.ParseIP(g)
		if ip == nil {
			conn.Close()
			return nil, fmt.Errorf("invalid multicast group address %q", g)
		}
		joined := false
		for _, iface := range ifaces {
			if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
				continue
			}
			if err := pconn.JoinGroup(&iface, &net.UDPAddr{IP: ip}); err == nil {
				joined = true
			}
		}
		if !joined {
			conn.Close()
			return nil, fmt.Errorf("failed to join multicast group %s on any interface", g)
		}
	}

	ownAddr := &net.UDPAddr{IP: net.ParseIP(ownGroup), Port: port}

	m := &Multicast{
		lgr:      &logger.NopLogger{},
		conn:     conn,
		pconn:    pconn,
		ownGroup: ownAddr,
		bufSize:  bufSize,
		idToUDP:  make(map[domain.ID]*net.UDPAddr),
		battery:  budget,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Register records the UDP address a neighbour identifier was last heard
// from, so future Send calls can reach it directly.
func (m *Multicast) Register(id domain.ID, addr *net.UDPAddr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idToUDP[id] = addr
}

// Send transmits b directly to nextHop's last-known address. Returns
// ErrUnknownNextHop if no address has been registered for it.
func (m *Multicast) Send(b []byte, nextHop domain.ID) error {
	if m.battery.Exhausted() {
		return m.fail()
	}
	m.mu.RLock()
	addr, ok := m.idToUDP[nextHop]
	m.mu.RUnlock()
	if !ok {
		return &routingerr.UnknownNextHopError{NextHop: nextHop}
	}
	if _, err := m.conn.WriteToUDP(b, addr); err != nil {
		return err
	}
	m.battery.Decrement()
	return nil
}

// Broadcast transmits b to the node's own zone multicast group.
func (m *Multicast) Broadcast(b []byte) error {
	if m.battery.Exhausted() {
		return m.fail()
	}
	if _, err := m.conn.WriteToUDP(b, m.ownGroup); err != nil {
		return err
	}
	m.battery.Decrement()
	return nil
}

func (m *Multicast) fail() error {
	m.lgr.Warn("energy budget exhausted, closing link")
	_ = m.Close()
	return routingerr.ErrEnergyExhausted
}

// Receive blocks for up to timeout waiting for one datagram. Each datagram
// received spends one unit of the energy budget; once the budget is spent,
// Receive closes the link and returns ErrEnergyExhausted.
func (m *Multicast) Receive(timeout time.Duration) ([]byte, net.Addr, error) {
	if m.battery.Exhausted() {
		return nil, nil, m.fail()
	}
	if err := m.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, err
	}
	buf := make([]byte, m.bufSize)
	n, addr, err := m.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	m.battery.Decrement()
	return buf[:n], addr, nil
}

// Close shuts the socket down. Safe to call more than once.
func (m *Multicast) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.conn.Close()
}
