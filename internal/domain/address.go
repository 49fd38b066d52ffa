// Package domain holds the flat identifier/locator addressing types shared
// by every layer of the routing stack.
package domain

import "fmt"

// ID identifies a node uniquely within its locator's zone.
type ID uint64

// Locator identifies a zone (broadcast domain), realized as an IPv6
// multicast group on the wire.
type Locator uint64

// Address is the (locator, identifier) pair ILNP routes on.
type Address struct {
	Loc Locator
	ID  ID
}

// AllLinkLocalNodes is the reserved identifier meaning "every node in the
// sender's own zone" — used as the destination identifier of broadcast
// control packets (HELLO, LSDB, EXPIRED_LINKS).
const AllLinkLocalNodes ID = 0xFFFFFFFFFFFFFFFF

// AllLinkLocalAddress builds the broadcast destination address for a zone.
func AllLinkLocalAddress(loc Locator) Address {
	return Address{Loc: loc, ID: AllLinkLocalNodes}
}

func (a Address) String() string {
	return fmt.Sprintf("%016x/%016x", uint64(a.Loc), uint64(a.ID))
}

func (i ID) String() string      { return fmt.Sprintf("%016x", uint64(i)) }
func (l Locator) String() string { return fmt.Sprintf("%016x", uint64(l)) }

// IsBroadcast reports whether the address targets every node in its zone.
func (a Address) IsBroadcast() bool { return a.ID == AllLinkLocalNodes }
