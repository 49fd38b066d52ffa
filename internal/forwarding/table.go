// Package forwarding implements the Forwarding Table: quick lookup of the
// next hop for internal destinations, external locators, and the locator
// cache used for backward learning - grounded on the original source's
// sensor.network.router.forwardingtable.ForwardingTable.
package forwarding

import (
	"sync"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/graph"
)

// Table holds the three lookup maps spec §3 defines, behind a RWMutex of
// its own. The control plane's coarse lock (spec §5) already serializes
// Recompute against the rest of the plane's state, but LocCache is also
// read and written directly by the router's receive and host-Send
// goroutines (RecordLocatorForID/GetLocatorForID) outside that lock, so the
// table needs its own synchronization regardless.
type Table struct {
	mu sync.RWMutex

	nhInt    map[domain.ID]domain.ID
	nhExt    map[domain.Locator]domain.ID
	locCache map[domain.ID]domain.Locator
}

// New returns an empty forwarding table.
func New() *Table {
	return &Table{
		nhInt:    make(map[domain.ID]domain.ID),
		nhExt:    make(map[domain.Locator]domain.ID),
		locCache: make(map[domain.ID]domain.Locator),
	}
}

// NextHopForLocalNode returns the next hop toward an internal destination,
// if a route is known.
func (t *Table) NextHopForLocalNode(dest domain.ID) (domain.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hop, ok := t.nhInt[dest]
	return hop, ok
}

// NextHopForLocator returns the next hop toward an external locator, if a
// route is known.
func (t *Table) NextHopForLocator(loc domain.Locator) (domain.ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hop, ok := t.nhExt[loc]
	return hop, ok
}

// GetNextHop resolves a destination to a next hop: for a local destination
// it consults NH_int, otherwise NH_ext for dest.Loc. LocCache is not
// consulted: an unknown dest.Loc simply finds no entry.
func (t *Table) GetNextHop(dest domain.Address, destIsLocal bool) (domain.ID, bool) {
	if destIsLocal {
		return t.NextHopForLocalNode(dest.ID)
	}
	return t.NextHopForLocator(dest.Loc)
}

// AddInternalEntry records a next hop for an internal destination.
func (t *Table) AddInternalEntry(dest domain.ID, nextHop domain.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nhInt[dest] = nextHop
}

// AddExternalEntry records a next hop for an external locator.
func (t *Table) AddExternalEntry(loc domain.Locator, nextHop domain.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nhExt[loc] = nextHop
}

// RecordLocatorForID remembers which locator a remote identifier was last
// seen addressed from (backward learning). LocCache is additive: unlike
// NH_int/NH_ext it survives recompute() and is only ever overwritten by a
// fresher observation, never cleared wholesale.
func (t *Table) RecordLocatorForID(id domain.ID, loc domain.Locator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.locCache[id] = loc
}

// GetLocatorForID returns the cached locator for id, if known.
func (t *Table) GetLocatorForID(id domain.ID) (domain.Locator, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	loc, ok := t.locCache[id]
	return loc, ok
}

// InternalHops returns a snapshot of every known internal destination ->
// next hop entry, used by the introspection shell to display NH_int.
func (t *Table) InternalHops() map[domain.ID]domain.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[domain.ID]domain.ID, len(t.nhInt))
	for dest, hop := range t.nhInt {
		out[dest] = hop
	}
	return out
}

// ExternalHops returns a snapshot of every known locator -> next hop entry,
// used to fan a route request out across every neighbouring zone.
func (t *Table) ExternalHops() map[domain.Locator]domain.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[domain.Locator]domain.ID, len(t.nhExt))
	for loc, hop := range t.nhExt {
		out[loc] = hop
	}
	return out
}

// ClearExternalLocator removes a stale NH_ext entry, used when a
// LOCATOR_RERR invalidates a cached external route ahead of the next
// recompute.
func (t *Table) ClearExternalLocator(loc domain.Locator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nhExt, loc)
}

// Recompute rebuilds NH_int and NH_ext from scratch based on g, leaving
// LocCache untouched. Grounded on update_forwarding_table: BFS from root,
// reduce tied-shortest-distance first hops to the single highest-lambda
// hop, then, for every border node reachable in the BFS, record the
// shortest-known path to each locator it bridges to (ties between equally
// distant border nodes go to the lowest next-hop id, so the result does
// not depend on map iteration order).
func (t *Table) Recompute(g *graph.Graph, root domain.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nhInt = make(map[domain.ID]domain.ID)
	t.nhExt = make(map[domain.Locator]domain.ID)

	r := bfsFromRoot(g, root)

	for dest, hops := range r.firstHops {
		if dest == root {
			continue
		}
		best := bestLambdaHop(g, hops)
		t.nhInt[dest] = best
	}

	type locatorBest struct {
		distance int
		nextHop  domain.ID
	}
	bestForLocator := make(map[domain.Locator]locatorBest)

	considerBorder := func(borderID domain.ID, nextHopToBorder domain.ID) {
		node, ok := g.Node(borderID)
		if !ok {
			return
		}
		dist, known := r.distance[borderID]
		if !known {
			return
		}
		for loc := range node.ExternalLink {
			cur, exists := bestForLocator[loc]
			if !exists || dist < cur.distance || (dist == cur.distance && nextHopToBorder < cur.nextHop) {
				bestForLocator[loc] = locatorBest{distance: dist, nextHop: nextHopToBorder}
			}
		}
	}

	// root itself may be a border node: locator distance 0, next hop is the
	// bridge node's id directly since it is link-layer reachable despite
	// being in a different zone. Spec §4.4: use the local bridge node with
	// the highest lambda.
	if rootNode, ok := g.Node(root); ok && rootNode.IsBorderNode() {
		for loc, link := range rootNode.ExternalLink {
			bestForLocator[loc] = locatorBest{distance: 0, nextHop: bestLambdaBridge(link)}
		}
	}

	for id := range r.distance {
		if id == root {
			continue
		}
		if hop, ok := t.nhInt[id]; ok {
			considerBorder(id, hop)
		}
	}

	for loc, best := range bestForLocator {
		t.nhExt[loc] = best.nextHop
	}
}

// bestLambdaHop picks the highest-lambda first hop among a set of
// equal-distance candidates (spec §4.4). Ties are broken by the smallest
// id, so recompute() is deterministic regardless of Go's randomized map
// iteration order - required for the §8 idempotence property.
func bestLambdaHop(g *graph.Graph, hops map[domain.ID]struct{}) domain.ID {
	var best domain.ID
	var bestLambda int64 = -1
	first := true
	for hop := range hops {
		lambda := int64(-1)
		if n, ok := g.Node(hop); ok {
			lambda = int64(n.Lambda)
		}
		switch {
		case first:
			best, bestLambda, first = hop, lambda, false
		case lambda > bestLambda:
			best, bestLambda = hop, lambda
		case lambda == bestLambda && hop < best:
			best = hop
		}
	}
	return best
}

// bestLambdaBridge picks the highest-lambda bridge node on the far side of
// a locator link, tie-broken by the smallest id for the same determinism
// reason as bestLambdaHop.
func bestLambdaBridge(link *graph.LocatorLink) domain.ID {
	var best domain.ID
	var bestLambda int64 = -1
	first := true
	for bridgeID, lambda := range link.BridgeNodes {
		l := int64(lambda)
		switch {
		case first:
			best, bestLambda, first = bridgeID, l, false
		case l > bestLambda:
			best, bestLambda = bridgeID, l
		case l == bestLambda && bridgeID < best:
			best = bridgeID
		}
	}
	return best
}
