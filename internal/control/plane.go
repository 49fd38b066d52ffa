package control

import (
	"context"
	"sync"
	"time"

	"ilnpnode/internal/battery"
	"ilnpnode/internal/codec"
	"ilnpnode/internal/ctxutil"
	"ilnpnode/internal/discovery"
	"ilnpnode/internal/domain"
	"ilnpnode/internal/forwarding"
	"ilnpnode/internal/graph"
	"ilnpnode/internal/link"
	"ilnpnode/internal/logger"
	"ilnpnode/internal/seqgen"
	"ilnpnode/internal/telemetry"
	"ilnpnode/internal/wire"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracer emits spans around the topology-maintenance operations that fan
// out to, or recompute state from, the whole zone: LSDB floods and
// forwarding table recomputation.
var tracer = otel.Tracer("ilnpnode/internal/control")

// maxLambda is the largest value the energy-aware link metric can take -
// the range of an unsigned 32 bit integer.
const maxLambda = 1<<32 - 1

// lsdbSequenceMax bounds the 9-bit LSDB sequence number space (0-511).
const lsdbSequenceMax = 511

// Recorder is the narrow collaborator the control plane needs to account
// for traffic it originates.
type Recorder interface {
	RecordSentPacket(isControl, isForwarded bool)
}

// Plane is the control-plane actor: it owns the node's view of its zone
// (the Graph), the Forwarding Table derived from it, neighbour link-state,
// and reactive route discovery. It carries a single coarse lock (per spec
// §5) guarding all of the above - callers never need finer-grained locking.
// Grounded on control.py's RouterControlPlane.
type Plane struct {
	mu sync.Mutex

	myAddr  domain.Address
	battery *battery.Budget
	lnk     link.Link
	rec     Recorder
	lgr     logger.Logger

	graph     *graph.Graph
	table     *forwarding.Table
	neighbour *NeighbourLinks
	discovery *discovery.Handler

	updateAvailable bool
	lsdbSeq         *seqgen.Bounded

	keepalive time.Duration
}

// New constructs a control plane for myAddr, wiring table/discovery to the
// same forwarding table so discovery-learned routes and graph-derived
// routes share one source of truth.
func New(myAddr domain.Address, budget *battery.Budget, lnk link.Link, table *forwarding.Table, rec Recorder, lgr logger.Logger, keepalive time.Duration) *Plane {
	p := &Plane{
		myAddr:    myAddr,
		battery:   budget,
		lnk:       lnk,
		rec:       rec,
		lgr:       lgr,
		table:     table,
		neighbour: NewNeighbourLinks(),
		lsdbSeq:   seqgen.New(lsdbSequenceMax),
		keepalive: keepalive,
	}
	p.graph = graph.New(myAddr.ID, p.calcMyLambda())
	p.discovery = discovery.New(myAddr, table, lnk, rec, lgr.Named("discovery"))
	return p
}

func (p *Plane) calcMyLambda() uint32 {
	frac := p.battery.Percentage()
	return uint32((1 - (1-frac)*(1-frac)) * float64(maxLambda))
}

func (p *Plane) send(pkt codec.Packet) {
	if err := p.lnk.Broadcast(pkt.Marshal()); err != nil {
		p.lgr.Warn("failed to broadcast control packet", logger.F("error", err.Error()))
		return
	}
	if p.rec != nil {
		p.rec.RecordSentPacket(true, false)
	}
}

func (p *Plane) sendTo(pkt codec.Packet, nextHop domain.ID, forwarded bool) {
	if err := p.lnk.Send(pkt.Marshal(), nextHop); err != nil {
		p.lgr.Warn("failed to send control packet", logger.F("error", err.Error()))
		return
	}
	if p.rec != nil {
		p.rec.RecordSentPacket(true, forwarded)
	}
}

func (p *Plane) sendKeepalive() {
	hello := codec.Hello{Lambda: p.calcMyLambda()}
	w := wire.WrapControl(codec.ControlHello, hello, false)
	pkt := wire.BuildPacket(p.myAddr, domain.AllLinkLocalAddress(p.myAddr.Loc), 0, w)
	p.send(pkt)
}

// scopedLogger attaches ctx's per-packet trace id (if any) to p.lgr for the
// duration of the caller's locked section, returning a restore func. Safe
// because every call into the control plane is already serialized by p.mu.
func (p *Plane) scopedLogger(ctx context.Context) func() {
	id := ctxutil.TraceIDFromContext(ctx)
	if id == "" {
		return func() {}
	}
	orig := p.lgr
	p.lgr = p.lgr.With(logger.F("trace_id", id))
	return func() { p.lgr = orig }
}

func (p *Plane) broadcastLSDB(ctx context.Context) {
	_, span := tracer.Start(ctx, "control.broadcastLSDB",
		oteltrace.WithAttributes(telemetry.NodeAttributes("ilnp.node", p.myAddr)...))
	defer span.End()

	lsdb := p.graph.ToLSDB(p.lsdbSeq.Next())
	w := wire.WrapControl(codec.ControlLSDB, lsdb, false)
	pkt := wire.BuildPacket(p.myAddr, domain.AllLinkLocalAddress(p.myAddr.Loc), codec.DefaultHopLimit, w)
	p.send(pkt)
}

// Run starts the keepalive/maintenance loop and blocks until ctx is
// cancelled.
func (p *Plane) Run(ctx context.Context) {
	p.mu.Lock()
	p.sendKeepalive()
	p.mu.Unlock()

	ticker := time.NewTicker(p.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Plane) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx := context.Background()

	p.sendKeepalive()
	p.neighbour.Age()

	expired := p.neighbour.PopExpired()
	if len(expired) > 0 {
		p.handleExpiredLinks(expired)
		p.updateAvailable = true
	}

	p.discovery.Maintenance()

	if p.updateAvailable {
		p.recalculateForwardingTable(ctx)
		p.updateAvailable = false
	}
}

// HandleControlPacket dispatches one decoded control message to its
// handler. Packets this node itself originated (reflected back by a
// multicast loopback) are ignored. ctx carries the per-packet trace id the
// router generated when the packet first arrived; every log line emitted
// while handling it here, or inside discovery, is tagged with that id.
func (p *Plane) HandleControlPacket(ctx context.Context, pkt codec.Packet, msg codec.ControlMessage) {
	if pkt.Header.Src.ID == p.myAddr.ID {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	restore := p.scopedLogger(ctx)
	defer restore()
	restoreDisc := p.discovery.WithTraceLogger(ctxutil.TraceIDFromContext(ctx))
	defer restoreDisc()

	switch body := msg.Body.(type) {
	case codec.Hello:
		p.handleHello(ctx, pkt, body)
	case codec.LSDB:
		p.handleLSDB(ctx, pkt, body)
	case codec.ExpiredLinks:
		p.handleExpiredLinkList(pkt, body)
	case codec.LocatorRReq:
		p.discovery.HandleLocatorRReq(ctx, pkt, body)
	case codec.LocatorRRep:
		p.discovery.HandleLocatorRRep(pkt, body)
	case codec.LocatorRErr:
		p.handleLocatorRErr(pkt, body)
	default:
		p.lgr.Warn("unknown control message body")
	}
}

// FindRoute begins reactive discovery for pkt's destination.
func (p *Plane) FindRoute(ctx context.Context, pkt codec.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	restoreDisc := p.discovery.WithTraceLogger(ctxutil.TraceIDFromContext(ctx))
	defer restoreDisc()
	p.discovery.FindRoute(pkt)
}

// NextHop resolves dest to a next hop using the current forwarding table.
func (p *Plane) NextHop(dest domain.Address, destIsLocal bool) (domain.ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table.GetNextHop(dest, destIsLocal)
}

func (p *Plane) handleHello(ctx context.Context, pkt codec.Packet, hello codec.Hello) {
	srcID := pkt.Header.Src.ID
	if p.neighbour.Contains(srcID) {
		p.neighbour.Add(srcID)
		return
	}
	p.lgr.Info("new neighbour", logger.F("id", srcID.String()))
	p.neighbour.Add(srcID)

	if pkt.Header.Src.Loc == p.myAddr.Loc {
		p.graph.AddInternalLink(p.myAddr.ID, p.calcMyLambda(), srcID, hello.Lambda)
	} else {
		p.graph.AddExternalLink(p.myAddr.ID, pkt.Header.Src.Loc, srcID, hello.Lambda)
	}
	p.broadcastLSDB(ctx)
	p.updateAvailable = true
}

func (p *Plane) handleLSDB(ctx context.Context, pkt codec.Packet, lsdb codec.LSDB) {
	if pkt.Header.Src.Loc != p.myAddr.Loc {
		p.lgr.Info("LSDB from another locator, discarding")
		return
	}
	if !p.graph.AddAll(lsdb) {
		p.lgr.Info("no new information in LSDB, discarding")
		return
	}
	p.lsdbSeq.SetToLastSeen(lsdb.SeqNumber)
	p.broadcastLSDB(ctx)
	p.updateAvailable = true
}

func (p *Plane) handleExpiredLinkList(pkt codec.Packet, msg codec.ExpiredLinks) {
	if pkt.Header.Src.Loc != p.myAddr.Loc {
		p.lgr.Info("expired link notice from another locator, not my concern")
		return
	}
	centralNode := pkt.Header.Src.ID
	learned := false
	for _, lostID := range msg.LostIDs {
		if p.graph.RemoveLink(centralNode, lostID) {
			learned = true
		}
	}
	if !learned {
		return
	}
	pkt.Header.DecrementHopLimit()
	if pkt.Header.HopLimit == 0 {
		return
	}
	w := wire.WrapControl(codec.ControlExpiredLinks, msg, false)
	forward := wire.BuildPacket(pkt.Header.Src, pkt.Header.Dst, pkt.Header.HopLimit, w)
	p.send(forward)
	p.updateAvailable = true
}

func (p *Plane) handleExpiredLinks(expired []domain.ID) {
	for _, id := range expired {
		p.graph.RemoveLink(p.myAddr.ID, id)
	}
	msg := codec.ExpiredLinks{LostIDs: expired}
	w := wire.WrapControl(codec.ControlExpiredLinks, msg, false)
	pkt := wire.BuildPacket(p.myAddr, domain.AllLinkLocalAddress(p.myAddr.Loc), codec.DefaultHopLimit, w)
	p.send(pkt)
}

// handleLocatorRErr implements the resolved LOCATOR_RERR redesign: a
// receiver whose forwarding table has a now-stale NH_ext entry for the
// reported locator clears it and forces an early recompute, rather than
// waiting for the normal keepalive-driven expiry to catch up.
func (p *Plane) handleLocatorRErr(pkt codec.Packet, rerr codec.LocatorRErr) {
	if _, ok := p.table.NextHopForLocator(rerr.LostLocator); !ok {
		return
	}
	p.lgr.Info("clearing stale external route after LOCATOR_RERR", logger.F("locator", rerr.LostLocator.String()))
	p.table.ClearExternalLocator(rerr.LostLocator)
	p.updateAvailable = true
}

// EmitRouteError is called by the router when it cannot resolve a next hop
// for a forwarded data packet's destination locator but can for its source
// locator srcLoc; it unicasts a LOCATOR_RERR addressed to srcLoc via
// towards, the next hop toward that locator.
func (p *Plane) EmitRouteError(ctx context.Context, srcLoc domain.Locator, towards domain.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	restore := p.scopedLogger(ctx)
	defer restore()
	rerr := codec.LocatorRErr{LostLocator: srcLoc}
	w := wire.WrapControl(codec.ControlLocatorRErr, rerr, true)
	pkt := wire.BuildPacket(p.myAddr, domain.Address{Loc: srcLoc}, codec.DefaultHopLimit, w)
	p.sendTo(pkt, towards, false)
}

// Snapshot is a read-only view of a node's current control-plane state,
// for the interactive introspection shell.
type Snapshot struct {
	Neighbours []domain.ID
	GraphNodes []domain.ID
	NHInt      map[domain.ID]domain.ID
	NHExt      map[domain.Locator]domain.ID
	MyLambda   uint32
}

// Snapshot returns a consistent point-in-time view of the node's
// neighbours, graph membership, and forwarding table.
func (p *Plane) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Neighbours: p.neighbour.IDs(),
		GraphNodes: p.graph.Nodes(),
		NHInt:      p.table.InternalHops(),
		NHExt:      p.table.ExternalHops(),
		MyLambda:   p.calcMyLambda(),
	}
}

func (p *Plane) recalculateForwardingTable(ctx context.Context) {
	_, span := tracer.Start(ctx, "control.recomputeForwardingTable",
		oteltrace.WithAttributes(telemetry.NodeAttributes("ilnp.node", p.myAddr)...))
	defer span.End()

	p.lgr.Info("recalculating forwarding table")
	p.table.Recompute(p.graph, p.myAddr.ID)
	p.discovery.AddExternalPathsToForwardingTable()
}
