package discovery

import (
	"context"

	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
	"ilnpnode/internal/forwarding"
	"ilnpnode/internal/link"
	"ilnpnode/internal/logger"
	"ilnpnode/internal/seqgen"
	"ilnpnode/internal/telemetry"
	"ilnpnode/internal/wire"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const requestIDMax = 511

// tracer emits a span around each fan-out of a route request to this
// node's external neighbours, mirroring control's spans around LSDB
// floods and forwarding table recomputation.
var tracer = otel.Tracer("ilnpnode/internal/discovery")

// Recorder is the narrow collaborator a Handler needs to account for
// control traffic it originates, without depending on the result-logging
// package directly.
type Recorder interface {
	RecordSentPacket(isControl, isForwarded bool)
}

// Handler is the inter-zone route discovery actor: it originates
// LOCATOR_RREQ fan-outs, answers them on a target's behalf when possible,
// and processes LOCATOR_RREP replies - grounded on interzone.py's
// ExternalRequestHandler. It carries no locking of its own: the owning
// control plane serializes every call.
type Handler struct {
	myAddr domain.Address
	table  *forwarding.Table
	lnk    link.Link
	rec    Recorder
	lgr    logger.Logger

	recent    *RecentlySeenRequests
	requests  *CurrentRequests
	pathCache *PathCache
	reqIDGen  *seqgen.Bounded
}

// New constructs a Handler bound to the given forwarding table and link.
func New(myAddr domain.Address, table *forwarding.Table, lnk link.Link, rec Recorder, lgr logger.Logger) *Handler {
	return &Handler{
		myAddr:    myAddr,
		table:     table,
		lnk:       lnk,
		rec:       rec,
		lgr:       lgr,
		recent:    NewRecentlySeenRequests(),
		requests:  NewCurrentRequests(),
		pathCache: NewPathCache(),
		reqIDGen:  seqgen.New(requestIDMax),
	}
}

// WithTraceLogger swaps in a trace-scoped logger for the duration of the
// caller's locked section and returns a restore func. Safe without its own
// locking because discovery is only ever invoked under the owning control
// plane's single coarse lock, which already serializes every call.
func (h *Handler) WithTraceLogger(traceID string) func() {
	if traceID == "" {
		return func() {}
	}
	orig := h.lgr
	h.lgr = h.lgr.With(logger.F("trace_id", traceID))
	return func() { h.lgr = orig }
}

func (h *Handler) send(pkt codec.Packet, nextHop domain.ID, forwarded bool) {
	if err := h.lnk.Send(pkt.Marshal(), nextHop); err != nil {
		h.lgr.Warn("failed to send discovery packet", logger.F("error", err.Error()))
		return
	}
	if h.rec != nil {
		h.rec.RecordSentPacket(true, forwarded)
	}
}

func (h *Handler) buildRReq(requestID uint16, destID domain.ID, firstHopLocator domain.Locator) codec.Packet {
	req := codec.LocatorRReq{
		RequestID:          requestID,
		AllowCachedReplies: true,
		RouteList:          codec.LocatorHopList{Locators: []domain.Locator{firstHopLocator}},
	}
	w := wire.WrapControl(codec.ControlLocatorRReq, req, true)
	dst := domain.Address{Loc: 0, ID: destID}
	return wire.BuildPacket(h.myAddr, dst, codec.DefaultHopLimit, w)
}

// fanOutRequest sends a fresh route request across every neighbouring
// locator we currently know a next hop to, returning the request id used
// and whether we had any neighbour to send it to at all.
func (h *Handler) fanOutRequest(destID domain.ID) (uint16, bool) {
	hops := h.table.ExternalHops()
	if len(hops) == 0 {
		return 0, false
	}
	requestID := h.reqIDGen.Next()
	for loc, nextHop := range hops {
		h.send(h.buildRReq(requestID, destID, loc), nextHop, false)
	}
	return requestID, true
}

// initiateDestinationRequest begins tracking and fans out a brand new
// request for destID. Returns false if we have no external neighbours.
func (h *Handler) initiateDestinationRequest(destID domain.ID) bool {
	requestID, ok := h.fanOutRequest(destID)
	if !ok {
		return false
	}
	h.requests.AddNewRequest(destID, requestID)
	return true
}

// FindRoute begins (or joins) a route discovery for pkt's destination,
// buffering pkt until a reply arrives.
func (h *Handler) FindRoute(pkt codec.Packet) {
	destID := pkt.Header.Dst.ID
	if h.requests.Contains(destID) {
		h.requests.AddPacketToDestinationBuffer(pkt)
		return
	}
	if h.initiateDestinationRequest(destID) {
		h.requests.AddPacketToDestinationBuffer(pkt)
	} else {
		h.lgr.Info("no neighbour locators known, discarding packet awaiting route")
	}
}

func indexOfLocator(path []domain.Locator, loc domain.Locator) int {
	for i, l := range path {
		if l == loc {
			return i
		}
	}
	return -1
}

// HandleLocatorRReq processes one incoming LOCATOR_RREQ, replying,
// discarding, or forwarding it per spec §4.
func (h *Handler) HandleLocatorRReq(ctx context.Context, pkt codec.Packet, req codec.LocatorRReq) {
	switch {
	case pkt.Header.Dst.ID == h.myAddr.ID:
		h.lgr.Info("route request is for me, replying")
		h.replyToRReq(pkt, req)

	case h.recent.Contains(pkt.Header.Src.ID, req.RequestID):
		h.lgr.Info("duplicate route request, discarding")

	case h.inMyLocator(pkt.Header.Dst.ID):
		h.lgr.Info("route request target is in my locator, replying on its behalf")
		h.replyToRReq(pkt, req)
		h.recent.Add(pkt.Header.Src.ID, req.RequestID)

	case req.AllowCachedReplies && h.tryReplyFromCache(pkt, req):
		h.recent.Add(pkt.Header.Src.ID, req.RequestID)

	case req.AllowCachedReplies:
		h.lgr.Info("no cached path, forwarding route request")
		h.forwardRReq(ctx, pkt, req)
		h.recent.Add(pkt.Header.Src.ID, req.RequestID)

	default:
		h.forwardRReq(ctx, pkt, req)
		h.recent.Add(pkt.Header.Src.ID, req.RequestID)
	}
}

func (h *Handler) inMyLocator(id domain.ID) bool {
	_, ok := h.table.NextHopForLocalNode(id)
	return ok
}

func (h *Handler) replyToRReq(pkt codec.Packet, req codec.LocatorRReq) {
	path := req.RouteList.Locators
	rep := codec.LocatorRRep{
		OriginalDestinationID: pkt.Header.Dst.ID,
		RouteList:             codec.LocatorHopList{Locators: path},
	}
	w := wire.WrapControl(codec.ControlLocatorRRep, rep, true)
	replyPkt := wire.BuildPacket(h.myAddr, pkt.Header.Src, codec.DefaultHopLimit, w)

	var nextHopLoc domain.Locator
	if len(path) > 1 {
		nextHopLoc = path[len(path)-2]
	} else {
		nextHopLoc = pkt.Header.Src.Loc
	}
	nextHop, ok := h.table.NextHopForLocator(nextHopLoc)
	if !ok {
		h.lgr.Warn("no next hop toward requester, dropping reply")
		return
	}
	h.send(replyPkt, nextHop, false)
}

// tryReplyFromCache answers on behalf of a cached destination if one is
// known, prepending the requester's own visited prefix to the cached tail.
// Reports whether it replied.
func (h *Handler) tryReplyFromCache(pkt codec.Packet, req codec.LocatorRReq) bool {
	nodeLocator, ok := h.table.GetLocatorForID(pkt.Header.Dst.ID)
	if !ok {
		return false
	}
	cachedPath, ok := h.pathCache.PathTo(nodeLocator)
	if !ok {
		return false
	}

	currentPath := req.RouteList.Locators
	var reply []domain.Locator
	if idx := indexOfLocator(currentPath, h.myAddr.Loc); idx >= 0 {
		reply = append(append([]domain.Locator{}, currentPath[:idx+1]...), cachedPath...)
	} else {
		reply = cachedPath
	}
	h.replyWithCachedPath(reply, pkt.Header.Src, pkt.Header.Dst.ID)
	return true
}

func (h *Handler) replyWithCachedPath(path []domain.Locator, destAddr domain.Address, originalDestinationID domain.ID) {
	rep := codec.LocatorRRep{
		OriginalDestinationID: originalDestinationID,
		RouteList:             codec.LocatorHopList{Locators: path},
	}
	w := wire.WrapControl(codec.ControlLocatorRRep, rep, true)
	replyPkt := wire.BuildPacket(h.myAddr, destAddr, codec.DefaultHopLimit, w)

	var nextHop domain.ID
	var ok bool
	if destAddr.Loc == h.myAddr.Loc {
		nextHop, ok = h.table.NextHopForLocalNode(destAddr.ID)
	} else {
		var nextHopLoc domain.Locator
		if len(path) > 1 {
			nextHopLoc = path[len(path)-2]
		} else {
			nextHopLoc = destAddr.Loc
		}
		nextHop, ok = h.table.NextHopForLocator(nextHopLoc)
	}
	if !ok {
		h.lgr.Warn("no next hop for cached reply, dropping")
		return
	}
	h.send(replyPkt, nextHop, false)
}

func (h *Handler) forwardRReq(ctx context.Context, pkt codec.Packet, req codec.LocatorRReq) {
	_, span := tracer.Start(ctx, "discovery.forwardRReq",
		oteltrace.WithAttributes(telemetry.NodeAttributes("ilnp.node", h.myAddr)...))
	defer span.End()

	pkt.Header.DecrementHopLimit()
	hops := h.table.ExternalHops()
	if len(hops) == 0 {
		h.lgr.Info("no neighbour locators, discarding route request")
		return
	}
	if pkt.Header.HopLimit == 0 {
		h.lgr.Info("route request out of hops, discarding")
		return
	}

	path := req.RouteList.Locators
	lastVisited := path[len(path)-1]
	if lastVisited != h.myAddr.Loc {
		// not yet my turn in the path: pass straight through.
		nextHop, ok := h.table.NextHopForLocator(lastVisited)
		if !ok {
			h.lgr.Warn("no next hop toward last visited locator, dropping")
			return
		}
		w := wire.WrapControl(codec.ControlLocatorRReq, req, true)
		h.send(wire.BuildPacket(pkt.Header.Src, pkt.Header.Dst, pkt.Header.HopLimit, w), nextHop, true)
		return
	}

	var unvisited []domain.Locator
	for loc := range hops {
		if indexOfLocator(path, loc) < 0 && loc != pkt.Header.Src.Loc {
			unvisited = append(unvisited, loc)
		}
	}
	if len(unvisited) == 0 {
		return
	}
	for _, loc := range unvisited {
		extended := append(append([]domain.Locator{}, path...), loc)
		fanReq := codec.LocatorRReq{
			RequestID:          req.RequestID,
			AllowCachedReplies: req.AllowCachedReplies,
			RouteList:          codec.LocatorHopList{Locators: extended},
		}
		w := wire.WrapControl(codec.ControlLocatorRReq, fanReq, true)
		h.send(wire.BuildPacket(pkt.Header.Src, pkt.Header.Dst, pkt.Header.HopLimit, w), hops[loc], true)
	}
}

// HandleLocatorRRep processes one incoming LOCATOR_RREP: dispatching to
// ourselves, a node in our own locator, or onward toward another locator.
func (h *Handler) HandleLocatorRRep(pkt codec.Packet, rep codec.LocatorRRep) {
	switch {
	case pkt.Header.Dst.ID == h.myAddr.ID:
		h.handleReplyForMe(rep)
	case pkt.Header.Dst.Loc == h.myAddr.Loc:
		h.forwardReplyWithinMyLocator(pkt)
	default:
		h.forwardReplyToOtherLocator(pkt, rep)
	}
}

func (h *Handler) handleReplyForMe(rep codec.LocatorRRep) {
	hopList := rep.RouteList.Locators
	if len(hopList) == 0 {
		return
	}
	destinationLocator := hopList[len(hopList)-1]
	h.pathCache.RecordPath(destinationLocator, hopList)
	h.table.RecordLocatorForID(rep.OriginalDestinationID, destinationLocator)

	nextHopID, ok := h.table.NextHopForLocator(hopList[0])
	if ok {
		h.table.AddExternalEntry(destinationLocator, nextHopID)
	}

	record, pending := h.requests.Get(rep.OriginalDestinationID)
	if !pending {
		h.lgr.Info("reply arrived too late, path cache updated for future use")
		return
	}
	h.requests.Remove(rep.OriginalDestinationID)
	if !ok {
		h.lgr.Warn("resolved locator but no next hop known, dropping waiting packets")
		return
	}
	for _, waiting := range record.WaitingPackets {
		waiting.Header.Dst.Loc = destinationLocator
		h.send(waiting, nextHopID, false)
	}
}

func (h *Handler) forwardReplyWithinMyLocator(pkt codec.Packet) {
	nextHop, ok := h.table.NextHopForLocalNode(pkt.Header.Dst.ID)
	if !ok {
		h.lgr.Info("reply target unknown in my locator, dropping")
		return
	}
	h.send(pkt, nextHop, true)
}

func (h *Handler) forwardReplyToOtherLocator(pkt codec.Packet, rep codec.LocatorRRep) {
	hopList := rep.RouteList.Locators
	idx := indexOfLocator(hopList, h.myAddr.Loc)
	if idx < 0 {
		h.lgr.Info("my locator not on reply path, dropping")
		return
	}
	var predecessor domain.Locator
	if idx == 0 {
		predecessor = pkt.Header.Dst.Loc
	} else {
		predecessor = hopList[idx-1]
	}
	nextHop, ok := h.table.NextHopForLocator(predecessor)
	if !ok {
		h.lgr.Info("no next hop toward predecessor locator, dropping reply")
		return
	}
	h.send(pkt, nextHop, true)
}

// Maintenance ages outstanding requests, retries those due, and gives up on
// (dropping any buffered packets for) those that exhaust their retries.
func (h *Handler) Maintenance() {
	h.requests.AgeRecords()

	due := h.requests.DestinationsOlderThan(ageUntilRetry)
	var expired []domain.ID
	for _, dest := range due {
		record, ok := h.requests.Get(dest)
		if !ok {
			continue
		}
		if record.NumAttempts >= maxRetries {
			h.lgr.Info("giving up on route discovery", logger.F("destination", dest.String()))
			expired = append(expired, dest)
			continue
		}
		requestID, ok := h.fanOutRequest(dest)
		if !ok {
			continue
		}
		h.requests.RecordRetriedRequest(dest, requestID)
	}
	for _, dest := range expired {
		h.requests.Remove(dest)
	}
}

// AddExternalPathsToForwardingTable layers every cached path's derived
// NH_ext entry into the forwarding table, called after a topology
// recompute so reactive routes survive it.
func (h *Handler) AddExternalPathsToForwardingTable() {
	for destLocator, mainPath := range h.pathCache.Destinations() {
		if len(mainPath) == 0 {
			continue
		}
		if nextHopID, ok := h.table.NextHopForLocator(mainPath[0]); ok {
			h.table.AddExternalEntry(destLocator, nextHopID)
		}
	}
}
