package kgo

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pulsewire/kgo/pkg/kmsg"
	"github.com/pulsewire/kgo/pkg/kwire"
)

type eventKind int8

const (
	evConnResult eventKind = iota
	evWriteResult
	evReadResult
)

// connEvent is the one shape every connection-affecting goroutine is
// allowed to push onto the client's shared channel. Poll is the only
// reader; nothing else ever touches nodeConn state directly, which is what
// makes the client's mutation model single-threaded despite real sockets
// being serviced by background goroutines (SPEC_FULL.md §4.C.1).
type connEvent struct {
	kind     eventKind
	nodeID   int32
	corrID   int32
	conn     net.Conn
	raw      []byte
	n        int
	duration time.Duration
	expects  bool
	err      error
}

// ClientResponse is one completed (real or synthetic) response delivered
// by Poll.
type ClientResponse struct {
	NodeID        int32
	CorrelationID int32
	Raw           []byte
	Disconnected  bool
	Err           error
}

// NetworkClient is the single-threaded cooperative engine of spec §4.C.
// Exactly one goroutine may call Ready/IsReady/Send/Poll/Close; Wakeup is
// the sole exception and may be called from any goroutine.
type NetworkClient struct {
	cfg   *Config
	nodes map[int32]*nodeConn

	events chan connEvent
	wake   chan struct{}

	corrID int32

	deadlines *kwire.DeadlineSet
	metadata  *MetadataUpdater

	closed int32
}

// NewNetworkClient constructs a client with no nodes yet known; AddNode
// seeds the bootstrap set (spec §3 "created at client construction from
// bootstrap nodes").
func NewNetworkClient(opts ...Opt) *NetworkClient {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.rng == nil {
		cfg.rng = newRandSource(time.Now().UnixNano())
	}
	nc := &NetworkClient{
		cfg:       cfg,
		nodes:     make(map[int32]*nodeConn),
		events:    make(chan connEvent, 256),
		wake:      make(chan struct{}, 1),
		deadlines: kwire.NewDeadlineSet(),
	}
	nc.metadata = newMetadataUpdater(cfg, nc)
	return nc
}

// AddNode registers node as known, in StateDisconnected. A zero Node is
// ignored.
func (nc *NetworkClient) AddNode(node Node) {
	if node.Empty() {
		return
	}
	if _, ok := nc.nodes[node.ID]; ok {
		return
	}
	nc.nodes[node.ID] = newNodeConn(node.ID, node)
}

// Nodes returns every known node, for the metadata updater's fetchNodes.
func (nc *NetworkClient) Nodes() []Node {
	out := make([]Node, 0, len(nc.nodes))
	for _, c := range nc.nodes {
		out = append(out, c.node)
	}
	return out
}

// Ready implements spec §4.C "ready(node, now)": returns whether node can
// be sent to right now, triggering a non-blocking connect attempt if not.
func (nc *NetworkClient) Ready(nodeID int32, now time.Time) bool {
	c, ok := nc.nodes[nodeID]
	if !ok {
		return false
	}
	if c.canSend(nc.cfg.maxInFlightPerConnection) {
		return true
	}
	if c.canConnect(now) {
		nc.initiateConnect(c, now)
	}
	return false
}

// IsReady implements spec §4.C "isReady(node, now)": ready, and metadata is
// not currently due for a priority refresh.
func (nc *NetworkClient) IsReady(nodeID int32, now time.Time) bool {
	if nc.metadata.needUpdate {
		return false
	}
	c, ok := nc.nodes[nodeID]
	if !ok {
		return false
	}
	return c.canSend(nc.cfg.maxInFlightPerConnection)
}

// Send implements spec §4.C "send(request, now)".
func (nc *NetworkClient) Send(nodeID int32, req kmsg.Request, expectsResponse bool, now time.Time, promise func(raw []byte, disconnected bool, err error)) error {
	return nc.sendInternal(nodeID, req, expectsResponse, false, now, promise)
}

func (nc *NetworkClient) sendInternal(nodeID int32, req kmsg.Request, expectsResponse, internal bool, now time.Time, promise func(raw []byte, disconnected bool, err error)) error {
	if atomic.LoadInt32(&nc.closed) == 1 {
		return ErrClientClosed
	}
	c, ok := nc.nodes[nodeID]
	if !ok {
		return ErrUnknownNode
	}
	if !c.canSend(nc.cfg.maxInFlightPerConnection) {
		return errNotReady(c.node)
	}

	corrID := nc.nextCorrID()
	frame, err := writeRequest(nc.cfg.clientID, corrID, req, nc.cfg.codec)
	if err != nil {
		return err
	}

	entry := &inFlightRequest{
		corrID:          corrID,
		sentAt:          now,
		expectsResponse: expectsResponse,
		internal:        internal,
		promise:         promise,
	}
	c.inflight = append(c.inflight, entry)
	nc.deadlines.Add(nodeID, corrID, now.Add(nc.cfg.requestTimeout))

	select {
	case c.sendCh <- outboundFrame{corrID: corrID, bytes: frame, expectsResponse: expectsResponse}:
	default:
		// sendCh is sized generously (64) relative to maxInFlightPerConnection;
		// a full channel here means the write goroutine has wedged, which we
		// treat the same as a write failure.
		nc.forceDisconnect(c, ErrConnDead)
	}
	return nil
}

func (nc *NetworkClient) nextCorrID() int32 {
	nc.corrID++
	return nc.corrID
}

// LeastLoadedNode implements spec §4.C "leastLoadedNode(now)".
func (nc *NetworkClient) LeastLoadedNode(now time.Time) (Node, bool) {
	if len(nc.nodes) == 0 {
		return Node{}, false
	}
	ids := make([]int32, 0, len(nc.nodes))
	for id := range nc.nodes {
		ids = append(ids, id)
	}
	start := nc.cfg.rng.Intn(len(ids))

	bestIdx := -1
	bestLoad := -1
	for i := 0; i < len(ids); i++ {
		id := ids[(start+i)%len(ids)]
		c := nc.nodes[id]
		if c.blackedOut(now) {
			continue
		}
		if c.state == StateConnected && len(c.inflight) == 0 {
			return c.node, true
		}
		if bestIdx == -1 || len(c.inflight) < bestLoad {
			bestIdx = int(id)
			bestLoad = len(c.inflight)
		}
	}
	if bestIdx == -1 {
		return Node{}, false
	}
	return nc.nodes[int32(bestIdx)].node, true
}

// Close implements spec §4.C "close(node)".
func (nc *NetworkClient) Close(nodeID int32) {
	c, ok := nc.nodes[nodeID]
	if !ok {
		return
	}
	nc.disconnect(c, nil)
}

// CloseAll tears down every connection and marks the client closed; no
// further Send/Poll calls are serviced.
func (nc *NetworkClient) CloseAll() {
	atomic.StoreInt32(&nc.closed, 1)
	for _, c := range nc.nodes {
		nc.disconnect(c, ErrClientClosed)
	}
}

// Wakeup causes a blocked Poll call to return promptly. Safe to call from
// any goroutine.
func (nc *NetworkClient) Wakeup() {
	select {
	case nc.wake <- struct{}{}:
	default:
	}
}

func (nc *NetworkClient) initiateConnect(c *nodeConn, now time.Time) {
	c.state = StateConnecting
	go func() {
		start := time.Now()
		conn, err := nc.cfg.dial(context.Background(), c.node)
		nc.cfg.fireConnect(c.node, time.Since(start), err)
		nc.events <- connEvent{kind: evConnResult, nodeID: c.id, conn: conn, err: err}
	}()
}

func (nc *NetworkClient) forceDisconnect(c *nodeConn, err error) {
	nc.disconnect(c, err)
}

func (nc *NetworkClient) disconnect(c *nodeConn, err error) {
	wasConnected := c.state != StateDisconnected
	c.teardown()
	c.state = StateDisconnected
	c.blackedOutUntil = time.Now().Add(nc.cfg.reconnectBackoff)
	for _, entry := range c.drain() {
		nc.deadlines.Remove(entry.corrID)
		if nc.metadata.maybeHandleDisconnection(entry) {
			continue
		}
		if entry.promise != nil {
			entry.promise(nil, true, ErrConnDead)
		}
	}
	if wasConnected {
		nc.cfg.fireDisconnect(c.node, err)
	}
	nc.metadata.requestUpdate()
}

// Poll implements spec §4.C's poll step: drains accumulated connection
// events (ordered sends, receives, disconnects, connects, then timeouts),
// runs one metadata-update step first (priority over user sends), and
// returns the batch of user-visible responses.
func (nc *NetworkClient) Poll(timeoutMs int64, now time.Time) ([]ClientResponse, error) {
	if atomic.LoadInt32(&nc.closed) == 1 {
		return nil, ErrClientClosed
	}

	metaDelay := nc.metadata.maybeUpdate(now)
	clipped := timeoutMs
	if metaDelay < clipped {
		clipped = metaDelay
	}
	if clipped < 0 {
		clipped = 0
	}

	var sends, recvs, conns []connEvent
	var disconns []disconnEvent

	timer := time.NewTimer(time.Duration(clipped) * time.Millisecond)
	defer timer.Stop()

	classify := func(ev connEvent) {
		switch ev.kind {
		case evWriteResult:
			if c, ok := nc.nodes[ev.nodeID]; ok {
				nc.cfg.fireWrite(c.node, ev.n, ev.duration, ev.err)
			}
			if ev.err != nil {
				disconns = append(disconns, disconnEvent{nodeID: ev.nodeID, err: ev.err})
			} else {
				sends = append(sends, ev)
			}
		case evReadResult:
			if c, ok := nc.nodes[ev.nodeID]; ok {
				nc.cfg.fireRead(c.node, ev.n, ev.duration, ev.err)
			}
			if ev.err != nil {
				disconns = append(disconns, disconnEvent{nodeID: ev.nodeID, err: ev.err})
			} else {
				recvs = append(recvs, ev)
			}
		case evConnResult:
			if ev.err != nil {
				disconns = append(disconns, disconnEvent{nodeID: ev.nodeID, err: ev.err})
			} else {
				conns = append(conns, ev)
			}
		}
	}

	// Block for the first event (or wake/timeout) so Poll can legitimately
	// wait up to clipped ms when there is nothing to do yet.
	select {
	case ev := <-nc.events:
		classify(ev)
	case <-nc.wake:
	case <-timer.C:
	}

	// Drain whatever else is already queued without waiting further,
	// reproducing "perform one I/O step" as a single bounded batch rather
	// than trickling events out one poll call at a time.
drain:
	for {
		select {
		case ev := <-nc.events:
			classify(ev)
		default:
			break drain
		}
	}

	var out []ClientResponse

	// 3a. completed sends (no-response requests retire here).
	for _, ev := range sends {
		c, ok := nc.nodes[ev.nodeID]
		if !ok {
			continue
		}
		if ev.expects {
			continue
		}
		entry, ok := c.popHeadMatching(ev.corrID)
		if !ok {
			continue
		}
		nc.deadlines.Remove(entry.corrID)
		if nc.metadata.maybeHandleCompletedSend(entry) {
			continue
		}
		resp := ClientResponse{NodeID: ev.nodeID, CorrelationID: entry.corrID}
		if entry.promise != nil {
			entry.promise(nil, false, nil)
		}
		out = append(out, resp)
	}

	// 3b. completed receives.
	for _, ev := range recvs {
		c, ok := nc.nodes[ev.nodeID]
		if !ok {
			continue
		}
		entry, ok := c.popHeadMatching(ev.corrID)
		if !ok {
			// FIFO violation: the wire is contractually ordered per
			// connection, so a mismatch here is an unrecoverable protocol
			// error (spec §4.C "Correlation invariant").
			return out, errCorrelationMismatch(c.node, -1, ev.corrID)
		}
		nc.deadlines.Remove(entry.corrID)
		raw, decErr := kwire.Decompress(nc.cfg.codec, nil, ev.raw)
		if decErr != nil {
			return out, decErr
		}
		if nc.metadata.maybeHandleCompletedReceive(entry, raw, now) {
			continue
		}
		if entry.promise != nil {
			entry.promise(raw, false, nil)
		}
		out = append(out, ClientResponse{NodeID: ev.nodeID, CorrelationID: entry.corrID, Raw: raw})
	}

	// 3c. disconnections.
	for _, ev := range disconns {
		c, ok := nc.nodes[ev.nodeID]
		if !ok {
			continue
		}
		nc.disconnect(c, ev.err)
		out = append(out, ClientResponse{NodeID: ev.nodeID, Disconnected: true, Err: ev.err})
	}

	// 3d. connections.
	for _, ev := range conns {
		c, ok := nc.nodes[ev.nodeID]
		if !ok {
			continue
		}
		c.conn = ev.conn
		c.state = StateConnected
		c.startLoops(nc.events, nc.cfg.readBufferBytes, nc.cfg.writeBufferBytes)
	}

	// 3e. timeouts.
	expired := nc.deadlines.Expired(now)
	for _, e := range expired {
		c, ok := nc.nodes[e.NodeID]
		if !ok {
			continue
		}
		entry, ok := c.popInFlight(e.CorrelationID)
		if !ok {
			continue
		}
		if !nc.metadata.maybeHandleDisconnection(entry) && entry.promise != nil {
			entry.promise(nil, true, ErrConnDead)
		}
		nc.disconnect(c, ErrConnDead)
		if !entry.internal {
			out = append(out, ClientResponse{NodeID: e.NodeID, CorrelationID: entry.corrID, Disconnected: true, Err: ErrConnDead})
		}
	}

	return out, nil
}

type disconnEvent struct {
	nodeID int32
	err    error
}
