package kgo

import (
	"time"

	"github.com/pulsewire/kgo/pkg/kmsg"
)

// PartitionMetadata is one partition's leader/replica/ISR view as reported
// by the most recent metadata refresh.
type PartitionMetadata struct {
	Leader    int32
	Replicas  []int32
	ISR       []int32
	ErrorCode int16
}

// TopicMetadata groups a topic's partitions.
type TopicMetadata struct {
	Partitions map[int32]PartitionMetadata
	ErrorCode  int16
}

// ClusterMetadata is an immutable snapshot; a successful refresh replaces
// the updater's current snapshot wholesale rather than mutating it in
// place (spec §3).
type ClusterMetadata struct {
	Nodes  []Node
	Topics map[string]TopicMetadata
}

// MetadataUpdater owns the mutable cluster-metadata entity and the
// bookkeeping needed to decide when to refresh it (spec §4.C "Metadata
// updater"), grounded on rodaine-franz-go's metadata.go — reinterpreted
// from its goroutine+ticker+cond-var style into this poll-driven contract.
type MetadataUpdater struct {
	nc *NetworkClient // needs Ready/LeastLoadedNode/sendInternal; same package, concrete type

	needUpdate  bool
	inFlight    bool
	inFlightOn  int32

	lastSuccess time.Time
	lastNoNode  time.Time

	current   *ClusterMetadata
	listeners []func(*ClusterMetadata)
}

func newMetadataUpdater(_ *Config, nc *NetworkClient) *MetadataUpdater {
	return &MetadataUpdater{nc: nc, needUpdate: true, current: &ClusterMetadata{}}
}

// Current returns the most recent successfully-fetched snapshot.
func (m *MetadataUpdater) Current() *ClusterMetadata { return m.current }

// FetchNodes implements spec §4.C's "fetchNodes()": a snapshot of the
// currently known node list.
func (m *MetadataUpdater) FetchNodes() []Node { return m.nc.Nodes() }

// IsUpdateDue implements spec §4.C's "isUpdateDue(now)".
func (m *MetadataUpdater) IsUpdateDue(now time.Time) bool {
	return m.isUpdateDue(now, m.nc.cfg.metadataMaxAge) && !m.inFlight
}

// OnUpdate registers fn to be called after every successful refresh.
func (m *MetadataUpdater) OnUpdate(fn func(*ClusterMetadata)) {
	m.listeners = append(m.listeners, fn)
}

// requestUpdate sets the dirty flag so the next poll schedules a refresh
// (spec §4.C "requestUpdate()").
func (m *MetadataUpdater) requestUpdate() { m.needUpdate = true }

// RequestUpdate is the exported form, for callers outside this package
// that hold a *Client (e.g. after an explicit topic create) wanting a
// prompt refresh rather than waiting for the freshness deadline.
func (m *MetadataUpdater) RequestUpdate() { m.requestUpdate() }

func (m *MetadataUpdater) isUpdateDue(now time.Time, maxAge time.Duration) bool {
	return m.needUpdate || m.lastSuccess.IsZero() || now.Sub(m.lastSuccess) >= maxAge
}

// maybeUpdate implements spec §4.C's maybeUpdate(now) -> delay contract.
func (m *MetadataUpdater) maybeUpdate(now time.Time) int64 {
	cfg := m.nc.cfg

	if m.inFlight {
		return int64(cfg.metadataMaxAge / time.Millisecond)
	}

	dueDelay := int64(0)
	if !m.needUpdate && !m.lastSuccess.IsZero() {
		remaining := cfg.metadataMaxAge - now.Sub(m.lastSuccess)
		if remaining > 0 {
			dueDelay = int64(remaining / time.Millisecond)
		}
	}

	if dueDelay > 0 {
		return dueDelay
	}

	node, ok := m.nc.LeastLoadedNode(now)
	if !ok {
		m.lastNoNode = now
		return int64(cfg.metadataMinBackoff / time.Millisecond)
	}

	if m.nc.Ready(node.ID, now) {
		req := &kmsg.MetadataRequest{}
		// No promise: completed receives are routed through
		// maybeHandleCompletedReceive, and disconnects/timeouts are routed
		// through maybeHandleDisconnection — both called directly by the
		// network client, since internal entries never surface to a promise.
		err := m.nc.sendInternal(node.ID, req, true, true, now, nil)
		if err == nil {
			m.inFlight = true
			m.inFlightOn = node.ID
			return 0
		}
	}
	return int64(cfg.metadataMinBackoff / time.Millisecond)
}

// maybeHandleCompletedSend swallows the send-completion of an internal
// request (the metadata request itself never "expects no response" in this
// client, so this only matters for future internal request kinds; kept for
// symmetry with maybeHandleCompletedReceive).
func (m *MetadataUpdater) maybeHandleCompletedSend(entry *inFlightRequest) bool {
	return entry.internal
}

// maybeHandleDisconnection implements spec §4.C's maybeHandleDisconnection(req):
// when the connection carrying an in-flight internal request drops or times
// out, the request's completion is never observed through the normal
// receive path, so the updater's in-flight bookkeeping has to be cleared
// here instead — otherwise maybeUpdate would defer forever on a request
// that will never complete (spec §7 "Metadata refresh failure -> next
// attempt deferred by backoff").
func (m *MetadataUpdater) maybeHandleDisconnection(entry *inFlightRequest) bool {
	if !entry.internal {
		return false
	}
	m.inFlight = false
	m.requestUpdate()
	return true
}

// maybeHandleCompletedReceive implements spec §4.C's filter: internal
// metadata responses are intercepted here and never handed back to the
// caller.
func (m *MetadataUpdater) maybeHandleCompletedReceive(entry *inFlightRequest, raw []byte, now time.Time) bool {
	if !entry.internal {
		return false
	}
	m.inFlight = false

	var resp kmsg.MetadataResponse
	if err := resp.ReadFrom(raw); err != nil || len(resp.Brokers) == 0 {
		// Zero usable nodes: do not replace the snapshot (spec §4.C).
		return true
	}

	snapshot := &ClusterMetadata{Topics: make(map[string]TopicMetadata, len(resp.Topics))}
	for _, b := range resp.Brokers {
		snapshot.Nodes = append(snapshot.Nodes, Node{ID: b.NodeID, Host: b.Host, Port: b.Port})
	}
	for _, t := range resp.Topics {
		tm := TopicMetadata{ErrorCode: t.ErrorCode, Partitions: make(map[int32]PartitionMetadata, len(t.Partitions))}
		for _, p := range t.Partitions {
			tm.Partitions[p.Partition] = PartitionMetadata{
				Leader:    p.Leader,
				Replicas:  p.Replicas,
				ISR:       p.ISR,
				ErrorCode: p.ErrorCode,
			}
		}
		snapshot.Topics[t.Topic] = tm
	}

	m.current = snapshot
	m.needUpdate = false
	m.lastSuccess = now
	for _, fn := range m.listeners {
		fn(snapshot)
	}
	return true
}
