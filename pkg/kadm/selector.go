package kadm

import (
	"github.com/pulsewire/kgo/pkg/kerr"
)

// SelectorKind tags the five leader-selection policies (spec §4.B), the
// "inheritance... collapses to a tagged variant over five cases" decision
// from §9.
type SelectorKind int8

const (
	SelectorOffline SelectorKind = iota
	SelectorReassigned
	SelectorPreferred
	SelectorControlledShutdown
	SelectorNoOp
)

// Result is the outcome of a successful selection: the new leader/ISR state
// and the set of brokers to notify.
type Result struct {
	New    LeaderAndIsr
	Notify []int32
}

// Select dispatches to the policy named by kind. Callers that already know
// which policy applies (controller code reacting to a specific event) may
// call the Select* functions directly instead.
//
// topic is only consulted by the Offline case, which must route through
// SelectOfflineForTopic rather than the bare SelectOffline so a topic with
// unclean elections disabled still fails closed on an empty live ISR
// (spec §4.B.1 bullet 2).
func Select(kind SelectorKind, topic string, cluster *ClusterState, assignedReplicas []int32, current LeaderAndIsr, extra SelectExtra) (Result, error) {
	switch kind {
	case SelectorOffline:
		return SelectOfflineForTopic(cluster, topic, assignedReplicas, current)
	case SelectorReassigned:
		return SelectReassigned(cluster, current, extra.Target)
	case SelectorPreferred:
		return SelectPreferred(cluster, assignedReplicas, current)
	case SelectorControlledShutdown:
		return SelectControlledShutdown(cluster, assignedReplicas, current)
	case SelectorNoOp:
		return SelectNoOp(assignedReplicas, current), nil
	default:
		return Result{}, kerr.Detail(kerr.ErrConfiguration, "unknown selector kind")
	}
}

// SelectExtra carries the one piece of context only the Reassigned policy
// needs, kept out of the common signature the other four share.
type SelectExtra struct {
	Target []int32
}

func bump(cur LeaderAndIsr, leader int32, isr []int32) LeaderAndIsr {
	return LeaderAndIsr{
		Leader:      leader,
		LeaderEpoch: cur.LeaderEpoch + 1,
		ISR:         isr,
		ZKVersion:   cur.ZKVersion + 1,
	}
}

// SelectOffline implements spec §4.B variant 1: the previous leader died.
func SelectOffline(cluster *ClusterState, assignedReplicas []int32, current LeaderAndIsr) (Result, error) {
	if len(assignedReplicas) == 0 {
		return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "no assigned replicas")
	}

	liveSet := cluster.LiveBrokers
	liveAR := intersect(assignedReplicas, liveSet)
	liveISR := intersect(current.ISR, liveSet)

	if len(liveISR) > 0 {
		newLeader, ok := firstIn(assignedReplicas, toSet(liveISR))
		if !ok {
			return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "no assigned replica found in live ISR")
		}
		return Result{New: bump(current, newLeader, liveISR), Notify: liveAR}, nil
	}

	if len(liveAR) == 0 {
		return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "no live replica available")
	}

	newLeader := liveAR[0]
	return Result{New: bump(current, newLeader, []int32{newLeader}), Notify: liveAR}, nil
}

// SelectOfflineForTopic is SelectOffline with the topic's unclean-election
// flag consulted before taking the data-loss branch, matching the full
// policy described in spec §4.B.1 bullet 2. Split out from SelectOffline so
// the common case (ISR non-empty, no unclean decision needed) stays a pure
// function of replica state alone.
func SelectOfflineForTopic(cluster *ClusterState, topic string, assignedReplicas []int32, current LeaderAndIsr) (Result, error) {
	if len(assignedReplicas) == 0 {
		return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "no assigned replicas")
	}
	liveISR := intersect(current.ISR, cluster.LiveBrokers)
	if len(liveISR) > 0 {
		return SelectOffline(cluster, assignedReplicas, current)
	}
	if !cluster.UncleanAllowed(topic) {
		return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "unclean election disabled and ISR is empty")
	}
	return SelectOffline(cluster, assignedReplicas, current)
}

// SelectReassigned implements spec §4.B variant 2.
func SelectReassigned(cluster *ClusterState, current LeaderAndIsr, target []int32) (Result, error) {
	if len(target) == 0 {
		return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "empty reassignment")
	}
	isrSet := toSet(current.ISR)
	for _, candidate := range target {
		if cluster.IsLive(candidate) && isrSet[candidate] {
			return Result{New: bump(current, candidate, current.ISR), Notify: target}, nil
		}
	}
	return Result{}, kerr.Detail(kerr.ErrNoReplicaOnline, "none in ISR")
}

// SelectPreferred implements spec §4.B variant 3.
func SelectPreferred(cluster *ClusterState, assignedReplicas []int32, current LeaderAndIsr) (Result, error) {
	if len(assignedReplicas) == 0 {
		return Result{}, kerr.Detail(kerr.ErrStateChangeFailed, "no assigned replicas")
	}
	preferred := assignedReplicas[0]
	if preferred == current.Leader {
		return Result{}, kerr.ErrElectionNotNeeded
	}
	if !cluster.IsLive(preferred) || !contains(current.ISR, preferred) {
		return Result{}, kerr.Detail(kerr.ErrStateChangeFailed, "preferred replica not alive or not in ISR")
	}
	return Result{New: bump(current, preferred, current.ISR), Notify: assignedReplicas}, nil
}

// SelectControlledShutdown implements spec §4.B variant 4.
func SelectControlledShutdown(cluster *ClusterState, assignedReplicas []int32, current LeaderAndIsr) (Result, error) {
	newISR := subtract(current.ISR, cluster.ShuttingDown)
	eligible := make(map[int32]bool, len(assignedReplicas))
	for _, r := range assignedReplicas {
		if cluster.IsLive(r) || cluster.IsShuttingDown(r) {
			eligible[r] = true
		}
	}
	liveAR := make([]int32, 0, len(assignedReplicas))
	for _, r := range assignedReplicas {
		if eligible[r] {
			liveAR = append(liveAR, r)
		}
	}
	newLeader, ok := firstIn(liveAR, toSet(newISR))
	if !ok {
		return Result{}, kerr.Detail(kerr.ErrStateChangeFailed, "no eligible leader remains in ISR after shutdown")
	}
	return Result{New: bump(current, newLeader, newISR), Notify: liveAR}, nil
}

// SelectNoOp implements spec §4.B variant 5: return current state
// unchanged, with the assigned-replica set as the notify set.
func SelectNoOp(assignedReplicas []int32, current LeaderAndIsr) Result {
	return Result{New: current, Notify: assignedReplicas}
}

func firstIn(ordered []int32, set map[int32]bool) (int32, bool) {
	for _, v := range ordered {
		if set[v] {
			return v, true
		}
	}
	return 0, false
}
