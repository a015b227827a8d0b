package kadm

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/pulsewire/kgo/pkg/kerr"
)

// RackAwareMode controls how Assign reacts to partial rack information,
// per spec §6.
type RackAwareMode int8

const (
	// RackAwareEnforced treats mixed rack info (some brokers tagged, some
	// not) as a configuration error.
	RackAwareEnforced RackAwareMode = iota
	// RackAwareSafe downgrades to rack-unaware placement if any broker
	// lacks a rack tag.
	RackAwareSafe
	// RackAwareDisabled ignores rack info entirely.
	RackAwareDisabled
)

// maxProbesPerReplica bounds the rack-aware candidate search per replica
// slot (spec §9, "Open question (resolved)" #1): when num_brokers isn't a
// multiple of num_racks, the shift/rack interaction can in principle stall;
// rather than loop unboundedly this caps at a small multiple of the broker
// count and reports an internal invariant violation if exceeded.
const maxProbesPerReplica = 5

// Assign computes a partition_id -> ordered replica list assignment using
// Kafka's classic shift-based algorithm (spec §4.A). A fixedStart of -1
// means "pick the start index and shift randomly"; a startPartition of -1
// means "start at partition 0". Both exist to make output deterministic for
// tests and for AddPartitions' stable continuation.
func Assign(brokers []BrokerMetadata, nPartitions int, rf int, fixedStart, startPartition int, rnd *rand.Rand) (Assignment, error) {
	if nPartitions <= 0 {
		return nil, kerr.Detail(kerr.ErrConfiguration, "n_partitions must be > 0")
	}
	if rf <= 0 {
		return nil, kerr.Detail(kerr.ErrConfiguration, "replication factor must be > 0")
	}
	if rf > len(brokers) {
		return nil, kerr.Detail(kerr.ErrConfiguration, "replication factor exceeds broker count")
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}

	rackMode, err := classifyRacks(brokers)
	if err != nil {
		return nil, err
	}

	if rackMode {
		return assignRackAware(brokers, nPartitions, rf, fixedStart, startPartition, rnd)
	}
	return assignRackUnaware(brokers, nPartitions, rf, fixedStart, startPartition, rnd)
}

// classifyRacks reports whether rack-aware placement should be used. All
// brokers tagged -> true; none tagged -> false; mixed -> error (enforced
// mode is the only mode exposed by this pure function; Admin.CreateTopic
// implements the Safe/Disabled downgrades before calling Assign).
func classifyRacks(brokers []BrokerMetadata) (bool, error) {
	tagged, untagged := 0, 0
	for _, b := range brokers {
		if b.Rack != nil {
			tagged++
		} else {
			untagged++
		}
	}
	switch {
	case tagged == 0:
		return false, nil
	case untagged == 0:
		return true, nil
	default:
		return false, kerr.Detail(kerr.ErrConfiguration, "mixed rack information across brokers")
	}
}

func assignRackUnaware(brokers []BrokerMetadata, nPartitions, rf, fixedStart, startPartition int, rnd *rand.Rand) (Assignment, error) {
	ids := brokerIDs(brokers)
	n := len(ids)

	startIndex := fixedStart
	if startIndex < 0 {
		startIndex = rnd.Intn(n)
	}
	shift := fixedStart
	if shift < 0 {
		shift = rnd.Intn(n)
	}

	from := 0
	if startPartition >= 0 {
		from = startPartition
	}

	out := make(Assignment, nPartitions)
	for p := from; p < from+nPartitions; p++ {
		if p > 0 && p%n == 0 {
			shift++
		}
		first := (p + startIndex) % n
		replicas := make([]int32, 0, rf)
		replicas = append(replicas, ids[first])
		for j := 0; j < rf-1; j++ {
			idx := (first + 1 + (shift+j)%(n-1)) % n
			replicas = append(replicas, ids[idx])
		}
		out[int32(p)] = replicas
	}
	return out, nil
}

func assignRackAware(brokers []BrokerMetadata, nPartitions, rf, fixedStart, startPartition int, rnd *rand.Rand) (Assignment, error) {
	byRack := make(map[string][]int32)
	for _, b := range brokers {
		byRack[*b.Rack] = append(byRack[*b.Rack], b.ID)
	}
	racks := make([]string, 0, len(byRack))
	for r := range byRack {
		racks = append(racks, r)
		sort.Slice(byRack[r], func(i, j int) bool { return byRack[r][i] < byRack[r][j] })
	}
	sort.Strings(racks)

	// Interleave brokers across racks in round-robin order to build the
	// candidate placement list L.
	L := make([]int32, 0, len(brokers))
	rackOf := make(map[int32]string, len(brokers))
	for {
		added := false
		for _, r := range racks {
			if len(byRack[r]) > 0 {
				id := byRack[r][0]
				byRack[r] = byRack[r][1:]
				L = append(L, id)
				rackOf[id] = r
				added = true
			}
		}
		if !added {
			break
		}
	}

	n := len(L)
	numRacks := len(racks)

	startIndex := fixedStart
	if startIndex < 0 {
		startIndex = rnd.Intn(n)
	}
	shift := fixedStart
	if shift < 0 {
		shift = rnd.Intn(n)
	}

	from := 0
	if startPartition >= 0 {
		from = startPartition
	}

	out := make(Assignment, nPartitions)
	for p := from; p < from+nPartitions; p++ {
		if p > 0 && p%n == 0 {
			shift++
		}
		first := (p + startIndex) % n
		replicas := []int32{L[first]}
		usedBrokers := map[int32]bool{L[first]: true}
		usedRacks := map[string]bool{rackOf[L[first]]: true}

		for j := 0; j < rf-1; j++ {
			base := shift*numRacks + j
			found := false
			for probe := 0; probe < maxProbesPerReplica*n; probe++ {
				idx := (first + 1 + (base+probe)%(n-1)) % n
				cand := L[idx]
				if usedBrokers[cand] {
					continue
				}
				rackFull := allRacksUsed(racks, usedRacks)
				if !rackFull && usedRacks[rackOf[cand]] {
					continue
				}
				replicas = append(replicas, cand)
				usedBrokers[cand] = true
				usedRacks[rackOf[cand]] = true
				found = true
				break
			}
			if !found {
				return nil, fmt.Errorf("kadm: internal invariant violation: rack-aware placement could not find a replica for partition %d slot %d within probe bound", p, j+1)
			}
		}
		out[int32(p)] = replicas
	}
	return out, nil
}

func allRacksUsed(racks []string, used map[string]bool) bool {
	for _, r := range racks {
		if !used[r] {
			return false
		}
	}
	return true
}

func brokerIDs(brokers []BrokerMetadata) []int32 {
	ids := make([]int32, len(brokers))
	for i, b := range brokers {
		ids[i] = b.ID
	}
	return ids
}

// AddPartitions extends an existing assignment by delta partitions,
// following spec §4.A's "Adding partitions": fixedStart is derived from the
// first broker of partition 0, and the delta continues at
// len(existing).
func AddPartitions(brokers []BrokerMetadata, existing Assignment, delta int, rnd *rand.Rand) (Assignment, error) {
	if len(existing) == 0 {
		return nil, kerr.Detail(kerr.ErrConfiguration, "existing assignment is empty")
	}
	rf := len(existing[0])
	for _, replicas := range existing {
		if len(replicas) != rf {
			return nil, kerr.Detail(kerr.ErrConfiguration, "existing assignment has inconsistent replication factor")
		}
	}

	ids := brokerIDs(brokers)
	fixedStart := indexOf(ids, existing[0][0])
	if fixedStart < 0 {
		fixedStart = 0
	}

	added, err := Assign(brokers, delta, rf, fixedStart, len(existing), rnd)
	if err != nil {
		return nil, err
	}

	out := make(Assignment, len(existing)+delta)
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range added {
		out[k] = v
	}
	return out, nil
}

func indexOf(ids []int32, id int32) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
