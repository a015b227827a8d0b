// Package kadm implements the two pure CORE algorithms — replica placement
// and partition leader selection — plus the Admin handle that drives them
// against a coordination store. Naming follows the franz-go lineage's own
// "kadm" (Kafka admin) package convention.
package kadm

// BrokerMetadata identifies one broker. Identity is ID; two BrokerMetadata
// values with the same ID are indistinguishable regardless of Rack.
type BrokerMetadata struct {
	ID   int32
	Rack *string
}

// PartitionKey identifies one partition of one topic.
type PartitionKey struct {
	Topic     string
	Partition int32
}

// Assignment maps partition id to its ordered replica list; the first entry
// is the preferred replica (the default leader).
type Assignment map[int32][]int32

// LeaderAndIsr is the leadership/ISR state of one partition.
type LeaderAndIsr struct {
	Leader      int32
	LeaderEpoch int32
	ISR         []int32
	ZKVersion   int32
}

// ClusterState is the read-only controller view the selector operates over.
type ClusterState struct {
	LiveBrokers             map[int32]bool
	ShuttingDown            map[int32]bool
	UncleanElectionsEnabled map[string]bool // keyed by topic
}

// IsLive reports whether id is currently a live broker.
func (c *ClusterState) IsLive(id int32) bool { return c.LiveBrokers != nil && c.LiveBrokers[id] }

// IsShuttingDown reports whether id is mid controlled-shutdown.
func (c *ClusterState) IsShuttingDown(id int32) bool {
	return c.ShuttingDown != nil && c.ShuttingDown[id]
}

// UncleanAllowed reports whether unclean leader election is permitted for
// topic.
func (c *ClusterState) UncleanAllowed(topic string) bool {
	return c.UncleanElectionsEnabled != nil && c.UncleanElectionsEnabled[topic]
}

func contains(xs []int32, x int32) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func intersect(a []int32, bset map[int32]bool) []int32 {
	out := make([]int32, 0, len(a))
	for _, v := range a {
		if bset[v] {
			out = append(out, v)
		}
	}
	return out
}

func subtract(a []int32, bset map[int32]bool) []int32 {
	out := make([]int32, 0, len(a))
	for _, v := range a {
		if !bset[v] {
			out = append(out, v)
		}
	}
	return out
}

func toSet(xs []int32) map[int32]bool {
	m := make(map[int32]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
