package kadm

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func noRackBrokers(n int) []BrokerMetadata {
	out := make([]BrokerMetadata, n)
	for i := range out {
		out[i] = BrokerMetadata{ID: int32(i)}
	}
	return out
}

func rack(s string) *string { return &s }

func TestAssignRackUnaware_Deterministic(t *testing.T) {
	brokers := noRackBrokers(5)

	a1, err := Assign(brokers, 10, 3, 0, 0, nil)
	require.NoError(t, err)
	a2, err := Assign(brokers, 10, 3, 0, 0, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(a1, a2); diff != "" {
		t.Fatalf("Assign is not deterministic for fixed start/shift (-a1 +a2):\n%s", diff)
	}
}

func TestAssignRackUnaware_ExactTable(t *testing.T) {
	brokers := noRackBrokers(5)
	got, err := Assign(brokers, 10, 3, 0, 0, nil)
	require.NoError(t, err)

	wantFirst := []int32{0, 1, 2, 3, 4, 0, 1, 2, 3, 4}
	wantSecond := []int32{1, 2, 3, 4, 0, 2, 3, 4, 0, 1}

	for p := 0; p < 10; p++ {
		replicas := got[int32(p)]
		require.Len(t, replicas, 3)
		require.Equalf(t, wantFirst[p], replicas[0], "partition %d first replica", p)
		require.Equalf(t, wantSecond[p], replicas[1], "partition %d second replica", p)
	}
}

func TestAssignRackUnaware_Invariants(t *testing.T) {
	brokers := noRackBrokers(7)
	got, err := Assign(brokers, 50, 3, -1, -1, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.Len(t, got, 50)
	for p, replicas := range got {
		require.Lenf(t, replicas, 3, "partition %d", p)
		seen := map[int32]bool{}
		for _, r := range replicas {
			require.Falsef(t, seen[r], "partition %d has duplicate replica %d", p, r)
			seen[r] = true
		}
	}
}

func TestAssignRackAware_EveryRackRepresented(t *testing.T) {
	brokers := []BrokerMetadata{
		{ID: 0, Rack: rack("r1")},
		{ID: 1, Rack: rack("r3")},
		{ID: 2, Rack: rack("r3")},
		{ID: 3, Rack: rack("r2")},
		{ID: 4, Rack: rack("r2")},
		{ID: 5, Rack: rack("r1")},
	}
	rackOf := map[int32]string{0: "r1", 1: "r3", 2: "r3", 3: "r2", 4: "r2", 5: "r1"}

	got, err := Assign(brokers, 6, 3, 0, 0, nil)
	require.NoError(t, err)

	for p, replicas := range got {
		racks := map[string]bool{}
		for _, r := range replicas {
			racks[rackOf[r]] = true
		}
		require.Lenf(t, racks, 3, "partition %d should touch all 3 racks, got replicas %v", p, replicas)
	}
}

func TestAssignRackAware_NoSharedRackWhenRFBelowRackCount(t *testing.T) {
	brokers := []BrokerMetadata{
		{ID: 0, Rack: rack("r1")},
		{ID: 1, Rack: rack("r2")},
		{ID: 2, Rack: rack("r3")},
		{ID: 3, Rack: rack("r1")},
		{ID: 4, Rack: rack("r2")},
		{ID: 5, Rack: rack("r3")},
	}
	rackOf := map[int32]string{0: "r1", 1: "r2", 2: "r3", 3: "r1", 4: "r2", 5: "r3"}

	got, err := Assign(brokers, 12, 2, -1, -1, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	for p, replicas := range got {
		racks := map[string]bool{}
		for _, r := range replicas {
			require.Falsef(t, racks[rackOf[r]], "partition %d has two replicas on rack %s", p, rackOf[r])
			racks[rackOf[r]] = true
		}
	}
}

func TestAssignMixedRacks_IsConfigurationError(t *testing.T) {
	brokers := []BrokerMetadata{
		{ID: 0, Rack: rack("r1")},
		{ID: 1},
	}
	_, err := Assign(brokers, 1, 1, 0, 0, nil)
	require.Error(t, err)
}

func TestAssignRFExceedsBrokers(t *testing.T) {
	_, err := Assign(noRackBrokers(2), 1, 3, 0, 0, nil)
	require.Error(t, err)
}

func TestAddPartitions_PreservesReplicationFactor(t *testing.T) {
	brokers := noRackBrokers(5)
	base, err := Assign(brokers, 4, 3, 0, 0, nil)
	require.NoError(t, err)

	extended, err := AddPartitions(brokers, base, 3, nil)
	require.NoError(t, err)
	require.Len(t, extended, 7)

	for p := 0; p < 7; p++ {
		replicas := extended[int32(p)]
		require.Len(t, replicas, 3)
		seen := map[int32]bool{}
		for _, r := range replicas {
			require.False(t, seen[r])
			seen[r] = true
		}
	}
	for p := 0; p < 4; p++ {
		require.Equal(t, base[int32(p)], extended[int32(p)])
	}
}

func TestAssignBalance(t *testing.T) {
	brokers := noRackBrokers(4)
	got, err := Assign(brokers, 40, 2, -1, -1, rand.New(rand.NewSource(99)))
	require.NoError(t, err)

	leaderCount := map[int32]int{}
	replicaCount := map[int32]int{}
	for _, replicas := range got {
		leaderCount[replicas[0]]++
		for _, r := range replicas {
			replicaCount[r]++
		}
	}
	for id, c := range leaderCount {
		require.InDeltaf(t, 10, c, 1, "broker %d leader count", id)
	}
	for id, c := range replicaCount {
		require.InDeltaf(t, 20, c, 1, "broker %d replica count", id)
	}
}
