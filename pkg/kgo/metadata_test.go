package kgo

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pulsewire/kgo/pkg/kwire"
	"github.com/stretchr/testify/require"
)

// encodeMetadataResponse builds a wire body matching kmsg.MetadataResponse's
// ReadFrom layout, for use as a fake broker's canned reply.
func encodeMetadataResponse(t *testing.T) []byte {
	t.Helper()
	var buf []byte
	i32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf = append(buf, b[:]...)
	}
	i16 := func(v int16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v))
		buf = append(buf, b[:]...)
	}
	str := func(s string) {
		i32(int32(len(s)))
		buf = append(buf, s...)
	}

	i32(1) // one broker
	i32(7) // NodeID
	str("broker-a")
	i32(9092)
	buf = append(buf, 0) // no rack

	i32(1) // one topic
	i16(0)
	str("orders")
	i32(1) // one partition
	i16(0)
	i32(0)    // partition
	i32(7)    // leader
	i32(1)    // replicas len
	i32(7)    //   replica[0]
	i32(1)    // isr len
	i32(7)    //   isr[0]

	return buf
}

func TestMetadataUpdater_RefreshesSnapshotViaPoll(t *testing.T) {
	respBody := encodeMetadataResponse(t)
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(reqNum int, corrID int32) ([]byte, bool) {
			return respBody, true
		})),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})

	var updates int
	nc.metadata.OnUpdate(func(*ClusterMetadata) { updates++ })

	now := time.Now()
	require.False(t, nc.Ready(1, now))
	_, err := nc.Poll(1000, now) // processes the connect
	require.NoError(t, err)

	// The connection is now live and metadata is still due; repeated polls
	// let maybeUpdate issue the internal MetadataRequest and observe its
	// reply, however many poll calls the write/read rendezvous takes.
	for i := 0; i < 20 && updates == 0; i++ {
		_, err = nc.Poll(1000, now)
		require.NoError(t, err)
	}

	require.Equal(t, 1, updates)
	snap := nc.metadata.Current()
	require.Len(t, snap.Nodes, 1)
	require.Equal(t, int32(7), snap.Nodes[0].ID)
	require.Equal(t, "broker-a", snap.Nodes[0].Host)

	topic, ok := snap.Topics["orders"]
	require.True(t, ok)
	require.Equal(t, int32(7), topic.Partitions[0].Leader)
}

func TestMetadataUpdater_NoNodesAvailable_BacksOff(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(int, int32) ([]byte, bool) { return nil, false })),
		WithCodec(kwire.CodecNone),
	)
	// No nodes added at all: LeastLoadedNode has nothing to pick.
	now := time.Now()
	_, err := nc.Poll(5, now)
	require.NoError(t, err)
	require.True(t, nc.metadata.needUpdate)
}

func TestMetadataUpdater_RequestUpdateForcesRefresh(t *testing.T) {
	respBody := encodeMetadataResponse(t)
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(reqNum int, corrID int32) ([]byte, bool) {
			return respBody, true
		})),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})

	now := time.Now()
	nc.Ready(1, now)
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)
	for i := 0; i < 20 && nc.metadata.needUpdate; i++ {
		_, err = nc.Poll(1000, now)
		require.NoError(t, err)
	}
	require.False(t, nc.metadata.needUpdate)

	nc.metadata.RequestUpdate()
	require.True(t, nc.metadata.needUpdate)
}
