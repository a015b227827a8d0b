package kgo

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pulsewire/kgo/pkg/kwire"
	"github.com/stretchr/testify/require"
)

// fakeBroker reads one framed request (size|apiKey|apiVersion|corrID|
// clientIDLen|clientID|body) from conn and, for each, asks respond how to
// answer: a nil body with answer=false simulates a dropped/no-response
// request; otherwise it writes back a framed response (size|corrID|body).
func fakeBroker(t *testing.T, conn net.Conn, respond func(reqNum int, corrID int32) (body []byte, answer bool)) {
	t.Helper()
	go func() {
		defer conn.Close()
		reqNum := 0
		for {
			sizeBuf := make([]byte, 4)
			if _, err := io.ReadFull(conn, sizeBuf); err != nil {
				return
			}
			size := binary.BigEndian.Uint32(sizeBuf)
			body := make([]byte, size)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
			// Request framing (see wire.go writeRequest): apiKey(2) |
			// apiVersion(2) | corrID(4) | clientIDLen(4) | clientID | body.
			corrID := int32(binary.BigEndian.Uint32(body[4:8]))

			respBody, answer := respond(reqNum, corrID)
			reqNum++
			if !answer {
				continue
			}
			frame := make([]byte, 0, 8+len(respBody))
			frame = appendInt32(frame, int32(4+len(respBody)))
			frame = appendInt32(frame, corrID)
			frame = append(frame, respBody...)
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()
}

func pipeDial(t *testing.T, respond func(reqNum int, corrID int32) (body []byte, answer bool)) DialFn {
	return func(ctx context.Context, node Node) (net.Conn, error) {
		client, server := net.Pipe()
		fakeBroker(t, server, respond)
		return client, nil
	}
}

type fakeReq struct{ payload string }

func (fakeReq) Key() int16                  { return 99 }
func (f fakeReq) AppendTo(dst []byte) []byte { return append(dst, f.payload...) }

func TestNetworkClient_ConnectThenReady(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(int, int32) ([]byte, bool) { return nil, false })),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})

	now := time.Now()
	require.False(t, nc.Ready(1, now))

	_, err := nc.Poll(1000, now)
	require.NoError(t, err)

	require.True(t, nc.Ready(1, now))
}

func TestNetworkClient_SendAndReceive(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(reqNum int, corrID int32) ([]byte, bool) {
			return []byte("pong"), true
		})),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})

	now := time.Now()
	require.False(t, nc.Ready(1, now))
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)
	require.True(t, nc.Ready(1, now))

	var gotRaw []byte
	require.NoError(t, nc.Send(1, fakeReq{"ping"}, true, now, func(raw []byte, disconnected bool, err error) {
		gotRaw = raw
	}))

	var resps []ClientResponse
	for i := 0; i < 20 && len(resps) == 0; i++ {
		var err error
		resps, err = nc.Poll(1000, now)
		require.NoError(t, err)
	}
	require.Len(t, resps, 1)
	require.Equal(t, "pong", string(resps[0].Raw))
	require.Equal(t, "pong", string(gotRaw))
}

func TestNetworkClient_InFlightBound(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(int, int32) ([]byte, bool) { return nil, false })),
		WithMaxInFlightPerConnection(1),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})
	now := time.Now()
	nc.Ready(1, now)
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)

	require.NoError(t, nc.Send(1, fakeReq{"a"}, false, now, nil))
	require.False(t, nc.IsReady(1, now))
	err = nc.Send(1, fakeReq{"b"}, false, now, nil)
	require.Error(t, err)
}

func TestNetworkClient_Disconnect_DrainsInFlight(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(int, int32) ([]byte, bool) { return nil, false })),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})
	now := time.Now()
	nc.Ready(1, now)
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)

	var gotErr error
	var gotDisconnected bool
	require.NoError(t, nc.Send(1, fakeReq{"a"}, true, now, func(raw []byte, disconnected bool, err error) {
		gotErr = err
		gotDisconnected = disconnected
	}))

	nc.Close(1)
	resps, err := nc.Poll(1000, now)
	require.NoError(t, err)
	require.NotEmpty(t, resps)
	require.True(t, gotDisconnected)
	require.Error(t, gotErr)
}

func TestNetworkClient_LeastLoadedNode_PrefersIdleConnected(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(int, int32) ([]byte, bool) { return nil, false })),
		WithSeededRandom(1),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "a", Port: 1})
	nc.AddNode(Node{ID: 2, Host: "b", Port: 2})

	now := time.Now()
	nc.Ready(1, now)
	nc.Ready(2, now)
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)

	require.NoError(t, nc.Send(1, fakeReq{"a"}, false, now, nil))

	node, ok := nc.LeastLoadedNode(now)
	require.True(t, ok)
	require.Equal(t, int32(2), node.ID)
}

func TestNetworkClient_RequestTimeout_ClosesAndReportsDisconnect(t *testing.T) {
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(int, int32) ([]byte, bool) { return nil, false })),
		WithRequestTimeout(50*time.Millisecond),
		WithCodec(kwire.CodecNone),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})
	now := time.Now()
	nc.Ready(1, now)
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)

	require.NoError(t, nc.Send(1, fakeReq{"a"}, true, now, nil))

	later := now.Add(100 * time.Millisecond)
	resps, err := nc.Poll(10, later)
	require.NoError(t, err)

	var found bool
	for _, r := range resps {
		if r.Disconnected {
			found = true
		}
	}
	require.True(t, found)
}

// TestNetworkClient_SnappyCodec_RoundTrips proves the codec wiring added to
// writeRequest/Poll's completed-receive path actually compresses and
// decompresses, rather than just carrying Config.codec around unused: the
// fake broker here compresses its canned response with the same codec the
// client is configured for, mirroring a real peer speaking the same codec.
func TestNetworkClient_SnappyCodec_RoundTrips(t *testing.T) {
	want := []byte("pong, but compressed this time")
	nc := NewNetworkClient(
		WithDialFn(pipeDial(t, func(reqNum int, corrID int32) ([]byte, bool) {
			compressed, err := kwire.Compress(kwire.CodecSnappy, nil, want)
			require.NoError(t, err)
			return compressed, true
		})),
		WithCodec(kwire.CodecSnappy),
	)
	nc.AddNode(Node{ID: 1, Host: "x", Port: 1})

	now := time.Now()
	require.False(t, nc.Ready(1, now))
	_, err := nc.Poll(1000, now)
	require.NoError(t, err)
	require.True(t, nc.Ready(1, now))

	require.NoError(t, nc.Send(1, fakeReq{"ping"}, true, now, nil))

	var resps []ClientResponse
	for i := 0; i < 20 && len(resps) == 0; i++ {
		resps, err = nc.Poll(1000, now)
		require.NoError(t, err)
	}
	require.Len(t, resps, 1)
	require.Equal(t, want, resps[0].Raw)
}
