package kerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetail_WrapsSentinelPreservingIs(t *testing.T) {
	err := Detail(ErrLeaderNotAvailable, "partition orders-3")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLeaderNotAvailable))
	require.Equal(t, "leader not available: partition orders-3", err.Error())
}

func TestIsRetriable(t *testing.T) {
	require.True(t, IsRetriable(ErrLeaderNotAvailable))
	require.True(t, IsRetriable(ErrReplicaNotAvailable))
	require.False(t, IsRetriable(ErrConfiguration))
	require.False(t, IsRetriable(ErrIllegalState))
	require.False(t, IsRetriable(fmt.Errorf("plain error")))
}

func TestIsRetriable_ThroughWrappedDetail(t *testing.T) {
	wrapped := Detail(ErrReplicaNotAvailable, "orders-3 replica 2")
	require.True(t, IsRetriable(wrapped))

	wrapped = Detail(ErrTopicAlreadyExists, "orders")
	require.False(t, IsRetriable(wrapped))
}

func TestSentinels_HaveDistinctCodes(t *testing.T) {
	sentinels := []Error{
		ErrConfiguration, ErrElectionNotNeeded, ErrNoReplicaOnline,
		ErrStateChangeFailed, ErrTopicAlreadyExists, ErrAlreadyMarkedForDeletion,
		ErrLeaderNotAvailable, ErrReplicaNotAvailable, ErrIllegalState,
	}
	seen := make(map[int16]bool)
	for _, s := range sentinels {
		require.False(t, seen[s.Code()], "duplicate code %d", s.Code())
		seen[s.Code()] = true
	}
}

func TestAs_StopsAtNonUnwrappableError(t *testing.T) {
	require.False(t, IsRetriable(errors.New("opaque")))
}
