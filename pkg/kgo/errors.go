package kgo

import (
	"fmt"

	"github.com/pulsewire/kgo/pkg/kerr"
)

// Sentinel errors specific to the network client, grounded on the
// teacher's ErrBrokerDead/ErrConnDead/ErrCorrelationIDMismatch naming.
var (
	// ErrConnDead is returned on any in-flight request whose connection
	// was torn down before a real response arrived.
	ErrConnDead = fmt.Errorf("kgo: connection dead")

	// ErrClientClosed is returned by Send/Poll after CloseAll has been
	// called on the owning NetworkClient (Client.Close calls it).
	ErrClientClosed = fmt.Errorf("kgo: client closed")

	// ErrUnknownNode is returned when an operation names a node id the
	// client has never been told about.
	ErrUnknownNode = fmt.Errorf("kgo: unknown node")
)

// errCorrelationMismatch reports the teacher's readResponse invariant
// violation (spec §4.C "Correlation invariant"): an unrecoverable protocol
// error, wrapped under kerr.ErrIllegalState so callers can errors.Is it.
func errCorrelationMismatch(node Node, want, got int32) error {
	return kerr.Detail(kerr.ErrIllegalState,
		fmt.Sprintf("correlation id mismatch on %s: want %d got %d", node, want, got))
}

// errNotReady reports a send attempted on a node that canSendRequest
// rejected (spec §4.C "send(request, now): precondition canSendRequest...
// on violation, fail with illegal state").
func errNotReady(node Node) error {
	return kerr.Detail(kerr.ErrIllegalState, fmt.Sprintf("node %s is not ready to send", node))
}
