package kgo

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"
)

// inFlightRequest is one outstanding request on a node's FIFO pipeline
// (spec §3 "InFlightRequest").
type inFlightRequest struct {
	corrID          int32
	sentAt          time.Time
	expectsResponse bool
	internal        bool
	promise         func(raw []byte, disconnected bool, err error)
}

// nodeConn is the per-node connection state machine (spec §4.C). It
// generalizes the teacher's broker+brokerCxn pair into a single struct
// whose mutable fields (state, inflight, conn) are touched only by the
// poll-calling goroutine; writeLoop/readLoop, the only other goroutines
// that exist per live connection, never read or write those fields — they
// only shuttle bytes and push structured events onto the client's shared
// events channel, exactly the "dumb byte-shuttling goroutines" translation
// described in SPEC_FULL.md §4.C.1.
type nodeConn struct {
	id   int32
	node Node

	state           ConnState
	blackedOutUntil time.Time

	conn     net.Conn
	r        *bufio.Reader
	w        *bufio.Writer
	sendCh   chan outboundFrame
	doneCh   chan struct{}
	closeMu  sync.Once

	inflight []*inFlightRequest
}

type outboundFrame struct {
	corrID          int32
	bytes           []byte
	expectsResponse bool
}

func newNodeConn(id int32, node Node) *nodeConn {
	return &nodeConn{id: id, node: node, state: StateDisconnected}
}

func (nc *nodeConn) canSend(maxInFlight int) bool {
	return nc.state == StateConnected && len(nc.inflight) < maxInFlight
}

func (nc *nodeConn) canConnect(now time.Time) bool {
	return nc.state == StateDisconnected && !now.Before(nc.blackedOutUntil)
}

func (nc *nodeConn) blackedOut(now time.Time) bool {
	return nc.state == StateDisconnected && now.Before(nc.blackedOutUntil)
}

func (nc *nodeConn) popInFlight(corrID int32) (*inFlightRequest, bool) {
	for i, req := range nc.inflight {
		if req.corrID == corrID {
			nc.inflight = append(nc.inflight[:i], nc.inflight[i+1:]...)
			return req, true
		}
	}
	return nil, false
}

func (nc *nodeConn) popHeadMatching(corrID int32) (*inFlightRequest, bool) {
	if len(nc.inflight) == 0 {
		return nil, false
	}
	head := nc.inflight[0]
	if head.corrID != corrID {
		return nil, false
	}
	nc.inflight = nc.inflight[1:]
	return head, true
}

// drain empties the in-flight queue and returns every entry that was
// outstanding, so the caller can route each to a promise or to the
// metadata updater's disconnection bookkeeping (spec §4.C "close(node)").
func (nc *nodeConn) drain() []*inFlightRequest {
	drained := nc.inflight
	nc.inflight = nil
	return drained
}

// teardown closes the transport and signals the read/write goroutines to
// stop. Safe to call multiple times.
func (nc *nodeConn) teardown() {
	nc.closeMu.Do(func() {
		if nc.doneCh != nil {
			close(nc.doneCh)
		}
		if nc.conn != nil {
			nc.conn.Close()
		}
	})
}

// startLoops launches the write/read goroutines for a freshly established
// connection. Called only from the poll-calling goroutine, immediately
// after processing an evConnResult success event. readBufBytes/writeBufBytes
// size the buffered reader/writer wrapping the raw socket (spec §9 config
// surface), rather than reading/writing the connection unbuffered.
func (nc *nodeConn) startLoops(events chan<- connEvent, readBufBytes, writeBufBytes int) {
	nc.sendCh = make(chan outboundFrame, 64)
	nc.doneCh = make(chan struct{})
	nc.closeMu = sync.Once{}
	nc.r = bufio.NewReaderSize(nc.conn, readBufBytes)
	nc.w = bufio.NewWriterSize(nc.conn, writeBufBytes)
	go writeLoop(nc, events)
	go readLoop(nc, events)
}

func writeLoop(nc *nodeConn, events chan<- connEvent) {
	for {
		select {
		case <-nc.doneCh:
			return
		case frame, ok := <-nc.sendCh:
			if !ok {
				return
			}
			start := time.Now()
			_, err := nc.w.Write(frame.bytes)
			if err == nil {
				err = nc.w.Flush()
			}
			events <- connEvent{
				kind:     evWriteResult,
				nodeID:   nc.id,
				corrID:   frame.corrID,
				duration: time.Since(start),
				n:        len(frame.bytes),
				err:      err,
				expects:  frame.expectsResponse,
			}
			if err != nil {
				return
			}
		}
	}
}

func readLoop(nc *nodeConn, events chan<- connEvent) {
	sizeBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(nc.r, sizeBuf); err != nil {
			events <- connEvent{kind: evReadResult, nodeID: nc.id, err: err}
			return
		}
		size := binary.BigEndian.Uint32(sizeBuf)
		body := make([]byte, size)
		start := time.Now()
		if _, err := io.ReadFull(nc.r, body); err != nil {
			events <- connEvent{kind: evReadResult, nodeID: nc.id, err: err}
			return
		}
		corrID, rest, err := parseResponseHeader(body)
		if err != nil {
			events <- connEvent{kind: evReadResult, nodeID: nc.id, err: err}
			return
		}
		events <- connEvent{
			kind:     evReadResult,
			nodeID:   nc.id,
			corrID:   corrID,
			raw:      rest,
			duration: time.Since(start),
			n:        len(body),
		}
		select {
		case <-nc.doneCh:
			return
		default:
		}
	}
}
