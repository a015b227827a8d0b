package kgo

import (
	"context"
	"sync"
	"time"

	"github.com/pulsewire/kgo/pkg/kmsg"
)

// Client is the user-facing façade wrapping NetworkClient and its
// MetadataUpdater, grounded on the teacher's broker.do/waitResp pair: Do
// parks a caller on a channel until a background Run loop's Poll call
// delivers the matching response. Unlike the teacher (one goroutine per
// broker), every node here is driven by the single shared NetworkClient.
//
// Do itself never touches NetworkClient state directly — nc.Send and
// nc.Poll must only ever be called from the Run goroutine (spec §4.C:
// "exactly one goroutine may call Ready/IsReady/Send/Poll/Close"). Do
// instead enqueues a sendCmd that Run's loop drains and issues on the
// caller's behalf, then wakes Poll so it doesn't wait out its timeout.
type Client struct {
	nc  *NetworkClient
	cfg *Config

	sendReqs chan sendCmd

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	stopped chan struct{}
}

type sendCmd struct {
	nodeID          int32
	req             kmsg.Request
	expectsResponse bool
	reply           chan<- doResult
}

// NewClient constructs a Client and seeds it with the given bootstrap
// nodes (spec §3: "created at client construction from bootstrap nodes").
func NewClient(bootstrap []Node, opts ...Opt) *Client {
	nc := NewNetworkClient(opts...)
	for _, n := range bootstrap {
		nc.AddNode(n)
	}
	return &Client{nc: nc, cfg: nc.cfg, sendReqs: make(chan sendCmd, 256)}
}

// NetworkClient exposes the underlying single-threaded engine directly,
// for callers (and tests) that want to drive Poll themselves rather than
// use Run/Do.
func (c *Client) NetworkClient() *NetworkClient { return c.nc }

// Metadata exposes the most recent cluster metadata snapshot.
func (c *Client) Metadata() *ClusterMetadata { return c.nc.metadata.Current() }

// Run drives Poll in a loop until ctx is cancelled or Close is called. Do
// requires a concurrently running Run loop (or equivalent manual Poll
// calls) to ever observe a response.
func (c *Client) Run(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.stopped = make(chan struct{})
	c.mu.Unlock()

	defer close(c.stopped)
	var pending []sendCmd
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		now := time.Now()
		for _, node := range c.nc.Nodes() {
			c.nc.Ready(node.ID, now)
		}

	drainCmds:
		for {
			select {
			case cmd := <-c.sendReqs:
				pending = append(pending, cmd)
			default:
				break drainCmds
			}
		}

		still := pending[:0]
		for _, cmd := range pending {
			cmd := cmd
			err := c.nc.Send(cmd.nodeID, cmd.req, cmd.expectsResponse, now, func(raw []byte, disconnected bool, sendErr error) {
				cmd.reply <- doResult{raw: raw, disconnected: disconnected, err: sendErr}
			})
			if err != nil {
				if err == ErrUnknownNode || err == ErrClientClosed {
					cmd.reply <- doResult{err: err}
					continue
				}
				still = append(still, cmd)
				continue
			}
		}
		pending = still

		if _, err := c.nc.Poll(100, now); err != nil {
			return
		}
	}
}

// Close tears down every connection and stops any running Run loop.
func (c *Client) Close() {
	c.mu.Lock()
	running := c.running
	stopCh := c.stopCh
	stopped := c.stopped
	c.mu.Unlock()

	c.nc.CloseAll()
	if running {
		close(stopCh)
		<-stopped
	}
}

type doResult struct {
	raw          []byte
	disconnected bool
	err          error
}

// Do sends req to nodeID and blocks for its response, decoding into resp
// (a zero-value kmsg.Response the caller provides, e.g. &kmsg.MetadataResponse{}).
// Requires a concurrently running Run loop: Do only ever enqueues the
// request for Run's goroutine to issue, never touching NetworkClient state
// itself.
func (c *Client) Do(ctx context.Context, nodeID int32, req kmsg.Request, resp kmsg.Response) error {
	ch := make(chan doResult, 1)
	cmd := sendCmd{nodeID: nodeID, req: req, expectsResponse: true, reply: ch}

	select {
	case c.sendReqs <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.nc.Wakeup()

	select {
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		if r.disconnected {
			return ErrConnDead
		}
		return resp.ReadFrom(r.raw)
	case <-ctx.Done():
		return ctx.Err()
	}
}
