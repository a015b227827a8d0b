package kgo

import "time"

// Hook is a marker interface; concrete hook kinds below are checked via
// type assertion when broadcast, exactly as the teacher does it
// (cl.cfg.hooks.each(func(h Hook) { if h, ok := h.(BrokerConnectHook); ok {...} })).
// This keeps observability decoupled from the client without a metrics
// library dependency — no metrics client appears anywhere in the
// retrieval pack for this lineage.
type Hook interface{}

type hooks []Hook

func (hs hooks) each(fn func(Hook)) {
	for _, h := range hs {
		fn(h)
	}
}

// ConnectHook fires after a dial attempt to node completes (err nil on
// success).
type ConnectHook interface {
	OnConnect(node Node, dialDuration time.Duration, err error)
}

// WriteHook fires after a request write completes.
type WriteHook interface {
	OnWrite(node Node, bytesWritten int, writeDuration time.Duration, err error)
}

// ReadHook fires after a response read completes.
type ReadHook interface {
	OnRead(node Node, bytesRead int, readDuration time.Duration, err error)
}

// DisconnectHook fires when a connection is torn down, for any reason.
type DisconnectHook interface {
	OnDisconnect(node Node, err error)
}

// ThrottleHook is the throttle-notification hook kind (mirrors the teacher's
// ThrottleResponse handling in handleResps). NetworkClient never fires it:
// none of the responses it handles carry a throttle time.
type ThrottleHook interface {
	OnThrottle(node Node, throttleDuration time.Duration)
}

func (c *Config) fireConnect(node Node, d time.Duration, err error) {
	c.hooks.each(func(h Hook) {
		if h, ok := h.(ConnectHook); ok {
			h.OnConnect(node, d, err)
		}
	})
}

func (c *Config) fireWrite(node Node, n int, d time.Duration, err error) {
	c.hooks.each(func(h Hook) {
		if h, ok := h.(WriteHook); ok {
			h.OnWrite(node, n, d, err)
		}
	})
}

func (c *Config) fireRead(node Node, n int, d time.Duration, err error) {
	c.hooks.each(func(h Hook) {
		if h, ok := h.(ReadHook); ok {
			h.OnRead(node, n, d, err)
		}
	})
}

func (c *Config) fireDisconnect(node Node, err error) {
	c.hooks.each(func(h Hook) {
		if h, ok := h.(DisconnectHook); ok {
			h.OnDisconnect(node, err)
		}
	})
}

func (c *Config) fireThrottle(node Node, d time.Duration) {
	c.hooks.each(func(h Hook) {
		if h, ok := h.(ThrottleHook); ok {
			h.OnThrottle(node, d)
		}
	})
}
