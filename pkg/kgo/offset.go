package kgo

// Offset names a read position within a partition's log, grounded on the
// teacher's consumer.go Offset builder — adapted here as a read-only value
// type for describing where a scan or dump should begin, since this client
// carries no consumer-group/rebalance machinery (out of scope per
// SPEC_FULL.md's Non-goals).
type Offset struct {
	at       int64
	relative int64
	epoch    int32
}

// NewOffset returns an offset that begins at the end of the partition.
func NewOffset() Offset {
	return Offset{at: -1, epoch: -1}
}

// AtStart returns a copy of o that begins at the start of the partition.
func (o Offset) AtStart() Offset {
	o.at = -2
	return o
}

// AtEnd returns a copy of o that begins at the end of the partition.
func (o Offset) AtEnd() Offset {
	o.at = -1
	return o
}

// Relative returns a copy of o shifted by n relative to wherever o currently
// begins. AtEnd().Relative(-100) begins 100 before the end.
func (o Offset) Relative(n int64) Offset {
	o.relative = n
	return o
}

// WithEpoch returns a copy of o carrying the given leader epoch, used for
// truncation detection; a negative epoch means "no truncation detection."
func (o Offset) WithEpoch(e int32) Offset {
	if e < 0 {
		e = -1
	}
	o.epoch = e
	return o
}

// At returns a copy of o that begins at exactly the given offset. Values
// below -2 are bounded up to -2 (start of partition).
func (o Offset) At(at int64) Offset {
	if at < -2 {
		at = -2
	}
	o.at = at
	return o
}

// Resolve maps o onto a concrete log offset given the partition's current
// high-water mark (hwm) and log-start offset (logStart), the two boundary
// values a real broker would report.
func (o Offset) Resolve(logStart, hwm int64) int64 {
	var base int64
	switch o.at {
	case -2:
		base = logStart
	case -1:
		base = hwm
	default:
		base = o.at
	}
	resolved := base + o.relative
	if resolved < logStart {
		resolved = logStart
	}
	if resolved > hwm {
		resolved = hwm
	}
	return resolved
}

// Epoch returns the truncation-detection epoch carried by o, or -1 if none.
func (o Offset) Epoch() int32 { return o.epoch }
