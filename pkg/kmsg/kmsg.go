// Package kmsg is the minimal, opaque request/response vocabulary the
// network client needs to compile and be tested against. The real wire
// codec is out of scope; this package gives just enough shape for two
// message pairs: metadata refresh and API-version handshake. pkg/kgo sends
// only the metadata pair.
package kmsg

import "encoding/binary"

// Request is satisfied by every outbound message. AppendTo serializes the
// request body (not the header) onto dst, mirroring the teacher's
// req.AppendTo(buf) calling convention.
type Request interface {
	Key() int16
	AppendTo(dst []byte) []byte
}

// Response is satisfied by every inbound message body.
type Response interface {
	Key() int16
	ReadFrom(src []byte) error
}

// Header is the fixed framing every request/response shares: apiKey,
// apiVersion, clientID, correlationID. The wire codec that serializes this
// onto a connection lives in pkg/kgo (writeRequest); this struct is the
// shared vocabulary only.
type Header struct {
	APIKey        int16
	APIVersion    int16
	ClientID      string
	CorrelationID int32
}

const (
	KeyMetadata    int16 = 3
	KeyAPIVersions int16 = 18
)

// MetadataRequest asks for the current cluster view, optionally scoped to a
// set of topics (nil/empty means "all topics").
type MetadataRequest struct {
	Topics []string
}

func (*MetadataRequest) Key() int16 { return KeyMetadata }

func (r *MetadataRequest) AppendTo(dst []byte) []byte {
	dst = appendInt32(dst, int32(len(r.Topics)))
	for _, t := range r.Topics {
		dst = appendString(dst, t)
	}
	return dst
}

// MetadataBroker is one entry of a MetadataResponse's broker list.
type MetadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   *string
}

// MetadataPartition describes one partition's leader/replica/ISR state as
// reported by a metadata response.
type MetadataPartition struct {
	ErrorCode      int16
	Partition      int32
	Leader         int32
	Replicas       []int32
	ISR            []int32
}

// MetadataTopic groups the partitions belonging to one topic.
type MetadataTopic struct {
	ErrorCode  int16
	Topic      string
	Partitions []MetadataPartition
}

// MetadataResponse is the decoded reply to a MetadataRequest.
type MetadataResponse struct {
	Brokers []MetadataBroker
	Topics  []MetadataTopic
}

func (*MetadataResponse) Key() int16 { return KeyMetadata }

func (r *MetadataResponse) ReadFrom(src []byte) error {
	d := decoder{buf: src}
	nb := d.i32()
	r.Brokers = make([]MetadataBroker, 0, nb)
	for i := int32(0); i < nb; i++ {
		var b MetadataBroker
		b.NodeID = d.i32()
		b.Host = d.str()
		b.Port = d.i32()
		if d.bool() {
			rack := d.str()
			b.Rack = &rack
		}
		r.Brokers = append(r.Brokers, b)
	}
	nt := d.i32()
	r.Topics = make([]MetadataTopic, 0, nt)
	for i := int32(0); i < nt; i++ {
		var t MetadataTopic
		t.ErrorCode = d.i16()
		t.Topic = d.str()
		np := d.i32()
		t.Partitions = make([]MetadataPartition, 0, np)
		for j := int32(0); j < np; j++ {
			var p MetadataPartition
			p.ErrorCode = d.i16()
			p.Partition = d.i32()
			p.Leader = d.i32()
			p.Replicas = d.i32slice()
			p.ISR = d.i32slice()
			t.Partitions = append(t.Partitions, p)
		}
		r.Topics = append(r.Topics, t)
	}
	return d.err
}

// ApiVersionsRequest is the API-version handshake request, grounded on the
// teacher's requestAPIVersions. pkg/kgo does not send it: a connection is
// usable as soon as its dial succeeds.
type ApiVersionsRequest struct{}

func (*ApiVersionsRequest) Key() int16 { return KeyAPIVersions }

func (*ApiVersionsRequest) AppendTo(dst []byte) []byte { return dst }

// ApiVersionsResponse reports the min/max supported version per API key.
type ApiVersionsResponse struct {
	ErrorCode int16
	Versions  map[int16][2]int16 // key -> [min, max]
}

func (*ApiVersionsResponse) Key() int16 { return KeyAPIVersions }

func (r *ApiVersionsResponse) ReadFrom(src []byte) error {
	d := decoder{buf: src}
	r.ErrorCode = d.i16()
	n := d.i32()
	r.Versions = make(map[int16][2]int16, n)
	for i := int32(0); i < n; i++ {
		key := d.i16()
		min := d.i16()
		max := d.i16()
		r.Versions[key] = [2]int16{min, max}
	}
	return d.err
}

// --- minimal big-endian encode/decode helpers ---

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

func appendString(dst []byte, s string) []byte {
	dst = appendInt32(dst, int32(len(s)))
	return append(dst, s...)
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) need(n int) bool {
	if d.err != nil || len(d.buf) < n {
		if d.err == nil {
			d.err = errShortBuffer
		}
		return false
	}
	return true
}

func (d *decoder) i16() int16 {
	if !d.need(2) {
		return 0
	}
	v := int16(binary.BigEndian.Uint16(d.buf))
	d.buf = d.buf[2:]
	return v
}

func (d *decoder) i32() int32 {
	if !d.need(4) {
		return 0
	}
	v := int32(binary.BigEndian.Uint32(d.buf))
	d.buf = d.buf[4:]
	return v
}

func (d *decoder) bool() bool {
	if !d.need(1) {
		return false
	}
	v := d.buf[0] != 0
	d.buf = d.buf[1:]
	return v
}

func (d *decoder) str() string {
	n := d.i32()
	if n < 0 || !d.need(int(n)) {
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *decoder) i32slice() []int32 {
	n := d.i32()
	if n < 0 {
		return nil
	}
	out := make([]int32, 0, n)
	for i := int32(0); i < n; i++ {
		out = append(out, d.i32())
	}
	return out
}

var errShortBuffer = shortBufferError{}

type shortBufferError struct{}

func (shortBufferError) Error() string { return "kmsg: short buffer" }
