package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pulsewire/kgo/pkg/kwire"
)

// Record is one length-framed entry in a segment's data log: a 4-byte size
// prefix followed by an 8-byte absolute offset, a length-prefixed key, and a
// length-prefixed value. The real wire codec for these records is out of
// scope (SPEC_FULL.md §1 Non-goals); this is just enough framing to let
// --print-data-log walk a segment.
type Record struct {
	Offset int64
	Key    []byte
	Value  []byte
}

// ReadLogRecords walks path sequentially, stopping at EOF or the first
// record whose declared size exceeds maxMessageSize.
func ReadLogRecords(path string, maxMessageSize int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data log: %w", err)
	}
	defer f.Close()

	var out []Record
	sizeBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(f, sizeBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return out, err
		}
		size := int(binary.BigEndian.Uint32(sizeBuf))
		if size > maxMessageSize {
			return out, fmt.Errorf("record size %d exceeds max-message-size %d", size, maxMessageSize)
		}

		body := make([]byte, size)
		if _, err := io.ReadFull(f, body); err != nil {
			return out, fmt.Errorf("truncated record: %w", err)
		}

		rec, err := decodeRecord(body)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// recordOffsetAt reads just the leading record at filePosition in path and
// returns its absolute offset, without decoding key/value.
func recordOffsetAt(path string, filePosition uint32) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(int64(filePosition), io.SeekStart); err != nil {
		return 0, err
	}
	var header [4 + 8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return 0, fmt.Errorf("reading record header at position %d: %w", filePosition, err)
	}
	return int64(binary.BigEndian.Uint64(header[4:])), nil
}

// verifyIndexEntries checks each entry against its file_position in the data
// log, per SPEC_FULL.md §6: "each index entry... must resolve to a message
// whose absolute offset equals baseOffset + relative_offset."
func verifyIndexEntries(logPath string, baseOffset int64, entries []kwire.IndexEntry) ([]kwire.IndexEntry, error) {
	var mismatches []kwire.IndexEntry
	for _, e := range entries {
		want := baseOffset + int64(e.RelativeOffset)
		got, err := recordOffsetAt(logPath, e.FilePosition)
		if err != nil {
			return mismatches, err
		}
		if got != want {
			mismatches = append(mismatches, e)
		}
	}
	return mismatches, nil
}

func decodeRecord(body []byte) (Record, error) {
	if len(body) < 8+4 {
		return Record{}, fmt.Errorf("short record: %d bytes", len(body))
	}
	offset := int64(binary.BigEndian.Uint64(body[:8]))
	rest := body[8:]

	keyLen := int(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if len(rest) < keyLen+4 {
		return Record{}, fmt.Errorf("short record key for offset %d", offset)
	}
	key := rest[:keyLen]
	rest = rest[keyLen:]

	valLen := int(binary.BigEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if len(rest) < valLen {
		return Record{}, fmt.Errorf("short record value for offset %d", offset)
	}
	val := rest[:valLen]

	return Record{Offset: offset, Key: key, Value: val}, nil
}
