package kwire

import (
	"encoding/binary"
	"fmt"
	"os"
)

// IndexEntry is one (relative_offset, file_position) pair read from a
// segment's sparse offset index (spec §6).
type IndexEntry struct {
	RelativeOffset uint32
	FilePosition   uint32
}

// SegmentScanResult is the result of walking one segment's index file,
// returned by value rather than threaded through mutable output maps
// (spec §9, "mutable maps threaded through dump-time error accumulation").
type SegmentScanResult struct {
	BaseOffset          int64
	Entries             []IndexEntry
	Mismatches          []IndexEntry // always empty from ScanIndex, which reads only the index file; callers with the data log fill their own list
	NonConsecutivePairs int          // adjacent entries whose file_position did not increase
}

// ScanIndex reads the sparse index at indexPath for a segment whose base
// offset is baseOffset, stopping at the first all-zero entry following a
// non-zero one (the unwritten tail, per spec §6).
func ScanIndex(indexPath string, baseOffset int64) (SegmentScanResult, error) {
	res := SegmentScanResult{BaseOffset: baseOffset}

	f, err := os.Open(indexPath)
	if err != nil {
		return res, fmt.Errorf("kwire: open index: %w", err)
	}
	defer f.Close()

	const entrySize = 8
	buf := make([]byte, entrySize)
	sawNonZero := false
	var lastPos uint32
	havePrev := false

	for {
		n, err := f.Read(buf)
		if n < entrySize {
			break
		}
		rel := binary.BigEndian.Uint32(buf[0:4])
		pos := binary.BigEndian.Uint32(buf[4:8])

		if rel == 0 && pos == 0 {
			if sawNonZero {
				break
			}
			// A leading zero entry is legitimately offset 0; keep scanning.
		} else {
			sawNonZero = true
		}

		entry := IndexEntry{RelativeOffset: rel, FilePosition: pos}
		res.Entries = append(res.Entries, entry)

		if havePrev && pos <= lastPos && !(rel == 0 && pos == 0) {
			res.NonConsecutivePairs++
		}
		if rel != 0 || pos != 0 {
			lastPos = pos
			havePrev = true
		}

		if err != nil {
			break
		}
	}
	return res, nil
}
