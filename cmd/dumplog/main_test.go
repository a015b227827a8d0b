package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pulsewire/kgo/pkg/kwire"
	"github.com/stretchr/testify/require"
)

func writeIndexFile(t *testing.T, path string, entries [][2]uint32) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, e := range entries {
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[0:4], e[0])
		binary.BigEndian.PutUint32(buf[4:8], e[1])
		_, err := f.Write(buf[:])
		require.NoError(t, err)
	}
}

func writeLogFile(t *testing.T, path string, recs []Record) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, r := range recs {
		var body []byte
		var off [8]byte
		binary.BigEndian.PutUint64(off[:], uint64(r.Offset))
		body = append(body, off[:]...)

		var kl [4]byte
		binary.BigEndian.PutUint32(kl[:], uint32(len(r.Key)))
		body = append(body, kl[:]...)
		body = append(body, r.Key...)

		var vl [4]byte
		binary.BigEndian.PutUint32(vl[:], uint32(len(r.Value)))
		body = append(body, vl[:]...)
		body = append(body, r.Value...)

		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(body)))
		_, err := f.Write(size[:])
		require.NoError(t, err)
		_, err = f.Write(body)
		require.NoError(t, err)
	}
}

func TestBaseOffsetOf(t *testing.T) {
	n, err := baseOffsetOf("/data/orders-0/00000000000000000042")
	require.NoError(t, err)
	require.Equal(t, int64(42), n)

	_, err = baseOffsetOf("/data/orders-0/not-a-number")
	require.Error(t, err)
}

func TestReadLogRecords_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00000000000000000000.log")
	writeLogFile(t, path, []Record{
		{Offset: 0, Key: []byte("k0"), Value: []byte("v0")},
		{Offset: 1, Key: []byte("k1"), Value: []byte("v1")},
	})

	recs, err := ReadLogRecords(path, 1024)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, int64(1), recs[1].Offset)
	require.Equal(t, "k1", string(recs[1].Key))
	require.Equal(t, "v1", string(recs[1].Value))
}

func TestReadLogRecords_RejectsOversizedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00000000000000000000.log")
	writeLogFile(t, path, []Record{{Offset: 0, Key: nil, Value: []byte("this value is too big")}})

	_, err := ReadLogRecords(path, 4)
	require.Error(t, err)
}

func TestDumpSegment_IndexSanityCheckFailsOnNonConsecutivePositions(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "00000000000000000000")
	// Non-consecutive file positions: second entry's position does not
	// exceed the first's.
	writeIndexFile(t, base+".index", [][2]uint32{{0, 100}, {1, 50}})

	err := dumpSegment(base, dumpOptions{
		indexSanityCheck: true,
		verifyIndexOnly:  true,
		keyDecoder:       stringDecoder{},
		valueDecoder:     stringDecoder{},
	})
	require.Error(t, err)
}

func TestDumpSegment_VerifyIndexOnlySkipsDataLog(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "00000000000000000000")
	writeIndexFile(t, base+".index", [][2]uint32{{0, 0}})

	err := dumpSegment(base, dumpOptions{
		verifyIndexOnly: true,
		keyDecoder:      stringDecoder{},
		valueDecoder:    stringDecoder{},
	})
	require.NoError(t, err)
}

func TestDumpSegment_PrintDataLogDecodesRecords(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "00000000000000000000")
	writeIndexFile(t, base+".index", [][2]uint32{{0, 0}})
	writeLogFile(t, base+".log", []Record{{Offset: 0, Key: []byte("k"), Value: []byte("v")}})

	err := dumpSegment(base, dumpOptions{
		printDataLog:   true,
		maxMessageSize: 1024,
		keyDecoder:     stringDecoder{},
		valueDecoder:   stringDecoder{},
	})
	require.NoError(t, err)
}

func TestVerifyIndexEntries_FlagsOffsetMismatch(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "00000000000000000000.log")
	writeLogFile(t, logPath, []Record{
		{Offset: 0, Key: nil, Value: []byte("a")},
		{Offset: 5, Key: nil, Value: []byte("b")}, // should be offset 1 to match relative_offset 1
	})

	// First record starts at file position 0; the second record starts right
	// after the first record's frame, which is 4 (size prefix) + 8 (offset) +
	// 4 (key len) + 0 (key) + 4 (value len) + 1 (value "a") bytes long.
	firstLen := uint32(4 + 8 + 4 + 0 + 4 + len("a"))

	entries := []kwire.IndexEntry{
		{RelativeOffset: 0, FilePosition: 0},
		{RelativeOffset: 1, FilePosition: firstLen},
	}
	mismatches, err := verifyIndexEntries(logPath, 0, entries)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, uint32(1), mismatches[0].RelativeOffset)
}

func TestResolveDecoder_UnknownClassErrors(t *testing.T) {
	_, err := resolveDecoder("nonexistent", keyDecoders)
	require.Error(t, err)

	d, err := resolveDecoder("", keyDecoders)
	require.NoError(t, err)
	require.IsType(t, stringDecoder{}, d)
}
