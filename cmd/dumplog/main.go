// Command dumplog inspects broker log segments: it walks a segment's sparse
// offset index and, optionally, its data log, reporting index corruption and
// (when asked) decoded records. It is a thin wrapper over pkg/kwire/segment.go
// and is out of this module's core scope, included for completeness.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pulsewire/kgo/pkg/kwire"
)

func main() {
	var (
		files             = flag.String("files", "", "comma-separated list of segment base paths (no extension), e.g. /data/orders-0/00000000000000000000")
		printDataLog      = flag.Bool("print-data-log", false, "also decode and print the segment's data log")
		verifyIndexOnly   = flag.Bool("verify-index-only", false, "only check the index (against the data log, when it exists); never print records")
		indexSanityCheck  = flag.Bool("index-sanity-check", false, "exit non-zero if the index has any mismatches or non-consecutive file positions")
		maxMessageSize    = flag.Int("max-message-size", 5*1024*1024, "largest record size accepted while reading the data log")
		deepIteration     = flag.Bool("deep-iteration", false, "print the records read before the first data-log read error instead of failing on it; reading still stops at that error")
		offsetsDecoder    = flag.Bool("offsets-decoder", false, "decode keys/values as this broker's offsets-topic schema instead of the configured decoder classes")
		keyDecoderClass   = flag.String("key-decoder-class", "string", "registered Decoder to use for record keys")
		valueDecoderClass = flag.String("value-decoder-class", "string", "registered Decoder to use for record values")
	)
	flag.Parse()

	if *files == "" {
		fmt.Fprintln(os.Stderr, "dumplog: --files is required")
		flag.Usage()
		os.Exit(1)
	}

	keyDecoder, err := resolveDecoder(*keyDecoderClass, keyDecoders)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dumplog: %v\n", err)
		os.Exit(1)
	}
	valueDecoder, err := resolveDecoder(*valueDecoderClass, valueDecoders)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dumplog: %v\n", err)
		os.Exit(1)
	}
	if *offsetsDecoder {
		keyDecoder, valueDecoder = offsetsKeyDecoder{}, offsetsValueDecoder{}
	}

	exitCode := 0
	for _, base := range strings.Split(*files, ",") {
		base = strings.TrimSpace(base)
		if base == "" {
			continue
		}
		if err := dumpSegment(base, dumpOptions{
			printDataLog:     *printDataLog,
			verifyIndexOnly:  *verifyIndexOnly,
			indexSanityCheck: *indexSanityCheck,
			maxMessageSize:   *maxMessageSize,
			deepIteration:    *deepIteration,
			keyDecoder:       keyDecoder,
			valueDecoder:     valueDecoder,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "dumplog: %s: %v\n", base, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

type dumpOptions struct {
	printDataLog     bool
	verifyIndexOnly  bool
	indexSanityCheck bool
	maxMessageSize   int
	deepIteration    bool
	keyDecoder       Decoder
	valueDecoder     Decoder
}

func dumpSegment(base string, opts dumpOptions) error {
	baseOffset, err := baseOffsetOf(base)
	if err != nil {
		return err
	}

	indexPath := base + ".index"
	logPath := base + ".log"
	result, err := kwire.ScanIndex(indexPath, baseOffset)
	if err != nil {
		return err
	}

	mismatches := result.Mismatches
	if _, statErr := os.Stat(logPath); statErr == nil {
		found, err := verifyIndexEntries(logPath, baseOffset, result.Entries)
		if err != nil {
			return err
		}
		mismatches = found
	}

	fmt.Printf("Dumping %s\n", indexPath)
	fmt.Printf("  base offset: %d, entries: %d, mismatches: %d, non-consecutive pairs: %d\n",
		result.BaseOffset, len(result.Entries), len(mismatches), result.NonConsecutivePairs)

	if opts.indexSanityCheck && (len(mismatches) > 0 || result.NonConsecutivePairs > 0) {
		return fmt.Errorf("index sanity check failed: %d mismatches, %d non-consecutive pairs",
			len(mismatches), result.NonConsecutivePairs)
	}

	if opts.verifyIndexOnly {
		return nil
	}

	if !opts.printDataLog {
		return nil
	}

	records, err := ReadLogRecords(logPath, opts.maxMessageSize)
	if err != nil && !opts.deepIteration {
		return err
	}

	fmt.Printf("Dumping %s\n", logPath)
	for _, rec := range records {
		key, kerr := opts.keyDecoder.Decode(rec.Key)
		if kerr != nil {
			key = fmt.Sprintf("<decode error: %v>", kerr)
		}
		val, verr := opts.valueDecoder.Decode(rec.Value)
		if verr != nil {
			val = fmt.Sprintf("<decode error: %v>", verr)
		}
		fmt.Printf("  offset: %d key: %s value: %s\n", rec.Offset, key, val)
	}
	return nil
}

func baseOffsetOf(base string) (int64, error) {
	name := filepath.Base(base)
	n, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("base path %q does not name a numeric base offset: %w", base, err)
	}
	return n, nil
}
