package trainer

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// scanResult is the frozen output of the Scan phase: the
// sorted label set, a lookup from label to class index, the total line
// count, and the byte offsets of every chunkSize-th line boundary, which
// later epochs seek to for chunk-level shuffling.
type scanResult struct {
	Labels        []string
	LabelIndex    map[string]int
	LineCount     int
	ChunkOffsets  []int64 // ChunkOffsets[i] = byte offset of the first line of chunk i
	SkippedLines  int64
	UnknownLabels int64
}

// scan performs the single sequential read over path: discover labels
// (insertion order then sorted), count lines, and record chunk boundary
// offsets every chunkSize lines.
//
// Malformed lines (missing tab) are skipped and counted, not fatal.
// A label is "discovered" the first time a
// well-formed line names it; label validity against a known-label-list is
// not checked during scan — any label naming a nonempty string is valid
// because labels are discovered FROM the file itself here (scan governs
// which labels exist). UnknownLabels is reserved for Trainer.Train's later
// validation should a caller pre-seed a frozen label set.
func scan(path string, chunkSize int) (*scanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trainer: scan: opening %s: %w", path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 1<<20)
	seen := make(map[string]struct{})

	var (
		lineCount    int64
		offset       int64
		chunkOffsets []int64
		skipped      int64
	)
	chunkOffsets = append(chunkOffsets, 0)

	for {
		lineStart := offset
		line, err := reader.ReadString('\n')
		n := int64(len(line))
		offset += n
		if len(line) > 0 {
			trimmed := strings.TrimRight(line, "\n")
			tab := strings.IndexByte(trimmed, '\t')
			if tab < 0 {
				skipped++
			} else {
				lang := trimmed[:tab]
				if lang == "" {
					skipped++
				} else {
					seen[lang] = struct{}{}
					lineCount++
					if (lineCount-1)%int64(chunkSize) == 0 {
						// first line of a new chunk other than chunk 0, whose
						// start offset (0) is already recorded above.
						if lineCount > 1 {
							chunkOffsets = append(chunkOffsets, lineStart)
						}
					}
				}
			}
		}
		if err != nil {
			break // EOF or read error both end the scan; a last line without a trailing newline was still counted above
		}
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}

	return &scanResult{
		Labels:       labels,
		LabelIndex:   idx,
		LineCount:    int(lineCount),
		ChunkOffsets: chunkOffsets,
		SkippedLines: skipped,
	}, nil
}

// numChunks returns how many chunks the scanned file was divided into.
func (s *scanResult) numChunks() int { return len(s.ChunkOffsets) }
