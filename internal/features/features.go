// Package features implements the hashed character n-gram feature
// extractor. The same Extractor, given the same
// configuration, must produce byte-identical output for the same input
// across platforms, processes, and runs; that determinism is what lets the
// trainer and the inference server share one feature space.
package features

import (
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/jjviana/langid/internal/preprocess"
)

// Family tags distinguish token namespaces before hashing, so identical
// surface strings from different families never collide in the bucket
// space: the tag byte is mixed into the hash ahead of the token bytes.
const (
	familyBigram byte = iota
	familyWordUnigram
	familyCJKUnigram
)

// Config is the Extractor's construction-time record. NumBuckets
// must be a power of two; WordUnigrams and CJKUnigrams are off by
// default, available for callers that want an auxiliary feature family.
type Config struct {
	NumBuckets   int
	Preprocessed bool
	WordUnigrams bool
	CJKUnigrams  bool
}

// DefaultConfig returns a Config for the given bucket width with every
// optional feature family disabled.
func DefaultConfig(numBuckets int) Config {
	return Config{NumBuckets: numBuckets}
}

// Extractor hashes canonicalized text into a fixed-width sparse bucket
// space. It is immutable after construction and safe for concurrent use
// across goroutines sharing the same configuration.
type Extractor struct {
	cfg  Config
	mask uint64
}

// New constructs an Extractor from cfg. It panics if cfg.NumBuckets is not
// a power of two: the bucket mask trick (hash & (NumBuckets-1)) requires it,
// and a silent fallback to modulo would produce a biased bucket distribution.
func New(cfg Config) *Extractor {
	if cfg.NumBuckets <= 0 || cfg.NumBuckets&(cfg.NumBuckets-1) != 0 {
		panic("features: NumBuckets must be a power of two")
	}
	return &Extractor{cfg: cfg, mask: uint64(cfg.NumBuckets - 1)}
}

// NumBuckets returns the configured feature width.
func (e *Extractor) NumBuckets() int { return e.cfg.NumBuckets }

func (e *Extractor) bucket(tag byte, token []byte) int {
	h := xxhash.New()
	h.Write([]byte{tag})
	h.Write(token)
	return int(h.Sum64() & e.mask)
}

// Extract canonicalizes text (unless cfg.Preprocessed is set) and writes
// hashed n-gram counts into counts, which must have length NumBuckets and
// be zeroed for every bucket touched by a previous call (ResetTouched does
// that cheaply). It returns the slice of distinct bucket indices that were
// incremented, appended to idxBuf[:0], so callers can walk only the active
// buckets instead of the whole (sparse) vector.
func (e *Extractor) Extract(text string, counts []int32, idxBuf []int32) []int32 {
	if len(counts) != e.cfg.NumBuckets {
		panic("features: counts buffer length must equal NumBuckets")
	}
	canon := text
	if !e.cfg.Preprocessed {
		canon = preprocess.Canonicalize(text)
	}
	idxBuf = idxBuf[:0]

	idxBuf = e.emitBigrams(canon, counts, idxBuf)
	if e.cfg.WordUnigrams {
		idxBuf = e.emitWordUnigrams(canon, counts, idxBuf)
	}
	if e.cfg.CJKUnigrams {
		idxBuf = e.emitCJKUnigrams(canon, counts, idxBuf)
	}
	return idxBuf
}

// incr bumps counts[b], appending b to idxBuf the first time it transitions
// from zero so the caller's active-index list stays free of duplicates.
func incr(counts []int32, idxBuf []int32, b int) []int32 {
	if counts[b] == 0 {
		idxBuf = append(idxBuf, int32(b))
	}
	counts[b]++
	return idxBuf
}

// emitBigrams hashes every consecutive pair of runes in canon, including
// one leading and one trailing boundary marker so the first and last
// character of short inputs still participate in a bigram.
func (e *Extractor) emitBigrams(canon string, counts []int32, idxBuf []int32) []int32 {
	const boundary = ''
	prev := rune(boundary)
	var buf [9]byte // up to two 4-byte runes plus tag room, never overflows
	for _, r := range canon {
		n := encodeBigram(buf[:0], prev, r)
		b := e.bucket(familyBigram, n)
		idxBuf = incr(counts, idxBuf, b)
		prev = r
	}
	n := encodeBigram(buf[:0], prev, boundary)
	b := e.bucket(familyBigram, n)
	idxBuf = incr(counts, idxBuf, b)
	return idxBuf
}

func encodeBigram(dst []byte, a, b rune) []byte {
	dst = utf8.AppendRune(dst, a)
	dst = utf8.AppendRune(dst, b)
	return dst
}

// emitWordUnigrams emits one token per whitespace-delimited word. Disabled
// by default (see Config).
func (e *Extractor) emitWordUnigrams(canon string, counts []int32, idxBuf []int32) []int32 {
	start := -1
	for i, r := range canon {
		if r == ' ' {
			if start >= 0 {
				b := e.bucket(familyWordUnigram, []byte(canon[start:i]))
				idxBuf = incr(counts, idxBuf, b)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		b := e.bucket(familyWordUnigram, []byte(canon[start:]))
		idxBuf = incr(counts, idxBuf, b)
	}
	return idxBuf
}

// isCJK reports whether r falls in one of the common CJK ideograph or
// kana blocks. It's intentionally coarse: a feature-bucketing heuristic,
// not a script classifier.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana + Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	default:
		return false
	}
}

// emitCJKUnigrams emits one token per individual CJK character, since
// whitespace-delimited "words" are meaningless in unsegmented CJK text.
// Disabled by default (see Config).
func (e *Extractor) emitCJKUnigrams(canon string, counts []int32, idxBuf []int32) []int32 {
	var buf [4]byte
	for _, r := range canon {
		if !isCJK(r) {
			continue
		}
		n := utf8.AppendRune(buf[:0], r)
		b := e.bucket(familyCJKUnigram, n)
		idxBuf = incr(counts, idxBuf, b)
	}
	return idxBuf
}

// ResetTouched zeroes exactly the buckets idx names, leaving the rest of
// counts untouched. This is the "reset" half of the "reset + collect
// non-zero indices" helper pattern: callers avoid an
// O(NumBuckets) clear between samples.
func ResetTouched(counts []int32, idx []int32) {
	for _, i := range idx {
		counts[i] = 0
	}
}
