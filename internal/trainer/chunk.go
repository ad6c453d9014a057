package trainer

import (
	"bufio"
	"math/rand"
	"os"
	"strings"
)

// chunk holds one chunk's worth of parsed (lang, text) pairs, read into two
// parallel slices texts[], labels[].
type chunk struct {
	Langs []string
	Texts []string
}

func (c *chunk) Len() int { return len(c.Langs) }

// readChunk seeks to offset and reads up to maxLines valid "lang\ttext"
// lines, skipping malformed ones (counted, not fatal).
func readChunk(filePath string, offset int64, maxLines int) (*chunk, int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	if _, err := f.Seek(offset, 0); err != nil {
		return nil, 0, err
	}

	c := &chunk{}
	var skipped int64
	r := bufio.NewReader(f)
	for len(c.Langs) < maxLines {
		line, err := r.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed != "" {
			tab := strings.IndexByte(trimmed, '\t')
			if tab < 0 || tab == 0 {
				skipped++
			} else {
				c.Langs = append(c.Langs, trimmed[:tab])
				c.Texts = append(c.Texts, trimmed[tab+1:])
			}
		}
		if err != nil {
			break
		}
	}
	return c, skipped, nil
}

// fisherYates shuffles the chunk's parallel arrays in lockstep, seeded per
// (epoch, chunkIndex), to break within-chunk language clumping.
func (c *chunk) fisherYates(seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := c.Len() - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		c.Langs[i], c.Langs[j] = c.Langs[j], c.Langs[i]
		c.Texts[i], c.Texts[j] = c.Texts[j], c.Texts[i]
	}
}

// shuffleChunkOrder returns a permutation of [0, n) seeded by
// (baseSeed, epochIndex), step 1.
func shuffleChunkOrder(n int, baseSeed int64, epochIndex int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	r := rand.New(rand.NewSource(baseSeed + int64(epochIndex)*1_000_003))
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// chunkSeed derives the Fisher-Yates seed for a given (epoch, chunkIndex)
// pair.
func chunkSeed(baseSeed int64, epochIndex, chunkIndex int) int64 {
	return baseSeed + int64(epochIndex)*1_000_003 + int64(chunkIndex)*7919
}
