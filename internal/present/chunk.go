package present

import (
	"strings"
	"unicode/utf8"
)

// MaxChunk is the payload ceiling, in characters, of one result message.
const MaxChunk = 4096

// Chunk splits block into ceil(n/max) pieces of at most max characters, n
// being the block's character count. Concatenating the pieces yields block
// exactly. A piece ends after the last newline in its window as long as the
// rest still fits in the remaining pieces. A non-positive max means
// [MaxChunk].
func Chunk(block string, max int) []string {
	if max <= 0 {
		max = MaxChunk
	}
	if block == "" {
		return nil
	}

	var chunks []string
	for block != "" {
		n := utf8.RuneCountInString(block)
		if n <= max {
			chunks = append(chunks, block)
			break
		}

		// Byte offset just past the max-th rune.
		end := 0
		for i := 0; i < max; i++ {
			_, size := utf8.DecodeRuneInString(block[end:])
			end += size
		}

		// Shortest piece that leaves the rest to full-size pieces.
		minPiece := n - (ceilDiv(n, max)-1)*max
		if nl := strings.LastIndexByte(block[:end], '\n'); nl >= 0 && utf8.RuneCountInString(block[:nl+1]) >= minPiece {
			end = nl + 1
		}

		chunks = append(chunks, block[:end])
		block = block[end:]
	}
	return chunks
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// ChunkAll chunks every block in order.
func ChunkAll(blocks []string, max int) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, Chunk(b, max)...)
	}
	return out
}
