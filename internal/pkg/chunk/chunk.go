// Package chunk 将实体描述切分为有界、前向重叠的文本片段。
//
// Split is a pure function of its arguments: identical input always yields an
// identical chunk sequence, which keeps document identities stable across
// reindex runs.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChars 默认片段最大长度（字符）
	DefaultMaxChars = 400
	// DefaultOverlapChars 默认窗口重叠长度（字符）
	DefaultOverlapChars = 60
	// MinChunkLength 短于该长度的片段会被丢弃（仅剩一个片段时除外）
	MinChunkLength = 30

	paragraphSeparator = "\n\n"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Chunk is one bounded text segment of an entity.
type Chunk struct {
	// Index is zero-based and gapless within one entity.
	Index    int    `json:"index"`
	Content  string `json:"content"`
	IsHeader bool   `json:"is_header"`
}

// Split cuts text into ordered chunks of at most maxSize characters.
// Paragraphs are packed together while they fit; a buffer that still exceeds
// maxSize is sliced into windows overlapping the next window by overlap
// characters. Lengths are counted in runes.
func Split(text string, maxSize, overlap int) []Chunk {
	if maxSize <= 0 {
		maxSize = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}

	if strings.TrimSpace(text) == "" {
		return []Chunk{}
	}

	raw := pack(paragraphs(text), maxSize, overlap)

	if len(raw) > 1 {
		kept := make([]string, 0, len(raw))
		for _, c := range raw {
			if utf8.RuneCountInString(c) >= MinChunkLength {
				kept = append(kept, c)
			}
		}
		raw = kept
	}

	chunks := make([]Chunk, len(raw))
	for i, c := range raw {
		chunks[i] = Chunk{Index: i, Content: c, IsHeader: i == 0}
	}
	return chunks
}

// paragraphs splits on blank lines and drops empty paragraphs.
func paragraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pack folds paragraphs into buffers and flushes every buffer into windows.
func pack(paras []string, maxSize, overlap int) []string {
	var (
		out    []string
		buf    string
		bufLen int
	)

	for _, p := range paras {
		pLen := utf8.RuneCountInString(p)
		if buf != "" && bufLen+pLen+len(paragraphSeparator) > maxSize {
			out = append(out, window(buf, maxSize, overlap)...)
			buf, bufLen = "", 0
		}

		if buf == "" {
			buf, bufLen = p, pLen
		} else {
			buf += paragraphSeparator + p
			bufLen += len(paragraphSeparator) + pLen
		}

		if bufLen >= maxSize {
			out = append(out, window(buf, maxSize, overlap)...)
			buf, bufLen = "", 0
		}
	}

	if buf != "" {
		out = append(out, window(buf, maxSize, overlap)...)
	}
	return out
}

// window slices an oversized buffer into [start, start+maxSize) windows.
// The next window starts overlap characters before the previous end.
func window(buf string, maxSize, overlap int) []string {
	trimmed := strings.TrimSpace(buf)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= maxSize {
		return []string{trimmed}
	}

	var out []string
	for start := 0; start < len(runes); {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
