package ingest

import (
	"regexp"
	"strings"
)

var (
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
	// sentenceEndRe matches the whitespace after a sentence terminator.
	sentenceEndRe = regexp.MustCompile(`([.!?。！？])\s+`)
)

// SplitSentences breaks text into sentences. Paragraph breaks always end a
// sentence; single line breaks inside a paragraph do not.
func SplitSentences(s string) []string {
	var out []string
	for _, para := range paragraphRe.Split(s, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		marked := sentenceEndRe.ReplaceAllString(para, "$1\x00")
		for _, sent := range strings.Split(marked, "\x00") {
			if sent = strings.TrimSpace(sent); sent != "" {
				out = append(out, sent)
			}
		}
	}
	return out
}

// ChunkSentences groups sentences into windows of size, each sharing
// overlap sentences with the previous one.
func ChunkSentences(sentences []string, size, overlap int) []string {
	if size <= 0 {
		size = 5
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var chunks []string
	for start := 0; start < len(sentences); start += step {
		end := min(start+size, len(sentences))
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
		if end == len(sentences) {
			break
		}
	}
	return chunks
}
