package worker

import (
	"strings"
	"unicode/utf8"
)

// SplitParagraphs packs blank-line separated paragraphs into chunks of at
// most maxChars runes. A paragraph longer than maxChars is cut at line
// breaks first and then at the rune limit.
func SplitParagraphs(text string, maxChars int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, para := range splitLong(paragraphs(text), maxChars) {
		n := utf8.RuneCountInString(para)
		sep := 0
		if curLen > 0 {
			sep = 2
		}
		if curLen+sep+n > maxChars {
			flush()
			sep = 0
		}
		if sep > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
		curLen += sep + n
	}
	flush()
	return chunks
}

// JoinChunks reassembles translated chunks.
func JoinChunks(chunks []string) string {
	return strings.Join(chunks, "\n\n")
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitLong(paras []string, maxChars int) []string {
	var out []string
	for _, p := range paras {
		if utf8.RuneCountInString(p) <= maxChars {
			out = append(out, p)
			continue
		}

		var line strings.Builder
		lineLen := 0
		for _, l := range strings.Split(p, "\n") {
			for _, piece := range cutRunes(l, maxChars) {
				n := utf8.RuneCountInString(piece)
				if lineLen > 0 && lineLen+1+n > maxChars {
					out = append(out, line.String())
					line.Reset()
					lineLen = 0
				}
				if lineLen > 0 {
					line.WriteByte('\n')
					lineLen++
				}
				line.WriteString(piece)
				lineLen += n
			}
		}
		if lineLen > 0 {
			out = append(out, line.String())
		}
	}
	return out
}

func cutRunes(s string, max int) []string {
	runes := []rune(s)
	if len(runes) <= max {
		return []string{s}
	}
	var out []string
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
