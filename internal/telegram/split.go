package telegram

import (
	"strings"
	"unicode/utf16"
)

// TextLen measures s the way Telegram does, in UTF-16 code units.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += runeLen(r)
	}
	return n
}

func runeLen(r rune) int {
	if l := utf16.RuneLen(r); l > 0 {
		return l
	}
	return 1
}

// Split breaks text into chunks of at most limit units. Text is cut before
// each occurrence of sep; a piece that alone exceeds the limit is cut on line
// boundaries, and a line that still exceeds it is cut between runes. Pieces
// are packed greedily, so joining the chunks yields text unchanged.
func Split(text string, limit int, sep string) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || TextLen(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	add := func(p string) {
		n := TextLen(p)
		if curLen+n > limit {
			flush()
		}
		cur.WriteString(p)
		curLen += n
	}

	for _, p := range pieces(text, sep) {
		if TextLen(p) <= limit {
			add(p)
			continue
		}
		for _, f := range fragments(p, limit) {
			add(f)
		}
	}
	flush()
	return chunks
}

// pieces cuts text before every sep, keeping sep at the start of each piece.
func pieces(text, sep string) []string {
	if sep == "" {
		return []string{text}
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

// fragments cuts an oversized piece into lines, hard-splitting long lines.
func fragments(p string, limit int) []string {
	var out []string
	for _, line := range strings.SplitAfter(p, "\n") {
		if line == "" {
			continue
		}
		if TextLen(line) <= limit {
			out = append(out, line)
			continue
		}
		out = append(out, hardSplit(line, limit)...)
	}
	return out
}

func hardSplit(s string, limit int) []string {
	var out []string
	start, n := 0, 0
	for i, r := range s {
		rl := runeLen(r)
		if n > 0 && n+rl > limit {
			out = append(out, s[start:i])
			start, n = i, 0
		}
		n += rl
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
