package report

import "strings"

// Legacy Telegram Markdown treats these as entity delimiters.
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// EscapeMarkdown makes user-supplied text safe inside a Markdown message.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// BoldMarkdown renders s in bold. Entities cannot contain escapes, so the bold
// run is closed before each delimiter character and reopened after it.
func BoldMarkdown(s string) string {
	var sb strings.Builder
	start := 0
	flush := func(end int) {
		if end > start {
			sb.WriteString("*" + s[start:end] + "*")
		}
	}
	for i, r := range s {
		switch r {
		case '_', '*', '`', '[':
			flush(i)
			sb.WriteString(`\` + string(r))
			start = i + 1
		}
	}
	flush(len(s))
	return sb.String()
}
