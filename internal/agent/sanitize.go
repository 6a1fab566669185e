package agent

import "strings"

// SanitizePrompt prepares prompt text for use as a process argument.
//
// NUL bytes are dropped, since they truncate argv entries. Every other C0
// control byte except tab, LF and CR becomes a single space. The prompt is
// already passed as a discrete argv element and never through a shell; this
// keeps terminal control sequences out of anything downstream that might
// echo or re-interpret the prompt. Multi-byte UTF-8 sequences never contain
// C0 bytes, so the byte-wise scan is safe for non-ASCII text.
func SanitizePrompt(prompt string) string {
	var b strings.Builder
	b.Grow(len(prompt))
	for i := 0; i < len(prompt); i++ {
		c := prompt[i]
		switch {
		case c == 0x00:
			continue
		case c < 0x20 && c != '\t' && c != '\n' && c != '\r':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
