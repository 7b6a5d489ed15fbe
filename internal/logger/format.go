package logger

import "strings"

// stripAnsiCodes removes CSI sequences (\x1b[ ... letter) from s. Bare
// escape bytes that don't open a sequence pass through untouched.
func stripAnsiCodes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			// swallow up to and including the terminating letter
			i += 2
			for i < len(s) && !isAnsiTerminator(s[i]) {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}

	return b.String()
}

func isAnsiTerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
