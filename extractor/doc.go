package extractor

import (
	"strings"
	"unicode"
)

// minRun is the shortest printable run kept from a legacy binary document
const minRun = 4

// extractDOC recovers text from a legacy Word binary. The text stream is
// either 8-bit or UTF-16LE depending on the file, so both readings are
// scanned for printable runs and the one carrying more letters wins.
func extractDOC(data []byte) (string, error) {
	narrow := printableRuns8(data)
	wide := printableRuns16(data)
	if letterCount(wide) > letterCount(narrow) {
		return wide, nil
	}
	return narrow, nil
}

func printableRuns8(data []byte) string {
	var (
		out strings.Builder
		run []byte
	)
	flush := func() {
		if len(run) >= minRun && hasLetter(string(run)) {
			out.Write(run)
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for _, c := range data {
		if isPrintableByte(c) {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

func printableRuns16(data []byte) string {
	var (
		out strings.Builder
		run []rune
	)
	flush := func() {
		if len(run) >= minRun && hasLetter(string(run)) {
			out.WriteString(string(run))
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		r := rune(data[i]) | rune(data[i+1])<<8
		if r < 0x80 && isPrintableByte(byte(r)) || isWideText(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

// isWideText limits the UTF-16 reading to Latin letters and common
// punctuation; two ASCII bytes read as one rune otherwise land in CJK
// ranges and look like text.
func isWideText(r rune) bool {
	return r >= 0xA0 && r <= 0x24F || r >= 0x2010 && r <= 0x2027
}

func isPrintableByte(c byte) bool {
	return c >= 0x20 && c < 0x7F || c == '\t' || c == '\r' || c == '\n'
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
