package analyzer

import (
	"regexp"
	"strings"
)

const (
	// TailChars is the fallback window when no error keyword is found.
	TailChars = 4000

	linesBefore   = 50
	linesAfter    = 100
	maxWindowSize = 16000
	snippetLines  = 200
)

var (
	reANSI    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[()][0-9A-Za-z]`)
	reSection = regexp.MustCompile(`section_(?:start|end):\d+:[\w.\-\[\]]+\r?`)
)

var errorKeywords = []string{
	"error",
	"failed",
	"failure",
	"exception",
	"traceback",
	"fatal",
	"panic:",
	"timed out",
	"cannot find",
	"not found",
	"vulnerab",
}

// StripANSI removes terminal escape codes and CI section markers.
func StripANSI(s string) string {
	s = reANSI.ReplaceAllString(s, "")
	return reSection.ReplaceAllString(s, "")
}

// CleanLog strips escape codes and keeps the last 200 lines.
func CleanLog(raw string) string {
	lines := strings.Split(StripANSI(raw), "\n")
	if len(lines) > snippetLines {
		lines = lines[len(lines)-snippetLines:]
	}
	return strings.Join(lines, "\n")
}

// FailureWindow centres the log on the last line mentioning an error
// keyword: 50 lines before it and 100 after. Without a keyword it returns
// the last TailChars characters.
func FailureWindow(logText string) string {
	lines := strings.Split(logText, "\n")
	last := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if hasErrorKeyword(lines[i]) {
			last = i
			break
		}
	}
	if last < 0 {
		return tail(logText, TailChars)
	}

	start := max(last-linesBefore, 0)
	end := min(last+linesAfter+1, len(lines))
	window := strings.Join(lines[start:end], "\n")
	if len(window) > maxWindowSize {
		window = tail(window, maxWindowSize)
	}
	return window
}

func hasErrorKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	// Avoid starting mid-rune.
	for i := 0; i < len(s) && i < 4; i++ {
		if s[i]&0xC0 != 0x80 {
			return s[i:]
		}
	}
	return s
}
