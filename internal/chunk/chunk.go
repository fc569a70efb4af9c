// Package chunk splits long LLM answers into LINE-sized text messages.
package chunk

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxLength = 900
	// DefaultMaxCount is the LINE limit on messages per reply call.
	DefaultMaxCount = 5
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Split breaks text on blank lines, hard-splits any paragraph longer than
// maxLength runes, and returns the first maxCount chunks. Whatever did not fit
// is returned as overflow, in order.
func Split(text string, maxLength, maxCount int) (chunks, overflow []string) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var all []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		all = append(all, hardSplit(p, maxLength)...)
	}

	if len(all) <= maxCount {
		return all, nil
	}
	return all[:maxCount], all[maxCount:]
}

func hardSplit(p string, maxLength int) []string {
	runes := []rune(p)
	if len(runes) <= maxLength {
		return []string{p}
	}
	parts := make([]string, 0, len(runes)/maxLength+1)
	for start := 0; start < len(runes); start += maxLength {
		end := start + maxLength
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
