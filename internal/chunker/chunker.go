// Package chunker splits long scheme documents into passages sized for
// embedding. Sizes are counted in runes so Devanagari text is measured the
// same way as Latin text.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures passage sizes.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default passage sizes.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MaxSize: DefaultMaxSize}
}

// Split returns the passages of text in order. Text no longer than MaxSize is
// returned as one passage; empty text returns nil.
func Split(text string, opts Options) []string {
	if opts.TargetSize <= 0 || opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.TargetSize > opts.MaxSize {
		opts.TargetSize = opts.MaxSize
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size(text) <= opts.MaxSize {
		return []string{text}
	}

	var pieces []string
	for _, para := range paragraphs(text) {
		if size(para) <= opts.MaxSize {
			pieces = append(pieces, para)
			continue
		}
		for _, s := range sentences(para) {
			pieces = append(pieces, hardSplit(s, opts.MaxSize)...)
		}
	}
	return pack(pieces, opts.TargetSize)
}

func size(s string) int { return utf8.RuneCountInString(s) }

// paragraphs splits on blank lines and before markdown headings.
func paragraphs(text string) []string {
	var out []string
	var current []string
	flush := func() {
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			out = append(out, p)
		}
		current = nil
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case strings.HasPrefix(trimmed, "#"):
			flush()
			current = append(current, trimmed)
		default:
			current = append(current, trimmed)
		}
	}
	flush()
	return out
}

// sentences splits after '.', '?', '!' and the danda when followed by space.
func sentences(para string) []string {
	var out []string
	runes := []rune(para)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '?' && r != '!' && r != '।' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit cuts s at word boundaries so no piece exceeds max runes.
func hardSplit(s string, max int) []string {
	if size(s) <= max {
		return []string{s}
	}
	var out []string
	var b strings.Builder
	n := 0
	for _, w := range strings.Fields(s) {
		wl := size(w)
		if n > 0 && n+1+wl > max {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(w)
		n += wl
	}
	if n > 0 {
		out = append(out, b.String())
	}
	return out
}

// pack joins consecutive pieces while the result stays within target.
func pack(pieces []string, target int) []string {
	var out []string
	current := ""
	for _, p := range pieces {
		if current == "" {
			current = p
			continue
		}
		if size(current)+1+size(p) <= target {
			current += "\n" + p
			continue
		}
		out = append(out, current)
		current = p
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
