package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_EmptyInput(t *testing.T) {
	if result := Split("   ", DefaultOptions()); result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestSplit_ShortContent(t *testing.T) {
	text := "PM-KISAN pays Rs 6000 a year in three installments."
	result := Split(text, DefaultOptions())
	if len(result) != 1 || result[0] != text {
		t.Fatalf("expected the text as one passage, got %q", result)
	}
}

func TestSplit_SplitsOnHeadings(t *testing.T) {
	section := strings.Repeat("Farmers receive support under this component. ", 7)
	text := "# Eligibility\n" + section + "\n# Benefits\n" + section + "\n# How to apply\n" + section

	result := Split(text, DefaultOptions())
	if len(result) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(result))
	}
	if !strings.HasPrefix(result[0], "# Eligibility") {
		t.Errorf("first passage should start with the first heading, got %q", result[0])
	}
}

func TestSplit_RespectsMaxSize(t *testing.T) {
	opts := Options{TargetSize: 200, MaxSize: 300}
	text := strings.Repeat("Subsidy is released after field verification by the block officer. ", 20)
	result := Split(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(result))
	}
	for i, p := range result {
		if n := utf8.RuneCountInString(p); n > opts.MaxSize {
			t.Errorf("passage %d has %d runes, max %d", i, n, opts.MaxSize)
		}
	}
}

func TestSplit_LongSentenceHardSplit(t *testing.T) {
	opts := Options{TargetSize: 50, MaxSize: 80}
	text := strings.Repeat("word ", 100)
	for i, p := range Split(text, opts) {
		if n := utf8.RuneCountInString(p); n > opts.MaxSize {
			t.Errorf("passage %d has %d runes, max %d", i, n, opts.MaxSize)
		}
	}
}

func TestSplit_Devanagari(t *testing.T) {
	opts := Options{TargetSize: 100, MaxSize: 120}
	sentence := "किसानों को प्रति वर्ष छह हजार रुपये की सहायता दी जाती है। "
	text := strings.Repeat(sentence, 10)
	result := Split(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 passages, got %d", len(result))
	}
	if !strings.HasSuffix(result[0], "।") {
		t.Errorf("passage should end on a sentence boundary, got %q", result[0])
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Para one sentence. ", 30) + "\n\n" + strings.Repeat("Para two sentence. ", 30)
	a := Split(text, DefaultOptions())
	b := Split(text, DefaultOptions())
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Error("split is not deterministic")
	}
}
