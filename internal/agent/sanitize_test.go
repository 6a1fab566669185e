package agent

import (
	"strings"
	"testing"
)

func TestSanitizePromptDropsNUL(t *testing.T) {
	tests := []string{
		"\x00",
		"hello\x00world",
		"\x00\x00lead and trail\x00",
		"no nul here",
	}
	for _, in := range tests {
		got := SanitizePrompt(in)
		if strings.ContainsRune(got, 0) {
			t.Errorf("SanitizePrompt(%q) = %q still contains NUL", in, got)
		}
		if want := len(in) - strings.Count(in, "\x00"); len(got) != want {
			t.Errorf("len(SanitizePrompt(%q)) = %d, want %d", in, len(got), want)
		}
	}
}

func TestSanitizePromptReplacesControlChars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "escape sequence", in: "\x1b[31mred\x1b[0m", want: " [31mred [0m"},
		{name: "bell and backspace", in: "a\x07b\x08c", want: "a b c"},
		{name: "keeps tab lf cr", in: "a\tb\nc\rd", want: "a\tb\nc\rd"},
		{name: "unit separator", in: "x\x1fy", want: "x y"},
		{name: "del untouched", in: "x\x7fy", want: "x\x7fy"},
		{name: "unicode untouched", in: "héllo → 世界", want: "héllo → 世界"},
		{name: "mixed", in: "\x00\x01\t\x02", want: " \t "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePrompt(tt.in); got != tt.want {
				t.Fatalf("SanitizePrompt(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizePromptEveryC0Byte(t *testing.T) {
	for c := byte(1); c < 0x20; c++ {
		got := SanitizePrompt(string([]byte{'a', c, 'b'}))
		want := "a b"
		if c == '\t' || c == '\n' || c == '\r' {
			want = string([]byte{'a', c, 'b'})
		}
		if got != want {
			t.Errorf("byte 0x%02x: got %q, want %q", c, got, want)
		}
	}
}

func TestBuildArgsSanitizesAndOrders(t *testing.T) {
	r := &Runner{Command: "kimi", Args: []string{"--model", "k2"}}
	got := r.BuildArgs("do\x00 it\x1b")
	want := []string{"--model", "k2", "--print", "--output-format", "stream-json", "--command", "do it "}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("BuildArgs() = %q, want %q", got, want)
	}
}
