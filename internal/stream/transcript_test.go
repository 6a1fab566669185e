package stream

import (
	"strings"
	"testing"
)

func TestParseTranscriptLastAssistantWins(t *testing.T) {
	lines := []string{
		`{"role":"user","content":"go"}`,
		`{"role":"assistant","content":"A"}`,
		`{"role":"tool","content":"ls output"}`,
		`{"role":"assistant","content":"B"}`,
	}
	got := ParseTranscript(lines)
	if got.FinalText != "B" {
		t.Fatalf("FinalText = %q, want %q", got.FinalText, "B")
	}
	if len(got.Raw) != 4 {
		t.Fatalf("len(Raw) = %d, want 4", len(got.Raw))
	}
}

func TestParseTranscriptSkipsNoise(t *testing.T) {
	lines := []string{
		`{"role":"user","content":"go"}`,
		`Loading model... done`,
		``,
		`   `,
		`{"role":"assistant","content":"ok"`,
		`{"role":"assistant","content":"ok"}`,
	}
	got := ParseTranscript(lines)
	if len(got.Raw) != 2 {
		t.Fatalf("len(Raw) = %d, want 2", len(got.Raw))
	}
	if got.FinalText != "ok" {
		t.Fatalf("FinalText = %q", got.FinalText)
	}
}

func TestParseTranscriptContentParts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "last text part wins",
			content: `[{"type":"text","text":"first"},{"type":"think","think":"hmm"},{"type":"text","text":"second"}]`,
			want:    "second",
		},
		{
			name:    "non-text parts ignored",
			content: `[{"type":"text","text":"answer"},{"type":"image_url","image_url":{"url":"x"}}]`,
			want:    "answer",
		},
		{
			name:    "no text parts",
			content: `[{"type":"think","think":"only thoughts"}]`,
			want:    "",
		},
		{
			name:    "non-object parts skipped",
			content: `["loose", 3, {"type":"text","text":"kept"}]`,
			want:    "kept",
		},
		{name: "number content", content: `42`, want: ""},
		{name: "object content", content: `{"text":"nope"}`, want: ""},
		{name: "null content", content: `null`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{
				`{"role":"assistant","content":"earlier"}`,
				`{"role":"assistant","content":` + tt.content + `}`,
			}
			if got := ParseTranscript(lines).FinalText; got != tt.want {
				t.Fatalf("FinalText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTranscriptAssistantWithoutContentKeepsPrevious(t *testing.T) {
	lines := []string{
		`{"role":"assistant","content":"kept"}`,
		`{"role":"assistant","tool_calls":[{"id":"1"}]}`,
	}
	if got := ParseTranscript(lines).FinalText; got != "kept" {
		t.Fatalf("FinalText = %q, want kept", got)
	}
}

func TestParseTranscriptNoAssistant(t *testing.T) {
	lines := []string{
		`{"role":"user","content":"hi"}`,
		`[1,2,3]`,
		`"bare string"`,
	}
	got := ParseTranscript(lines)
	if got.FinalText != "" {
		t.Fatalf("FinalText = %q, want empty", got.FinalText)
	}
	if len(got.Raw) != 3 {
		t.Fatalf("len(Raw) = %d, want 3", len(got.Raw))
	}
}

func TestParseTranscriptEmpty(t *testing.T) {
	got := ParseTranscript(nil)
	if got.FinalText != "" || got.Raw == nil || len(got.Raw) != 0 {
		t.Fatalf("ParseTranscript(nil) = %+v", got)
	}
}

func TestAccumulatorIncremental(t *testing.T) {
	var acc Accumulator
	if acc.HasAssistant() {
		t.Fatal("zero Accumulator reports assistant text")
	}
	feed := strings.Split(`{"role":"assistant","content":"step 1"}
not json
{"role":"assistant","content":[{"type":"text","text":"step 2"}]}`, "\n")

	if !acc.Add(feed[0]) || acc.FinalText() != "step 1" {
		t.Fatalf("after first line FinalText = %q", acc.FinalText())
	}
	if acc.Add(feed[1]) {
		t.Fatal("Add() accepted a non-JSON line")
	}
	acc.Add(feed[2])
	if acc.FinalText() != "step 2" || acc.Len() != 2 || !acc.HasAssistant() {
		t.Fatalf("FinalText = %q Len = %d", acc.FinalText(), acc.Len())
	}
}

func TestDescribe(t *testing.T) {
	var acc Accumulator
	if acc.Last() != nil {
		t.Fatal("Last() on empty accumulator should be nil")
	}
	acc.Add(`{"role":"tool","content":[{"type":"text","text":"ls output"}],"tool_call_id":"c1"}`)
	role, text := Describe(acc.Last())
	if role != "tool" || text != "ls output" {
		t.Fatalf("Describe = %q, %q", role, text)
	}

	acc.Add(`[1,2]`)
	if role, text := Describe(acc.Last()); role != "" || text != "" {
		t.Fatalf("Describe(array) = %q, %q", role, text)
	}
	if role, _ := Describe(map[string]any{"role": 7}); role != "" {
		t.Fatalf("non-string role = %q", role)
	}
}
