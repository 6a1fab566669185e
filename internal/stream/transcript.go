// Package stream recovers results from the line-delimited JSON transcript
// the kimi CLI prints in stream-json mode.
//
// Each stdout line is either a JSON record or diagnostic noise. Records
// look like:
//
//	{"role":"assistant","content":"plain text"}
//	{"role":"assistant","content":[{"type":"think","think":"..."},{"type":"text","text":"answer"}]}
//	{"role":"tool","content":[...],"tool_call_id":"..."}
//
// Only role and content are interpreted; everything else is kept verbatim
// in the raw record list.
package stream

import (
	"encoding/json"
	"strings"
)

// Transcript is the parsed form of a captured output.
type Transcript struct {
	// FinalText is the text of the last assistant record, or "" when the
	// transcript holds none.
	FinalText string `json:"final_text"`
	// Raw holds every line that decoded as JSON, in order.
	Raw []any `json:"raw"`
}

// ParseTranscript parses captured stdout lines. Blank and non-JSON lines
// are skipped without error.
func ParseTranscript(lines []string) Transcript {
	var acc Accumulator
	for _, line := range lines {
		acc.Add(line)
	}
	return acc.Transcript()
}

// Accumulator folds transcript lines one at a time, so callers can track
// the latest assistant text while the process is still running. The zero
// value is ready to use; it is not safe for concurrent use.
type Accumulator struct {
	finalText string
	raw       []any
	sawText   bool
}

// Add consumes one line and reports whether it was a JSON record.
func (a *Accumulator) Add(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	var v any
	if err := json.Unmarshal([]byte(line), &v); err != nil {
		return false
	}
	a.raw = append(a.raw, v)

	rec, ok := v.(map[string]any)
	if !ok {
		return true
	}
	if role, _ := rec["role"].(string); role != "assistant" {
		return true
	}
	content, ok := rec["content"]
	if !ok {
		return true
	}
	// Later assistant records replace earlier ones.
	a.finalText = contentText(content)
	a.sawText = true
	return true
}

// FinalText returns the text of the most recent assistant record so far.
func (a *Accumulator) FinalText() string { return a.finalText }

// HasAssistant reports whether any assistant record with content was seen.
func (a *Accumulator) HasAssistant() bool { return a.sawText }

// Len returns the number of JSON records consumed.
func (a *Accumulator) Len() int { return len(a.raw) }

// Last returns the most recent JSON record, or nil.
func (a *Accumulator) Last() any {
	if len(a.raw) == 0 {
		return nil
	}
	return a.raw[len(a.raw)-1]
}

// Describe returns the role and text of a decoded record. Text is taken
// from content the same way for every role. A record that is not an
// object, or has no string role, yields empty strings.
func Describe(record any) (role, text string) {
	rec, ok := record.(map[string]any)
	if !ok {
		return "", ""
	}
	role, _ = rec["role"].(string)
	if role == "" {
		return "", ""
	}
	return role, contentText(rec["content"])
}

// Transcript returns the accumulated result. The raw slice is shared.
func (a *Accumulator) Transcript() Transcript {
	raw := a.raw
	if raw == nil {
		raw = []any{}
	}
	return Transcript{FinalText: a.finalText, Raw: raw}
}

// contentText extracts text from a content field. A string is used as is.
// For a list of parts, the text of the last part typed "text" wins; other
// part types are ignored. Any other shape yields "".
func contentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		text := ""
		for _, part := range c {
			p, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if typ, _ := p["type"].(string); typ != "text" {
				continue
			}
			s, _ := p["text"].(string)
			text = s
		}
		return text
	}
	return ""
}
