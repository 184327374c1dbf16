// Package detect scans agent responses for completion markers.
//
// Matching is deliberately strict: the first well-formed marker in the
// response is extracted and compared exact-string against the markers
// expected for the current unit. Anything else is "no signal this round",
// which is always safe because rendering is idempotent and the loop simply
// re-issues the same instruction.
package detect

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/worksonmyai/relay/internal/protocol"
)

var markerRe = regexp.MustCompile(
	regexp.QuoteMeta(protocol.MarkerOpen) + `([^<>\n]+)` + regexp.QuoteMeta(protocol.MarkerClose),
)

// Result classifies a detection pass.
type Result struct {
	// Tag is the extracted marker content when Matched.
	Tag string
	// Matched reports an exact match against an expected marker.
	Matched bool
	// Unexpected is the first marker content found that matched none of
	// the expected tags; empty when no marker was present at all.
	Unexpected string
}

// Detect extracts the first well-formed marker from response and compares
// it against the expected tags. Subsequent markers are ignored.
func Detect(response string, expected []string) Result {
	m := markerRe.FindStringSubmatch(response)
	if m == nil {
		return Result{}
	}
	tag := strings.TrimSpace(m[1])
	for _, want := range expected {
		if tag == want {
			return Result{Tag: tag, Matched: true}
		}
	}
	return Result{Unexpected: tag}
}

// ExtractTranscriptText pulls assistant text out of a stream-json agent
// transcript (one JSON event per line). Non-JSON lines are passed through
// untouched so plain-text responses keep working.
func ExtractTranscriptText(transcript string) string {
	var b strings.Builder
	for line := range strings.SplitSeq(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			b.WriteString(line)
			b.WriteString("\n")
			continue
		}
		event := gjson.Parse(line)
		switch event.Get("type").String() {
		case "assistant":
			for _, block := range event.Get("message.content").Array() {
				if block.Get("type").String() == "text" {
					b.WriteString(block.Get("text").String())
					b.WriteString("\n")
				}
			}
		case "result":
			if text := event.Get("result").String(); text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
