package wikirag

import "strings"

// LinksMarker separates the answer from the reference list in the tool's
// stdout. It is the wire contract with the tool; bump ProtocolVersion when it
// changes.
const LinksMarker = "***Links***:\n"

// ProtocolVersion identifies the output format Parse understands.
const ProtocolVersion = 1

// Parse splits tool output into the answer text and the references that
// follow the first LinksMarker. Empty lines are dropped; nothing is trimmed.
func Parse(stdout, stderr string) Answer {
	ans := Answer{
		Text:        stdout,
		Diagnostics: stderr,
		References:  []string{},
	}
	pos := strings.Index(stdout, LinksMarker)
	if pos < 0 {
		return ans
	}
	ans.Text = stdout[:pos]
	for _, line := range strings.Split(stdout[pos+len(LinksMarker):], "\n") {
		if line == "" {
			continue
		}
		ans.References = append(ans.References, line)
	}
	return ans
}
