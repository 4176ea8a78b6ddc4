package wikirag

import (
	"context"
	"fmt"
	"strings"
)

// MockRunner answers without starting a process, for local debugging.
type MockRunner struct{}

func (MockRunner) Invoke(_ context.Context, q Query) (RawResult, error) {
	var sb strings.Builder
	sb.WriteString("**Mock answer** for: ")
	sb.WriteString(q.Question)
	sb.WriteString("\n\n")
	sb.WriteString("No wikirag tool was run.\n")
	sb.WriteString(LinksMarker)
	sb.WriteString("https://en.wikipedia.org/wiki/Retrieval-augmented_generation\n")
	return RawResult{
		Stdout: sb.String(),
		Stderr: fmt.Sprintf("mock: %s=%s %s=%s\n", EnvModel, q.Model, EnvPages, q.Pages),
	}, nil
}
