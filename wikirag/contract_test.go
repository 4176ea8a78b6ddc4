package wikirag

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// TestToolOutputContract runs the installed tool and fails if its output no
// longer carries LinksMarker. Set WIKIRAG_CONTRACT_TOOL to the tool path.
func TestToolOutputContract(t *testing.T) {
	tool := os.Getenv("WIKIRAG_CONTRACT_TOOL")
	if tool == "" {
		t.Skip("WIKIRAG_CONTRACT_TOOL not set")
	}
	model := os.Getenv("WIKIRAG_CONTRACT_MODEL")
	if model == "" {
		model = "llama3"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	res, err := NewInvoker(tool).Invoke(ctx, Query{
		Question: "What is the capital of France?",
		Model:    model,
		Pages:    "1",
	})
	if err != nil {
		t.Fatalf("invoke err: %v", err)
	}
	if !strings.Contains(res.Stdout, LinksMarker) {
		t.Fatalf("tool output lacks %q (protocol v%d); stdout:\n%s\nstderr:\n%s",
			LinksMarker, ProtocolVersion, res.Stdout, res.Stderr)
	}
	if ans := Parse(res.Stdout, res.Stderr); len(ans.References) == 0 {
		t.Fatalf("tool returned no references after the marker; stdout:\n%s", res.Stdout)
	}
}
