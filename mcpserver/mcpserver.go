package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"wikirag_web/config"
	"wikirag_web/wikirag"
)

const (
	serverName    = "wikirag"
	serverVersion = "v0.1.0"
	toolName      = "ask_wiki"
)

// Asker answers one question. *wikirag.Client implements it.
type Asker interface {
	Ask(ctx context.Context, q wikirag.Query) (wikirag.Answer, error)
}

// AskInput is the ask_wiki tool input.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from Wikipedia"`
	Model    string `json:"model,omitempty" jsonschema:"language model used by wikirag"`
	Pages    string `json:"pages,omitempty" jsonschema:"number of Wikipedia pages to retrieve"`
}

// AskResult is the ask_wiki tool output.
type AskResult struct {
	Answer      string   `json:"answer"`
	References  []string `json:"references"`
	Diagnostics string   `json:"diagnostics,omitempty"`
}

// New returns an MCP server exposing the ask_wiki tool.
func New(asker Asker, defaults config.DefaultsConfig) (*mcp.Server, error) {
	if asker == nil {
		return nil, errors.New("asker required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, askTool(), askHandler(asker, defaults))
	return server, nil
}

// Run serves MCP over stdio until ctx ends.
func Run(ctx context.Context, asker Asker, defaults config.DefaultsConfig) error {
	server, err := New(asker, defaults)
	if err != nil {
		return err
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}

func askTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        toolName,
		Description: "Answers a question using retrieval over Wikipedia and returns the answer with its reference links",
	}
}

func askHandler(asker Asker, defaults config.DefaultsConfig) mcp.ToolHandlerFor[AskInput, AskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskResult, error) {
		q := wikirag.Query{Question: input.Question, Model: input.Model, Pages: input.Pages}
		if q.Model == "" {
			q.Model = defaults.Model
		}
		if q.Pages == "" {
			q.Pages = defaults.Pages
		}
		ans, err := asker.Ask(ctx, q)
		if err != nil {
			return nil, AskResult{}, fmt.Errorf("ask wikirag: %w", err)
		}
		refs := ans.References
		if refs == nil {
			refs = []string{}
		}
		return nil, AskResult{
			Answer:      ans.Text,
			References:  refs,
			Diagnostics: ans.Diagnostics,
		}, nil
	}
}
