package wikirag

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Client asks the tool one question and returns the parsed answer.
type Client struct {
	runner Runner
}

func NewClient(runner Runner) (*Client, error) {
	if runner == nil {
		return nil, errors.New("wikirag runner is required")
	}
	return &Client{runner: runner}, nil
}

// Ask runs the tool for q and parses its output. On error no Answer is
// produced.
func (c *Client) Ask(ctx context.Context, q Query) (Answer, error) {
	raw, err := c.runner.Invoke(ctx, q)
	if err != nil {
		return Answer{}, err
	}
	if raw.ExitCode != 0 {
		zerolog.Ctx(ctx).Warn().Int("exit_code", raw.ExitCode).Msg("wikirag exited with non-zero status")
	}
	return Parse(raw.Stdout, raw.Stderr), nil
}
