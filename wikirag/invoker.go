package wikirag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Environment variables read by the wikirag tool.
const (
	EnvModel = "AI_MODEL"
	EnvPages = "WIKI_PAGES"
)

const defaultWaitDelay = 5 * time.Second

// Runner runs the tool once for a query. Invoker is the production
// implementation; MockRunner serves local runs without the tool installed.
type Runner interface {
	Invoke(ctx context.Context, q Query) (RawResult, error)
}

// Invoker runs the external wikirag tool as a child process, one process per
// query.
type Invoker struct {
	command   string
	args      []string
	env       []string
	timeout   time.Duration
	waitDelay time.Duration
}

type InvokerOption func(*Invoker)

// WithArgs sets the command line arguments. The stock tool takes none.
func WithArgs(args ...string) InvokerOption {
	return func(inv *Invoker) { inv.args = append([]string(nil), args...) }
}

// WithEnv adds KEY=VALUE entries to the child's environment. AI_MODEL and
// WIKI_PAGES are always set from the query and win over these.
func WithEnv(kv ...string) InvokerOption {
	return func(inv *Invoker) { inv.env = append(inv.env, kv...) }
}

// WithTimeout bounds a single run. Zero means the caller's context is the
// only limit.
func WithTimeout(d time.Duration) InvokerOption {
	return func(inv *Invoker) { inv.timeout = d }
}

// WithWaitDelay bounds how long output pipes may stay open after the child
// has exited or been killed.
func WithWaitDelay(d time.Duration) InvokerOption {
	return func(inv *Invoker) { inv.waitDelay = d }
}

func NewInvoker(command string, opts ...InvokerOption) *Invoker {
	inv := &Invoker{command: command, waitDelay: defaultWaitDelay}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func (inv *Invoker) Command() string { return inv.command }

// Invoke starts the tool, writes the question to its stdin on a separate
// goroutine and blocks until the process exits. A non-zero exit status is
// recorded in RawResult.ExitCode and is not an error.
func (inv *Invoker) Invoke(ctx context.Context, q Query) (RawResult, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}
	log := zerolog.Ctx(ctx).With().
		Str("command", inv.command).
		Str("model", q.Model).
		Str("pages", q.Pages).
		Logger()

	cmd := exec.CommandContext(ctx, inv.command, inv.args...)
	cmd.Env = append(os.Environ(), inv.env...)
	cmd.Env = append(cmd.Env, EnvModel+"="+q.Model, EnvPages+"="+q.Pages)
	cmd.WaitDelay = inv.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return RawResult{}, &SpawnError{Command: inv.command, Err: err}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		log.Warn().Err(err).Msg("wikirag failed to start")
		return RawResult{}, &SpawnError{Command: inv.command, Err: err}
	}
	log.Debug().Int("pid", cmd.Process.Pid).Msg("wikirag started")

	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		if _, err := io.WriteString(stdin, q.Question+"\n"); err != nil && !isClosedPipe(err) {
			return fmt.Errorf("write question: %w", err)
		}
		return nil
	})

	waitErr := cmd.Wait()
	writeErr := g.Wait()
	elapsed := time.Since(start)

	res := RawResult{Duration: elapsed}
	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return RawResult{}, &ProcessError{Command: inv.command, Err: ctx.Err()}
		case errors.As(waitErr, &exitErr):
			// Streams are complete even when a signal ended the tool; ExitCode
			// is -1 in that case.
			res.ExitCode = exitErr.ExitCode()
		default:
			return RawResult{}, &ProcessError{Command: inv.command, Err: waitErr}
		}
	}
	if writeErr != nil {
		return RawResult{}, &ProcessError{Command: inv.command, Err: writeErr}
	}

	if !utf8.Valid(stdout.Bytes()) {
		return RawResult{}, &EncodingError{Stream: "stdout"}
	}
	if !utf8.Valid(stderr.Bytes()) {
		return RawResult{}, &EncodingError{Stream: "stderr"}
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	log.Debug().
		Int("exit_code", res.ExitCode).
		Int("stdout_bytes", stdout.Len()).
		Int("stderr_bytes", stderr.Len()).
		Dur("elapsed", elapsed).
		Msg("wikirag finished")
	return res, nil
}

// isClosedPipe reports whether a stdin write failed only because the child
// stopped reading.
func isClosedPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
