package wikirag

import (
	"errors"
	"fmt"
)

var (
	ErrSpawn    = errors.New("wikirag: spawn failed")
	ErrProcess  = errors.New("wikirag: process failed")
	ErrEncoding = errors.New("wikirag: output is not valid utf-8")
)

// SpawnError reports that the tool could not be located or started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// ProcessError reports that the tool was started but could not be waited on
// to completion, including cancellation and timeouts.
type ProcessError struct {
	Command string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("wait %s: %v", e.Command, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool { return target == ErrProcess }

// EncodingError reports a captured stream that is not valid UTF-8.
type EncodingError struct {
	Stream string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("wikirag %s is not valid utf-8", e.Stream)
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }
