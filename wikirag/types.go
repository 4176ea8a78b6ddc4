package wikirag

import "time"

// Query is one question for the wikirag tool. Model and Pages are filled in by
// the caller; the invoker passes them through as-is.
type Query struct {
	Question string
	Model    string
	Pages    string
}

// RawResult holds the verbatim output of one tool run.
type RawResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Answer is the parsed result shown to the user.
type Answer struct {
	Text        string
	Diagnostics string
	References  []string
}
