package events

import "time"

// CompileStart is emitted before a formula is compiled.
type CompileStart struct {
	Formula string
	Mode    string
}

// CompileFinish is emitted after a compilation, successful or not.
type CompileFinish struct {
	Formula  string
	Mode     string
	Created  int // nodes added to the compiler cache
	Reused   int // cached nodes the formula resolved to
	Layers   int
	Err      error
	Duration time.Duration
}
