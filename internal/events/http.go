package events

import (
	"net/http"
	"time"
)

// HTTPStart is published by the server when a request arrives, before the
// body is read. Context carries the run id that compile and evaluate events
// of the same request share.
type HTTPStart struct {
	Request *http.Request
	Route   string // "/compile", "/evaluate", or "" for unknown paths
}

// HTTPFinish is published once the response has been written.
type HTTPFinish struct {
	Request  *http.Request
	Route    string
	Status   int
	Duration time.Duration
}
