package crawler

import "errors"

var (
	// ErrAlreadyRunning is returned when a crawl is requested while another is active.
	ErrAlreadyRunning = errors.New("crawl already running")
	// ErrInvalidRange is returned for ranges that are non-positive or inverted.
	ErrInvalidRange = errors.New("invalid id range")
	// ErrFetch marks transport and HTTP failures reported by a Classifier.
	ErrFetch = errors.New("fetch failed")
)
