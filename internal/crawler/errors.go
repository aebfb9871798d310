package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFrontierClosed is returned when submitting to a closed frontier.
	ErrFrontierClosed = errors.New("frontier closed")
	// ErrFrontierExhausted is returned by Next once the frontier is closed
	// and every buffered URL has been handed out.
	ErrFrontierExhausted = errors.New("frontier exhausted")
)

// FetchError reports a network or transport failure for a single URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a document body that could not be parsed for links.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolveError reports a reference that could not be made absolute.
type ResolveError struct {
	Base string
	Ref  string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q against %s: %v", e.Ref, e.Base, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
