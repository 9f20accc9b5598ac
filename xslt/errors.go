package xslt

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted aborts the whole pipeline: recursion depth, output size or
	// pending loads went past their limit.
	ErrExhausted  = errors.New("resource exhausted")
	ErrAborted    = errors.New("transformation aborted")
	ErrTerminated = errors.New("transformation terminated")
	ErrFinished   = errors.New("transformation finished")
	ErrBlocked    = errors.New("blocked")

	ErrMissingAttr      = errors.New("missing required attribute")
	ErrInvalidName      = errors.New("invalid qualified name")
	ErrUndeclaredPrefix = errors.New("undeclared namespace prefix")
	ErrRecursiveImport  = errors.New("recursive import")
	ErrUnresolved       = errors.New("unresolved reference")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrInvalidValue     = errors.New("invalid attribute value")
	ErrUnexpected       = errors.New("element not allowed here")
	ErrUnsupported      = errors.New("unsupported instruction")
	ErrCircular         = errors.New("circular definition")
	ErrShadowed         = errors.New("local binding shadows another local binding")
	ErrNoStylesheet     = errors.New("no stylesheet")
	ErrTreeMethod       = errors.New("output method can not build a tree")
)

// ConstructError is a structural error found while parsing or compiling a
// stylesheet.
type ConstructError struct {
	URL  string
	Path string
	Err  error
}

func constructError(url, path string, err error) error {
	return &ConstructError{
		URL:  url,
		Path: path,
		Err:  err,
	}
}

func (e *ConstructError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.URL, e.Path, e.Err)
}

func (e *ConstructError) Unwrap() error {
	return e.Err
}

// RuntimeError is a failure of the transformation in progress.
type RuntimeError struct {
	Instruction string
	Node        string
	Err         error
}

func (e *RuntimeError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("%s: %s", e.Instruction, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Instruction, e.Node, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// BlockedError is returned by evaluations that need a resource not yet
// available. Wait registers the function to call once it is.
type BlockedError struct {
	Resource string
	Wait     func(func())
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Resource, ErrBlocked)
}

func (e *BlockedError) Is(err error) bool {
	return err == ErrBlocked
}

func isExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

func invalidValue(attr, value string) error {
	return fmt.Errorf("%s=%q: %w", attr, value, ErrInvalidValue)
}
