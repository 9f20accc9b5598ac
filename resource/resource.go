// Package resource loads stylesheets and documents and delivers their token
// stream to a sink, a few tokens at a time, on a loop.
package resource

import (
	"errors"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/midbel/angle/xml"
)

var (
	ErrRejected    = errors.New("resource rejected")
	ErrUnsupported = errors.New("unsupported scheme")
	ErrNotFound    = errors.New("resource not found")
	ErrTooLarge    = errors.New("resource too large")
	ErrMediaType   = errors.New("unexpected media type")
)

type Kind int8

const (
	KindImported Kind = iota
	KindIncluded
	KindLinked
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImported:
		return "imported-stylesheet"
	case KindIncluded:
		return "included-stylesheet"
	case KindLinked:
		return "linked-stylesheet"
	case KindDocument:
		return "loaded-document"
	default:
		return "<unknown>"
	}
}

type Status int8

const (
	StatusAccepted Status = iota
	StatusRejected
	StatusOOM
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusOOM:
		return "oom"
	default:
		return "<unknown>"
	}
}

// Sink receives the tokens of a loaded resource. LoadFailed is called
// instead of, or after some of, the tokens when the resource can not be
// fetched or is not well formed.
type Sink interface {
	xml.TokenHandler
	LoadFailed(url string, err error)
}

type Loader interface {
	LoadResource(kind Kind, url string, sink Sink) Status
	CancelLoadResource(sink Sink)
}

// Resolve makes ref absolute against base. base and ref can be urls or
// file paths.
func Resolve(base, ref string) string {
	if ref == "" {
		return base
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return ref
	}
	if base == "" || filepath.IsAbs(ref) {
		return ref
	}
	b, err := url.Parse(base)
	if err == nil && b.Scheme != "" && len(b.Scheme) > 1 {
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}
	if strings.HasSuffix(base, "/") {
		return filepath.Join(base, ref)
	}
	return filepath.Join(filepath.Dir(base), ref)
}

// Fragment splits the fragment identifier from str.
func Fragment(str string) (string, string) {
	before, after, ok := strings.Cut(str, "#")
	if !ok {
		return str, ""
	}
	return before, after
}

func scheme(str string) string {
	u, err := url.Parse(str)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

func extension(str string) string {
	if u, err := url.Parse(str); err == nil && len(u.Scheme) > 1 {
		return path.Ext(u.Path)
	}
	return filepath.Ext(str)
}
