package xpath

import (
	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

// Environment resolves the variables and the functions that are not part of
// the core library.
type Environment interface {
	ResolveVariable(xml.QName) (Sequence, error)
	ResolveFunction(xml.QName) (Function, bool)
}

// NamespaceResolver maps prefixes used in an expression to namespace uris.
// *xml.Element satisfies it.
type NamespaceResolver interface {
	ResolvePrefix(string) (string, bool)
}

type Function struct {
	Min int
	// Max is -1 for variadic functions.
	Max  int
	Call func(Context, []Sequence) (Sequence, error)
}

func (f Function) accept(n int) bool {
	return n >= f.Min && (f.Max < 0 || n <= f.Max)
}

type Context struct {
	Node     xml.Node
	Position int
	Size     int
	Env      Environment
}

func DefaultContext(node xml.Node) Context {
	return Context{
		Node:     node,
		Position: 1,
		Size:     1,
	}
}

func (c Context) Sub(node xml.Node, pos, size int) Context {
	c.Node = node
	c.Position = pos
	c.Size = size
	return c
}

func (c Context) resolveVariable(name xml.QName) (Sequence, error) {
	if c.Env == nil {
		return nil, undefined(name.QualifiedName())
	}
	return c.Env.ResolveVariable(name)
}

func (c Context) resolveFunction(name xml.QName) (Function, bool) {
	if name.Uri == "" {
		if fn, ok := builtins[name.Name]; ok {
			return fn, true
		}
	}
	if c.Env == nil {
		return Function{}, false
	}
	return c.Env.ResolveFunction(name)
}

// Scope is an Environment backed by nested environments keyed by expanded
// names.
type Scope struct {
	vars  environ.Environ[Sequence]
	funcs environ.Environ[Function]
}

func NewScope() *Scope {
	return &Scope{
		vars:  environ.Empty[Sequence](),
		funcs: environ.Empty[Function](),
	}
}

// Enclosed creates a scope whose lookups fall back to s.
func (s *Scope) Enclosed() *Scope {
	return &Scope{
		vars:  environ.Enclosed(s.vars),
		funcs: environ.Enclosed(s.funcs),
	}
}

func (s *Scope) Define(name xml.QName, value Sequence) {
	s.vars.Define(name, value)
}

func (s *Scope) DefineFunction(name xml.QName, fn Function) {
	s.funcs.Define(name, fn)
}

func (s *Scope) ResolveVariable(name xml.QName) (Sequence, error) {
	seq, err := s.vars.Resolve(name)
	if err != nil {
		return nil, undefined(name.QualifiedName())
	}
	return seq, nil
}

func (s *Scope) ResolveFunction(name xml.QName) (Function, bool) {
	fn, err := s.funcs.Resolve(name)
	return fn, err == nil
}
