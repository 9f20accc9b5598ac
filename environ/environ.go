// Package environ implements nested scopes of bindings keyed by the
// expanded name of their identifiers.
package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
)

var ErrUndefined = errors.New("undefined identifier")

type Environ[T any] interface {
	Resolve(xml.QName) (T, error)
	Define(xml.QName, T)
	Names() []xml.QName
	Len() int
}

type binding[T any] struct {
	name  xml.QName
	value T
}

type Env[T any] struct {
	values map[string]binding[T]
	parent Environ[T]
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]binding[T]),
		parent: parent,
	}
	return &e
}

func (e *Env[T]) Len() int {
	return len(e.values)
}

// Names returns the identifiers defined in e, ignoring its parents, sorted
// by expanded name.
func (e *Env[T]) Names() []xml.QName {
	keys := slices.Sorted(maps.Keys(e.values))
	names := make([]xml.QName, 0, len(keys))
	for _, k := range keys {
		names = append(names, e.values[k].name)
	}
	return names
}

// Define binds name in e. Two names with the same namespace uri and local
// part are the same identifier whatever their prefix.
func (e *Env[T]) Define(name xml.QName, value T) {
	e.values[name.ExpandedName()] = binding[T]{
		name:  name,
		value: value,
	}
}

func (e *Env[T]) Resolve(name xml.QName) (T, error) {
	b, ok := e.values[name.ExpandedName()]
	if ok {
		return b.value, nil
	}
	if e.parent != nil {
		return e.parent.Resolve(name)
	}
	var t T
	return t, fmt.Errorf("%s: %w", name.QualifiedName(), ErrUndefined)
}

// Defined reports whether name is defined in e itself.
func (e *Env[T]) Defined(name xml.QName) bool {
	_, ok := e.values[name.ExpandedName()]
	return ok
}

// Visible reports whether name is defined in e or one of its parents.
func (e *Env[T]) Visible(name xml.QName) bool {
	_, err := e.Resolve(name)
	return err == nil
}

func (e *Env[T]) Parent() Environ[T] {
	return e.parent
}

func (e *Env[T]) String() string {
	var list []string
	for _, n := range e.Names() {
		list = append(list, n.QualifiedName())
	}
	return "{" + strings.Join(list, ", ") + "}"
}
