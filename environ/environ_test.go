package environ_test

import (
	"errors"
	"testing"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

func TestEnviron(t *testing.T) {
	var (
		outer = environ.Empty[int]()
		inner = environ.Enclosed(outer)
	)
	outer.Define(xml.LocalName("a"), 1)
	inner.Define(xml.LocalName("b"), 2)
	inner.Define(xml.LocalName("a"), 10)

	if v, err := inner.Resolve(xml.LocalName("a")); err != nil || v != 10 {
		t.Errorf("a: expected 10 from inner scope, got %d (%v)", v, err)
	}
	if v, err := outer.Resolve(xml.LocalName("a")); err != nil || v != 1 {
		t.Errorf("a: expected 1 from outer scope, got %d (%v)", v, err)
	}
	if _, err := outer.Resolve(xml.LocalName("b")); !errors.Is(err, environ.ErrUndefined) {
		t.Errorf("b: expected undefined error, got %v", err)
	}
	names := inner.Names()
	if len(names) != 2 || names[0].Name != "a" || names[1].Name != "b" {
		t.Errorf("names mismatched: %v", names)
	}
}

func TestEnvironExpandedNames(t *testing.T) {
	var (
		env = environ.Empty[string]()
		x   = xml.QName{Space: "x", Name: "item", Uri: "urn:item"}
		y   = xml.QName{Space: "y", Name: "item", Uri: "urn:item"}
		z   = xml.QName{Space: "x", Name: "item", Uri: "urn:other"}
	)
	env.Define(x, "first")
	if v, err := env.Resolve(y); err != nil || v != "first" {
		t.Errorf("same expanded name with another prefix not resolved: %s (%v)", v, err)
	}
	if _, err := env.Resolve(z); !errors.Is(err, environ.ErrUndefined) {
		t.Errorf("name from another namespace resolved")
	}
	env.Define(y, "second")
	if env.Len() != 1 {
		t.Errorf("expected one binding, got %d", env.Len())
	}
}

func TestEnvironVisible(t *testing.T) {
	var (
		outer = environ.Empty[bool]()
		inner = environ.Enclosed(outer)
	)
	outer.Define(xml.LocalName("v"), true)

	e := inner.(*environ.Env[bool])
	if e.Defined(xml.LocalName("v")) {
		t.Errorf("v should not be defined in inner scope")
	}
	if !e.Visible(xml.LocalName("v")) {
		t.Errorf("v should be visible from inner scope")
	}
	if e.Parent() != outer {
		t.Errorf("parent mismatched")
	}
}
