package xslt

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/midbel/angle/xml"
)

const (
	XslVersion   = "1.0"
	XslVendor    = "angle"
	XslVendorUrl = "https://github.com/midbel/angle"
)

type dispatchKey struct {
	mode  string
	scope *Import
	shape xml.NodeType
}

type fixup struct {
	prog *Program
	slot int
	name xml.QName
	url  string
	path string
}

// Stylesheet is a compiled stylesheet: the declarations of every resource
// loaded from its root, ready to be used by any number of transformations.
type Stylesheet struct {
	URL string

	arena     Arena
	imports   []*Import
	templates []*Template
	globals   []*Variable
	sets      []*AttributeSet
	keys      *KeyIndex
	formats   map[string]*decimalFormatEntry
	aliases   aliasList
	space     SpacePolicy
	outputs   []outputEntry
	output    *Output

	named   map[string]*Template
	vars    map[string]*Variable
	setsBy  map[string][]*AttributeSet
	modes   map[string]xml.QName
	fixups  []fixup
	done    bool
	metrics *Metrics
	proc    *Processor

	mu       sync.Mutex
	programs map[dispatchKey]*Program
}

func newStylesheet(url string) *Stylesheet {
	return &Stylesheet{
		URL:      url,
		keys:     NewKeyIndex(),
		formats:  make(map[string]*decimalFormatEntry),
		output:   defaultOutput(),
		named:    make(map[string]*Template),
		vars:     make(map[string]*Variable),
		setsBy:   make(map[string][]*AttributeSet),
		modes:    make(map[string]xml.QName),
		programs: make(map[dispatchKey]*Program),
	}
}

// Output gives the merged xsl:output declarations.
func (s *Stylesheet) Output() *Output {
	return s.output
}

func (s *Stylesheet) Templates() []*Template {
	return s.templates
}

func (s *Stylesheet) Imports() []*Import {
	return s.imports
}

func (s *Stylesheet) Globals() []*Variable {
	return s.globals
}

func (s *Stylesheet) SpacePolicy() *SpacePolicy {
	return &s.space
}

// Version gives the version declared by the root stylesheet.
func (s *Stylesheet) Version() string {
	if len(s.imports) == 0 {
		return ""
	}
	return s.imports[0].Version
}

// SetMetrics makes s report its program cache and key index activity to m.
func (s *Stylesheet) SetMetrics(m *Metrics) {
	s.metrics = m
	s.keys.metrics = m
}

func (s *Stylesheet) addImport(imp *Import) {
	s.imports = append(s.imports, imp)
}

func (s *Stylesheet) addTemplate(t *Template) {
	t.Index = len(s.templates)
	s.templates = append(s.templates, t)
	if t.Match != nil {
		s.modes[t.Mode.ExpandedName()] = t.Mode
	}
}

func (s *Stylesheet) addGlobal(v *Variable) {
	v.Index = len(s.globals)
	s.globals = append(s.globals, v)
}

func (s *Stylesheet) addAttributeSet(a *AttributeSet) {
	a.Index = len(s.sets)
	s.sets = append(s.sets, a)
}

func (s *Stylesheet) addDecimalFormat(name xml.QName, df DecimalFormat, prec *precedence) error {
	key := name.ExpandedName()
	df.Name = name
	curr, ok := s.formats[key]
	if !ok {
		s.formats[key] = &decimalFormatEntry{
			format: df,
			prec:   prec,
		}
		return nil
	}
	if curr.prec == prec && !curr.format.Equal(df) {
		return fmt.Errorf("decimal-format %s: %w", name.QualifiedName(), ErrInvalidValue)
	}
	if curr.prec != prec {
		curr.pending = append(curr.pending, decimalFormatEntry{format: df, prec: prec})
	}
	return nil
}

func (s *Stylesheet) addOutput(c *Construct, prec *precedence) {
	e := outputEntry{
		construct: *c,
		prec:      prec,
		index:     len(s.outputs),
	}
	e.construct.Children = nil
	s.outputs = append(s.outputs, e)
}

func (s *Stylesheet) addAlias(al namespaceAlias) {
	s.aliases = append(s.aliases, al)
}

// finish runs once every resource has been parsed: the declarations
// sharing a name are resolved by import precedence.
func (s *Stylesheet) finish() error {
	var errs []error
	for _, t := range s.templates {
		if t.Name.Zero() {
			continue
		}
		key := t.Name.ExpandedName()
		curr, ok := s.named[key]
		switch {
		case !ok || t.Precedence() > curr.Precedence():
			s.named[key] = t
		case t.Precedence() == curr.Precedence():
			errs = append(errs, fmt.Errorf("template %s declared twice: %w", t.Name.QualifiedName(), ErrInvalidValue))
		}
	}
	for _, v := range s.globals {
		key := v.Name.ExpandedName()
		curr, ok := s.vars[key]
		switch {
		case !ok || v.Precedence() > curr.Precedence():
			s.vars[key] = v
		case v.Precedence() == curr.Precedence():
			errs = append(errs, fmt.Errorf("%s declared twice: %w", v, ErrInvalidValue))
		}
	}
	for _, a := range s.sets {
		key := a.Name.ExpandedName()
		s.setsBy[key] = append(s.setsBy[key], a)
	}
	for _, list := range s.setsBy {
		slices.SortStableFunc(list, func(a, b *AttributeSet) int {
			if c := cmp.Compare(a.Precedence(), b.Precedence()); c != 0 {
				return c
			}
			return cmp.Compare(a.Index, b.Index)
		})
	}
	for _, e := range s.formats {
		for _, p := range e.pending {
			switch {
			case p.prec.value > e.prec.value:
				e.format, e.prec = p.format, p.prec
			case p.prec.value == e.prec.value && !p.format.Equal(e.format):
				errs = append(errs, fmt.Errorf("decimal-format %s: %w", p.format.Name.QualifiedName(), ErrInvalidValue))
			}
		}
		e.pending = nil
	}

	slices.SortStableFunc(s.outputs, func(a, b outputEntry) int {
		if c := cmp.Compare(a.prec.value, b.prec.value); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	for _, e := range s.outputs {
		if err := s.output.merge(&e.construct); err != nil {
			errs = append(errs, fmt.Errorf("output: %w", err))
		}
	}
	s.outputs = nil

	for _, f := range s.fixups {
		t, err := s.NamedTemplate(f.name)
		if err != nil {
			errs = append(errs, constructError(f.url, f.path, err))
			continue
		}
		f.prog.templates[f.slot] = t
	}
	s.fixups = nil
	s.done = true
	return errors.Join(errs...)
}

// NamedTemplate gives the template of highest precedence named name.
func (s *Stylesheet) NamedTemplate(name xml.QName) (*Template, error) {
	if t, ok := s.named[name.ExpandedName()]; ok {
		return t, nil
	}
	var list []string
	for _, t := range s.named {
		list = append(list, t.Name.QualifiedName())
	}
	return nil, errorWithHint(name.QualifiedName(), ErrUnresolved, list)
}

// Global gives the top-level variable or parameter of highest precedence
// named name.
func (s *Stylesheet) Global(name xml.QName) (*Variable, bool) {
	v, ok := s.vars[name.ExpandedName()]
	return v, ok
}

func (s *Stylesheet) globalNames() []string {
	var list []string
	for _, v := range s.vars {
		list = append(list, v.Name.QualifiedName())
	}
	return list
}

// AttributeSets gives the attribute sets named name in the order they
// have to be applied.
func (s *Stylesheet) AttributeSets(name xml.QName) ([]*AttributeSet, error) {
	list, ok := s.setsBy[name.ExpandedName()]
	if !ok {
		var names []string
		for _, a := range s.sets {
			names = append(names, a.Name.QualifiedName())
		}
		return nil, errorWithHint(name.QualifiedName(), ErrUnresolved, names)
	}
	return list, nil
}

// DecimalFormat gives the decimal format named name, the zero name being
// the default format.
func (s *Stylesheet) DecimalFormat(name xml.QName) (DecimalFormat, error) {
	if e, ok := s.formats[name.ExpandedName()]; ok {
		return e.format, nil
	}
	if name.Zero() {
		return DefaultDecimalFormat(), nil
	}
	var names []string
	for _, e := range s.formats {
		names = append(names, e.format.Name.QualifiedName())
	}
	return DecimalFormat{}, errorWithHint(name.QualifiedName(), ErrUnresolved, names)
}

// Modes lists the modes used by template rules.
func (s *Stylesheet) Modes() []string {
	var list []string
	for _, m := range s.modes {
		if !m.Zero() {
			list = append(list, m.QualifiedName())
		}
	}
	slices.Sort(list)
	return list
}

func (s *Stylesheet) checkMode(mode xml.QName) error {
	if _, ok := s.modes[mode.ExpandedName()]; ok || mode.Zero() {
		return nil
	}
	return errorWithHint(mode.QualifiedName(), ErrUnresolved, s.Modes())
}

// templateProgram compiles the body of t the first time it is needed.
func (s *Stylesheet) templateProgram(t *Template) (*Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.program != nil {
		return t.program, nil
	}
	prog, err := s.compileTemplate(t)
	if err != nil {
		return nil, err
	}
	t.program = prog
	return prog, nil
}

func (s *Stylesheet) globalProgram(v *Variable) (*Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.program != nil {
		return v.program, nil
	}
	prog, err := s.compileGlobal(v)
	if err != nil {
		return nil, err
	}
	v.program = prog
	return prog, nil
}

// CompileAll compiles every template and every global variable, reporting
// all the errors found instead of waiting for them to be instantiated.
func (s *Stylesheet) CompileAll() error {
	var errs []error
	for _, t := range s.templates {
		if _, err := s.templateProgram(t); err != nil {
			errs = append(errs, err)
		}
	}
	for _, v := range s.globals {
		if v.Select != nil {
			continue
		}
		if _, err := s.globalProgram(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Programs gives the apply-templates programs built so far.
func (s *Stylesheet) Programs() []*Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.programs))
}
