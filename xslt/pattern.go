package xslt

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// shapes are the node types a dispatch program is built for.
var shapes = []xml.NodeType{
	xml.TypeDocument,
	xml.TypeElement,
	xml.TypeAttribute,
	xml.TypeText,
	xml.TypeComment,
	xml.TypeInstruction,
}

// dispatchProgram gives the program choosing the template rule applied to
// a node of type shape in mode. With scope set, only the templates imported
// by scope compete, as xsl:apply-imports requires.
func (s *Stylesheet) dispatchProgram(mode xml.QName, scope *Import, shape xml.NodeType) *Program {
	key := dispatchKey{
		mode:  mode.ExpandedName(),
		scope: scope,
		shape: shape,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prog, ok := s.programs[key]; ok {
		s.metrics.programLookup(true)
		return prog
	}
	s.metrics.programLookup(false)
	prog := buildDispatch(s.candidates(mode, scope, shape), mode, shape)
	s.programs[key] = prog
	return prog
}

// candidates lists the template rules able to match a node of type shape,
// best first: higher import precedence, then higher priority, then the
// last one in document order. Alternatives of a template sharing the same
// priority are grouped in one entry.
func (s *Stylesheet) candidates(mode xml.QName, scope *Import, shape xml.NodeType) []matchEntry {
	var list []matchEntry
	for _, t := range s.templates {
		if t.Match == nil || !t.Mode.Equal(mode) {
			continue
		}
		if scope != nil && !scope.Imports(t.Import) {
			continue
		}
		var groups []matchEntry
		for _, alt := range t.Match.Alternatives {
			if !alt.MayMatch(shape) {
				continue
			}
			prio := t.priorityOf(alt)
			i := slices.IndexFunc(groups, func(e matchEntry) bool {
				return e.priority == prio
			})
			if i < 0 {
				groups = append(groups, matchEntry{
					template: t,
					priority: prio,
				})
				i = len(groups) - 1
			}
			groups[i].alts = append(groups[i].alts, alt)
		}
		list = append(list, groups...)
	}
	slices.SortStableFunc(list, func(a, b matchEntry) int {
		if c := cmp.Compare(b.template.Precedence(), a.template.Precedence()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.priority, a.priority); c != 0 {
			return c
		}
		return cmp.Compare(b.template.Index, a.template.Index)
	})
	return list
}

func buildDispatch(entries []matchEntry, mode xml.QName, shape xml.NodeType) *Program {
	name := shape.String()
	if !mode.Zero() {
		name = fmt.Sprintf("%s, mode=%s", name, mode.QualifiedName())
	}
	prog := Program{
		Name: "apply(" + name + ")",
	}
	for _, e := range entries {
		prog.matches = append(prog.matches, e)
		var (
			idx  = len(prog.matches) - 1
			info = instrInfo{
				label: e.template.String(),
			}
		)
		if alwaysMatches(e, shape) {
			prog.emit(OpInvoke, idx, 0, info)
			return &prog
		}
		at := prog.emit(OpMatch, idx, 0, info)
		prog.patch(at, idx, at+1)
	}
	prog.emit(OpApplyBuiltin, 0, 0, instrInfo{label: "built-in template"})
	return &prog
}

func alwaysMatches(e matchEntry, shape xml.NodeType) bool {
	return slices.ContainsFunc(e.alts, func(a *xpath.Alternative) bool {
		return a.AlwaysMatches(shape)
	})
}

// matchEntryNode reports whether node matches one alternative of e.
func matchEntryNode(e matchEntry, node xml.Node, env xpath.Environment) (bool, error) {
	for _, a := range e.alts {
		ok, err := a.Match(node, env)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}
